package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

var editCmd = &cobra.Command{
	Use:   "edit [cell]",
	Short: "Edit a cell in an external editor",
	Long: `Open a cell in an external editor and wait for it to exit. Saved changes
are journaled like any other edit. If the cell changed in the meantime a
conflict is recorded instead; resolve it with "cellstore conflict resolve".

The editor is --editor, then editor.command from config, then $EDITOR, then
vi or nano. GUI editors need their wait flag, e.g. "code --wait".`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var conflictCmd = &cobra.Command{
	Use:   "conflict",
	Short: "Inspect and resolve edit conflicts",
}

var conflictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved conflicts",
	Args:  cobra.NoArgs,
	RunE:  runConflictList,
}

var conflictResolveCmd = &cobra.Command{
	Use:   "resolve [cell]",
	Short: "Resolve a conflict",
	Long: `Resolve a conflict by keeping one side. --keep external writes the
editor's version into the cell; --keep internal keeps the in-app version.`,
	Args: cobra.ExactArgs(1),
	RunE: runConflictResolve,
}

func init() {
	editCmd.Flags().StringP("editor", "e", "", "editor command, may include arguments")
	conflictResolveCmd.Flags().String("keep", "", "side to keep: external or internal")
	_ = conflictResolveCmd.MarkFlagRequired("keep")

	conflictCmd.AddCommand(conflictListCmd)
	conflictCmd.AddCommand(conflictResolveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(conflictCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	if editService == nil || cellService == nil {
		return errNotConfigured("edit")
	}
	editor, _ := cmd.Flags().GetString("editor")

	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	session, err := editService.BeginEdit(cmd.Context(), ids[0], editor)
	if err != nil {
		return fmt.Errorf("failed to start editor: %w", err)
	}
	cmd.Printf("Editing %s in %s\n", args[0], session.Path())

	result, _ := session.Wait(cmd.Context())
	if cmd.Context().Err() != nil && result.Outcome == "" {
		// Interrupted: stop the editor and collect the abandoned result.
		session.Cancel()
		result, _ = session.Wait(context.Background())
	}
	return reportEdit(cmd, result)
}

func reportEdit(cmd *cobra.Command, result driving.EditResult) error {
	switch result.Outcome {
	case driving.EditUnchanged:
		cmd.Println("No changes.")
	case driving.EditSynced:
		cmd.Printf("Saved changes (%d saves).\n", result.Saves)
	case driving.EditConflict:
		cmd.Println("The cell changed while it was being edited.")
		if result.Conflict != nil {
			cmd.Printf("Both versions are in %s\n", result.Conflict.ArtifactPath)
		}
		cmd.Printf("Resolve with: cellstore conflict resolve %s --keep external|internal\n", displayRef(result.CellID))
		return result.Err
	case driving.EditAbandoned:
		cmd.Println("Edit abandoned.")
		return result.Err
	}
	return nil
}

func runConflictList(cmd *cobra.Command, _ []string) error {
	if editService == nil {
		return errNotConfigured("edit")
	}
	conflicts, err := editService.Conflicts(cmd.Context())
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		cmd.Println("No conflicts.")
		return nil
	}
	for _, c := range conflicts {
		cmd.Printf("  %s  %s  %-21s  %s\n", c.ShortID, c.DetectedAt.Format("2006-01-02 15:04:05"), c.Kind, c.ArtifactPath)
	}
	return nil
}

func runConflictResolve(cmd *cobra.Command, args []string) error {
	if editService == nil || cellService == nil {
		return errNotConfigured("edit")
	}
	keep, _ := cmd.Flags().GetString("keep")
	resolution, err := domain.ParseConflictResolution(keep)
	if err != nil {
		return err
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	if err := editService.ResolveConflict(cmd.Context(), ids[0], resolution); err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	cmd.Printf("Resolved %s keeping the %s version\n", args[0], resolution)
	return nil
}
