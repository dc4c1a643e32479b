package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Undo the last change",
	Args:  cobra.NoArgs,
	RunE:  runUndo,
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Redo the last undone change",
	Args:  cobra.NoArgs,
	RunE:  runRedo,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the change journal",
	Long: `Show journaled changes, newest first. The entry at the undo cursor is
marked with an arrow; entries above it can be redone.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 0, "maximum entries (0 = journal retention)")

	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
	rootCmd.AddCommand(historyCmd)
}

func runUndo(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errNotConfigured("history")
	}
	snap, err := historyService.Undo(cmd.Context())
	if err != nil {
		return err
	}
	if snap == nil {
		cmd.Println("Nothing to undo.")
		return nil
	}
	cmd.Printf("Undid: %s\n", snap.Description)
	return nil
}

func runRedo(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errNotConfigured("history")
	}
	snap, err := historyService.Redo(cmd.Context())
	if err != nil {
		return err
	}
	if snap == nil {
		cmd.Println("Nothing to redo.")
		return nil
	}
	cmd.Printf("Redid: %s\n", snap.Description)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if historyService == nil {
		return errNotConfigured("history")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	snaps, err := historyService.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	pos, err := historyService.Position(cmd.Context())
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		cmd.Println("No history.")
		return nil
	}

	for _, snap := range snaps {
		cmd.Println(historyLine(snap, pos))
	}
	return nil
}

func historyLine(snap domain.Snapshot, cursor int64) string {
	marker := "  "
	if snap.Sequence == cursor {
		marker = "->"
	}
	return fmt.Sprintf("%s %4d  %s  %s", marker, snap.Sequence,
		snap.Timestamp.Format("2006-01-02 15:04:05"), snap.Description)
}
