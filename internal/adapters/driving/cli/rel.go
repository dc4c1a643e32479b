package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var relCmd = &cobra.Command{
	Use:     "rel",
	Aliases: []string{"relationship"},
	Short:   "Manage relationships between cells",
}

var relAddCmd = &cobra.Command{
	Use:   "add [from] [to]",
	Short: "Connect two cells",
	Args:  cobra.ExactArgs(2),
	RunE:  runRelAdd,
}

var relRemoveCmd = &cobra.Command{
	Use:     "rm [from] [to]",
	Aliases: []string{"remove"},
	Short:   "Disconnect two cells",
	Args:    cobra.ExactArgs(2),
	RunE:    runRelRemove,
}

var relListCmd = &cobra.Command{
	Use:   "list",
	Short: "List relationships",
	Args:  cobra.NoArgs,
	RunE:  runRelList,
}

func init() {
	relCmd.AddCommand(relAddCmd)
	relCmd.AddCommand(relRemoveCmd)
	relCmd.AddCommand(relListCmd)
	rootCmd.AddCommand(relCmd)
}

func runRelAdd(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args...)
	if err != nil {
		return err
	}
	if err := cellService.CreateRelationship(cmd.Context(), ids[0], ids[1]); err != nil {
		return fmt.Errorf("failed to connect cells: %w", err)
	}
	cmd.Printf("Connected %s -> %s\n", args[0], args[1])
	return nil
}

func runRelRemove(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args...)
	if err != nil {
		return err
	}
	if err := cellService.DeleteRelationship(cmd.Context(), ids[0], ids[1]); err != nil {
		return fmt.Errorf("failed to disconnect cells: %w", err)
	}
	cmd.Printf("Disconnected %s -> %s\n", args[0], args[1])
	return nil
}

func runRelList(cmd *cobra.Command, _ []string) error {
	if cellReader == nil {
		return errNotConfigured("cell")
	}
	rels := cellReader.Relationships()
	if len(rels) == 0 {
		cmd.Println("No relationships.")
		return nil
	}

	for _, rel := range rels {
		cmd.Printf("  %s -> %s\n", displayRef(rel.From), displayRef(rel.To))
	}
	cmd.Printf("\nTotal: %d relationships\n", len(rels))
	return nil
}
