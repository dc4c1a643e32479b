package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

var splitCmd = &cobra.Command{
	Use:   "split [cell]",
	Short: "Split a cell in two",
	Long: `Split a cell along a direction. The first child takes --ratio of the area
and inherits the content; the second starts empty. The original cell is kept
as the children's parent.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

var mergeCmd = &cobra.Command{
	Use:   "merge [cell] [cell]...",
	Short: "Merge cells into one",
	Long: `Replace two or more cells with a single cell covering their bounding box.
Relationships of the merged cells are removed with them.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	splitCmd.Flags().StringP("direction", "d", string(domain.SplitVertical), "horizontal or vertical")
	splitCmd.Flags().Float64P("ratio", "r", 0.5, "share of the first child, between 0 and 1")

	mergeCmd.Flags().StringP("type", "t", string(domain.CellTypeText), "type of the merged cell")
	addContentFlags(mergeCmd)

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(mergeCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	dir, _ := cmd.Flags().GetString("direction")
	ratio, _ := cmd.Flags().GetFloat64("ratio")

	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	children, err := cellService.SplitCell(cmd.Context(), ids[0], domain.SplitDirection(dir), ratio)
	if err != nil {
		return fmt.Errorf("failed to split cell: %w", err)
	}

	labels := make([]string, len(children))
	for i := range children {
		labels[i] = fmt.Sprintf("%s [%s]", children[i].ShortID, formatBounds(children[i].Bounds))
	}
	cmd.Printf("Split %s into %s\n", args[0], strings.Join(labels, " and "))
	return nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	typ, _ := cmd.Flags().GetString("type")
	content, _, err := readContentFlags(cmd)
	if err != nil {
		return err
	}

	ids, err := resolveRefs(cmd, args...)
	if err != nil {
		return err
	}
	cell, err := cellService.MergeCells(cmd.Context(), ids, domain.CellType(typ), content)
	if err != nil {
		return fmt.Errorf("failed to merge cells: %w", err)
	}
	cmd.Printf("Merged %d cells into %s [%s]\n", len(ids), cell.ShortID, formatBounds(cell.Bounds))
	return nil
}
