package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "Manage cells",
	Long:  `Create, inspect, edit and delete cells.`,
}

var cellCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a cell",
	Long: `Create a cell. Content placement follows the cell type: python is always
stored in a sidecar file, text and markdown move to a file once they grow
large, json honours --location.

Remote cells take --source URL, symlinked cells take --source /abs/path.
Their content comes from the source, so --content and --file do not apply.`,
	Args: cobra.NoArgs,
	RunE: runCellCreate,
}

var cellListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cells",
	Args:  cobra.NoArgs,
	RunE:  runCellList,
}

var cellShowCmd = &cobra.Command{
	Use:   "show [cell]",
	Short: "Show cell metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellShow,
}

var cellContentCmd = &cobra.Command{
	Use:   "content [cell]",
	Short: "Print cell content",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellContent,
}

var cellWriteCmd = &cobra.Command{
	Use:   "write [cell]",
	Short: "Replace cell content",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellWrite,
}

var cellUpdateCmd = &cobra.Command{
	Use:   "update [cell]",
	Short: "Change cell metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellUpdate,
}

var cellStartCmd = &cobra.Command{
	Use:   "start [cell]",
	Short: "Make a cell the start point",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellStart,
}

var cellDeleteCmd = &cobra.Command{
	Use:   "delete [cell]",
	Short: "Delete a cell and its relationships",
	Args:  cobra.ExactArgs(1),
	RunE:  runCellDelete,
}

func init() {
	f := cellCreateCmd.Flags()
	f.StringP("type", "t", string(domain.CellTypeText), "cell type: text, python, markdown, json")
	f.StringP("name", "n", "", "display name")
	f.String("bounds", "0,0,200,100", "x,y,width,height")
	f.String("summary", "", "short summary")
	f.String("location", "", "placement preference: inline or external")
	f.String("source", "", "URL for remote cells, absolute path for symlinked cells")
	f.Bool("symlink", false, "treat --source as a local file to link")
	addContentFlags(cellCreateCmd)

	addContentFlags(cellWriteCmd)

	u := cellUpdateCmd.Flags()
	u.StringP("name", "n", "", "display name")
	u.StringP("type", "t", "", "cell type")
	u.String("bounds", "", "x,y,width,height")
	u.String("summary", "", "short summary")
	u.String("preview", "", "preview mode: source, rendered, split")

	cellCmd.AddCommand(cellCreateCmd)
	cellCmd.AddCommand(cellListCmd)
	cellCmd.AddCommand(cellShowCmd)
	cellCmd.AddCommand(cellContentCmd)
	cellCmd.AddCommand(cellWriteCmd)
	cellCmd.AddCommand(cellUpdateCmd)
	cellCmd.AddCommand(cellStartCmd)
	cellCmd.AddCommand(cellDeleteCmd)
	rootCmd.AddCommand(cellCmd)
}

func runCellCreate(cmd *cobra.Command, _ []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	flags := cmd.Flags()
	typ, _ := flags.GetString("type")
	name, _ := flags.GetString("name")
	boundsStr, _ := flags.GetString("bounds")
	summary, _ := flags.GetString("summary")
	locStr, _ := flags.GetString("location")
	source, _ := flags.GetString("source")
	symlink, _ := flags.GetBool("symlink")

	bounds, err := parseBounds(boundsStr)
	if err != nil {
		return err
	}
	content, _, err := readContentFlags(cmd)
	if err != nil {
		return err
	}

	req := driving.CreateCellRequest{
		Type:    domain.CellType(typ),
		Name:    name,
		Bounds:  bounds,
		Content: content,
		Summary: summary,
		Source:  source,
	}
	switch {
	case source != "" && symlink:
		req.Preference = ptr(domain.LocationSymlink)
	case source != "":
		req.Preference = ptr(domain.LocationRemote)
	case locStr != "":
		loc, err := domain.ParseContentLocation(locStr)
		if err != nil {
			return err
		}
		req.Preference = &loc
	}

	cell, err := cellService.CreateCell(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to create cell: %w", err)
	}

	cmd.Printf("Created cell %s (%s, %s)\n", shortLabel(*cell), cell.Type, cell.Location)
	return nil
}

func runCellList(cmd *cobra.Command, _ []string) error {
	if cellReader == nil {
		return errNotConfigured("cell")
	}

	cells := cellReader.List()
	if len(cells) == 0 {
		cmd.Println("No cells.")
		return nil
	}

	cmd.Printf("  %-6s %-9s %-9s %s\n", "ID", "TYPE", "LOCATION", "NAME")
	for i := range cells {
		marker := " "
		if cells[i].IsStartPoint {
			marker = "*"
		}
		cmd.Printf("%s %-6s %-9s %-9s %s\n", marker, cells[i].ShortID, cells[i].Type, cells[i].Location, cells[i].Name)
	}
	cmd.Printf("\nTotal: %d cells\n", len(cells))
	return nil
}

func runCellShow(cmd *cobra.Command, args []string) error {
	if cellService == nil || cellReader == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	cell, err := cellReader.Get(ids[0])
	if err != nil {
		return err
	}

	cmd.Printf("Cell: %s\n\n", cell.ShortID)
	cmd.Printf("  ID:        %s\n", cell.ID)
	if cell.Name != "" {
		cmd.Printf("  Name:      %s\n", cell.Name)
	}
	cmd.Printf("  Type:      %s\n", cell.Type)
	cmd.Printf("  Bounds:    %s\n", formatBounds(cell.Bounds))
	cmd.Printf("  Location:  %s\n", cell.Location)
	if cell.Path != nil {
		cmd.Printf("  Path:      %s\n", *cell.Path)
	}
	cmd.Printf("  Hash:      %s\n", cell.ContentHash)
	if cell.Summary != "" {
		cmd.Printf("  Summary:   %s\n", cell.Summary)
	}
	if cell.IsStartPoint {
		cmd.Println("  Start:     yes")
	}
	if cell.ParentID != nil {
		cmd.Printf("  Parent:    %s\n", *cell.ParentID)
	}
	if len(cell.Children) > 0 {
		cmd.Printf("  Children:  %d\n", len(cell.Children))
	}
	cmd.Printf("  Created:   %s\n", cell.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Modified:  %s\n", cell.ModifiedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runCellContent(cmd *cobra.Command, args []string) error {
	if cellService == nil || cellReader == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	content, err := cellReader.Content(cmd.Context(), ids[0])
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(content)
	return err
}

func runCellWrite(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	content, ok, err := readContentFlags(cmd)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: pass --content or --file", domain.ErrInvalidInput)
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}

	cell, err := cellService.UpdateContent(cmd.Context(), ids[0], content)
	if err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	cmd.Printf("Wrote %d bytes to %s (%s)\n", len(content), cell.ShortID, cell.Location)
	return nil
}

func runCellUpdate(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	flags := cmd.Flags()
	var upd driving.CellUpdate

	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		upd.Name = &v
	}
	if flags.Changed("type") {
		v, _ := flags.GetString("type")
		upd.Type = ptr(domain.CellType(v))
	}
	if flags.Changed("bounds") {
		v, _ := flags.GetString("bounds")
		r, err := parseBounds(v)
		if err != nil {
			return err
		}
		upd.Bounds = &r
	}
	if flags.Changed("summary") {
		v, _ := flags.GetString("summary")
		upd.Summary = &v
	}
	if flags.Changed("preview") {
		v, _ := flags.GetString("preview")
		upd.PreviewMode = ptr(domain.PreviewMode(v))
	}

	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	cell, err := cellService.UpdateCell(cmd.Context(), ids[0], upd)
	if err != nil {
		return fmt.Errorf("failed to update cell: %w", err)
	}
	cmd.Printf("Updated cell %s\n", shortLabel(*cell))
	return nil
}

func runCellStart(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	if err := cellService.SetStartPoint(cmd.Context(), ids[0]); err != nil {
		return fmt.Errorf("failed to set start point: %w", err)
	}
	cmd.Printf("Start point set to %s\n", args[0])
	return nil
}

func runCellDelete(cmd *cobra.Command, args []string) error {
	if cellService == nil {
		return errNotConfigured("cell")
	}
	ids, err := resolveRefs(cmd, args[0])
	if err != nil {
		return err
	}
	if err := cellService.DeleteCell(cmd.Context(), ids[0]); err != nil {
		return fmt.Errorf("failed to delete cell: %w", err)
	}
	cmd.Printf("Deleted cell %s\n", args[0])
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
