package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// parseBounds reads "x,y,width,height".
func parseBounds(s string) (domain.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Rectangle{}, fmt.Errorf("%w: bounds must be x,y,width,height", domain.ErrInvalidInput)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Rectangle{}, fmt.Errorf("%w: bounds value %q is not a number", domain.ErrInvalidInput, p)
		}
		vals[i] = v
	}
	r := domain.Rectangle{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	return r, r.Validate()
}

func formatBounds(r domain.Rectangle) string {
	return fmt.Sprintf("%g,%g,%g,%g", r.X, r.Y, r.Width, r.Height)
}

// readContentFlags returns the bytes given by --content or --file
// ("-" reads stdin). ok is false when neither flag was used.
func readContentFlags(cmd *cobra.Command) (data []byte, ok bool, err error) {
	flags := cmd.Flags()
	content, _ := flags.GetString("content")
	path, _ := flags.GetString("file")
	contentSet := flags.Changed("content")

	switch {
	case contentSet && path != "":
		return nil, false, fmt.Errorf("%w: use either --content or --file", domain.ErrInvalidInput)
	case contentSet:
		return []byte(content), true, nil
	case path == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, false, fmt.Errorf("reading stdin: %w", err)
		}
		return data, true, nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("reading %s: %w", path, err)
		}
		return data, true, nil
	default:
		return nil, false, nil
	}
}

func addContentFlags(cmd *cobra.Command) {
	cmd.Flags().String("content", "", "content as a literal string")
	cmd.Flags().StringP("file", "f", "", "read content from a file (- for stdin)")
}

// resolveRefs maps cell ids or short ids to cell ids.
func resolveRefs(cmd *cobra.Command, refs ...string) ([]domain.CellID, error) {
	ids := make([]domain.CellID, len(refs))
	for i, ref := range refs {
		id, err := cellService.ResolveRef(cmd.Context(), ref)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func shortLabel(c domain.Cell) string {
	if c.Name != "" {
		return fmt.Sprintf("%s (%s)", c.ShortID, c.Name)
	}
	return c.ShortID
}

// displayRef prefers a cell's short id over its full id.
func displayRef(id domain.CellID) string {
	if cellReader != nil {
		if c, err := cellReader.Get(id); err == nil {
			return c.ShortID
		}
	}
	return string(id)
}
