package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// Export file layout inside the destination directory.
const (
	exportManifest   = "cells.json"
	exportContentDir = "content"
	exportVersion    = 1
)

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Export the project to a directory",
	Long: `Write every cell with its content and the relationships to cells.json in
dir, and copy the project's content files to dir/content.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

type exportFile struct {
	Version       int                   `json:"version"`
	ExportedAt    time.Time             `json:"exported_at"`
	Cells         []exportCell          `json:"cells"`
	Relationships []domain.Relationship `json:"relationships"`
}

type exportCell struct {
	Cell     domain.Cell `json:"cell"`
	Content  string      `json:"content"`
	Encoding string      `json:"encoding,omitempty"`
}

func runExport(cmd *cobra.Command, args []string) error {
	if transferService == nil || cellReader == nil {
		return errNotConfigured("transfer")
	}
	dst := args[0]
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	out := exportFile{
		Version:       exportVersion,
		ExportedAt:    time.Now().UTC(),
		Cells:         []exportCell{},
		Relationships: cellReader.Relationships(),
	}
	err := transferService.Iterate(cmd.Context(), func(cell domain.Cell, content []byte) error {
		out.Cells = append(out.Cells, newExportCell(cell, content))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to read cells: %w", err)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	manifest := filepath.Join(dst, exportManifest)
	if err := atomic.WriteFile(manifest, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", manifest, err)
	}

	files, err := transferService.CopyContentTree(cmd.Context(), filepath.Join(dst, exportContentDir))
	if err != nil {
		return fmt.Errorf("failed to copy content: %w", err)
	}

	cmd.Printf("Exported %d cells and %d relationships to %s (%d content files)\n",
		len(out.Cells), len(out.Relationships), dst, files)
	return nil
}

func newExportCell(cell domain.Cell, content []byte) exportCell {
	if utf8.Valid(content) {
		return exportCell{Cell: cell, Content: string(content)}
	}
	return exportCell{Cell: cell, Content: base64.StdEncoding.EncodeToString(content), Encoding: "base64"}
}
