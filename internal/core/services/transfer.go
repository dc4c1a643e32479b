package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

// Ensure TransferService implements the interface.
var _ driving.TransferService = (*TransferService)(nil)

// TransferService reads a whole project for export.
type TransferService struct {
	store driven.CellStore
}

// NewTransferService creates a new transfer service.
func NewTransferService(store driven.CellStore) *TransferService {
	return &TransferService{store: store}
}

// Iterate calls fn for every cell with its content, oldest first. It stops
// at the first error.
func (s *TransferService) Iterate(ctx context.Context, fn func(cell domain.Cell, content []byte) error) error {
	cells, err := s.store.ListCells(ctx)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return err
		}
		content, err := s.store.ReadContent(ctx, cell)
		if err != nil {
			return fmt.Errorf("reading %s: %w", cell.ShortID, err)
		}
		if err := fn(cell, content); err != nil {
			return err
		}
	}
	return nil
}

// CopyContentTree copies the sidecar directories into dst, keeping their
// relative layout. Missing directories are skipped.
func (s *TransferService) CopyContentTree(ctx context.Context, dst string) (int, error) {
	root := s.store.Layout().ContentDir
	if abs, err := filepath.Abs(dst); err == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && filepath.IsLocal(rel) {
			return 0, fmt.Errorf("%w: destination %s is inside the content directory", domain.ErrInvalidInput, dst)
		}
	}

	copied := 0
	for _, dir := range []string{domain.CellsDir, domain.AttachmentsDir, domain.CacheDir} {
		src := filepath.Join(root, dir)
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && path == src {
					return fs.SkipDir
				}
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return domain.NewIOError("read", path, err)
			}
			target := filepath.Join(dst, rel)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return domain.NewIOError("mkdir", filepath.Dir(target), err)
			}
			if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
				return domain.NewIOError("write", target, err)
			}
			copied++
			return nil
		})
		if err != nil {
			return copied, fmt.Errorf("copying %s: %w", dir, err)
		}
	}
	return copied, nil
}
