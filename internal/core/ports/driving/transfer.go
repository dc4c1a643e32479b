package driving

import (
	"context"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

// TransferService exposes whole-project reads for export.
type TransferService interface {
	// Iterate calls fn for every cell with its content, oldest first.
	Iterate(ctx context.Context, fn func(cell domain.Cell, content []byte) error) error

	// CopyContentTree copies cells/, attachments/ and cache/ into dst and
	// returns the number of files copied.
	CopyContentTree(ctx context.Context, dst string) (int, error)
}
