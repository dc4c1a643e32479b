package sqlite

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/logger"
)

var errNoFetcher = errors.New("no remote fetcher configured")

// readContent loads a cell's bytes from the metadata row or its file.
// Remote cells fall back to the fetcher when the cache file is missing.
func (s *Store) readContent(ctx context.Context, cell domain.Cell) ([]byte, error) {
	if cell.Location == domain.LocationInline {
		if cell.InlineText == nil {
			return []byte{}, nil
		}
		return []byte(*cell.InlineText), nil
	}

	path, err := s.layout.ResolvePath(cell.Location, cell.Path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		return data, nil
	case cell.Location == domain.LocationRemote && errors.Is(err, fs.ErrNotExist):
		return s.fetchRemote(ctx, *cell.Path, path)
	default:
		return nil, domain.NewIOError("reading content", path, err)
	}
}

func (s *Store) fetchRemote(ctx context.Context, url, cachePath string) ([]byte, error) {
	if s.fetcher == nil {
		return nil, domain.NewIOError("fetching", url, errNoFetcher)
	}
	logger.Debug("remote cache miss for %s", url)

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, domain.NewIOError("fetching", url, err)
	}
	// The cache is rebuilt on the next miss, so a failed write only costs a refetch.
	if err := atomic.WriteFile(cachePath, bytes.NewReader(data)); err != nil {
		logger.Warn("caching %s: %v", url, err)
	}
	return data, nil
}
