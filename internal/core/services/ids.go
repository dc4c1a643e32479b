package services

import (
	"github.com/oklog/ulid/v2"

	"github.com/custodia-labs/cellstore/internal/core/domain"
)

func newCellID() domain.CellID {
	return domain.CellID(ulid.Make().String())
}

func newSnapshotID() string {
	return ulid.Make().String()
}

// isCellID reports whether ref is a well-formed ULID.
func isCellID(ref string) bool {
	_, err := ulid.ParseStrict(ref)
	return err == nil
}
