package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSelfReference indicates a relationship whose endpoints are the same cell.
	ErrSelfReference = errors.New("relationship endpoints must differ")

	// ErrPathResolution indicates a non-inline cell has no usable path.
	ErrPathResolution = errors.New("path resolution failed")

	// ErrIO indicates a filesystem operation failed.
	ErrIO = errors.New("io failure")

	// ErrConflict indicates an external edit diverged from in-app changes.
	ErrConflict = errors.New("edit conflict")

	// ErrRetentionConfig indicates a journal retention below one.
	ErrRetentionConfig = errors.New("journal retention must be at least 1")

	// ErrEditInProgress indicates the cell's file is leased to an external editor.
	ErrEditInProgress = errors.New("external edit in progress")

	// ErrNoEditor indicates no editor could be resolved.
	ErrNoEditor = errors.New("no editor found")

	// ErrCorruptJournal indicates a snapshot that cannot be decoded or applied.
	ErrCorruptJournal = errors.New("corrupt journal entry")
)

// ConflictError is returned when an external edit cannot be synced
// because the in-app content changed during the edit window.
type ConflictError struct {
	CellID       CellID
	ShortID      string
	ArtifactPath string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cell %s changed in-app during external edit; both versions written to %s",
		e.ShortID, e.ArtifactPath)
}

// Unwrap lets errors.Is match ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// NewIOError builds an IOError.
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrIO and the underlying cause.
func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}
