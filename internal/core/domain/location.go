package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// InlineThreshold is the largest payload, in bytes, a size-dependent cell
// keeps inline.
const InlineThreshold = 1 << 20

// ContentLocation says where a cell's payload physically lives.
type ContentLocation string

// Content locations.
const (
	// LocationInline stores the payload in the metadata store.
	LocationInline ContentLocation = "inline"

	// LocationExternal stores the payload in a sidecar file under the
	// project content directory.
	LocationExternal ContentLocation = "external"

	// LocationRemote fetches the payload from a URL and caches it locally.
	LocationRemote ContentLocation = "remote"

	// LocationSymlink points at a user file outside the project.
	LocationSymlink ContentLocation = "symlink"
)

// IsValid returns true if the location is recognised.
func (l ContentLocation) IsValid() bool {
	switch l {
	case LocationInline, LocationExternal, LocationRemote, LocationSymlink:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (l ContentLocation) String() string {
	return string(l)
}

// ParseContentLocation converts a string into a ContentLocation.
func ParseContentLocation(s string) (ContentLocation, error) {
	l := ContentLocation(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: unknown content location %q", ErrInvalidInput, s)
	}
	return l, nil
}

// StorageRule is the placement policy of a content kind.
type StorageRule string

// Storage rules.
const (
	StorageAlwaysExternal StorageRule = "always_external"
	StorageAlwaysInline   StorageRule = "always_inline"
	StorageUserChoice     StorageRule = "user_choice"
	StorageSizeDependent  StorageRule = "size_dependent"
)

// ResolveLocation decides where content of the given rule and size lives.
// It is pure and deterministic. Precedence: kinds that always live
// externally, then kinds that always live inline, then size-dependent
// payloads above InlineThreshold, then the explicit preference, then inline.
func ResolveLocation(rule StorageRule, size int64, preference *ContentLocation) ContentLocation {
	switch {
	case rule == StorageAlwaysExternal:
		return LocationExternal
	case rule == StorageAlwaysInline:
		return LocationInline
	case rule == StorageSizeDependent && size > InlineThreshold:
		return LocationExternal
	case preference != nil && preference.IsValid():
		return *preference
	default:
		return LocationInline
	}
}

// Content directory layout beneath ProjectLayout.ContentDir.
const (
	CellsDir       = "cells"
	AttachmentsDir = "attachments"
	CacheDir       = "cache"
	ConflictsDir   = "conflicts"
)

// ProjectLayout maps stored paths onto the filesystem for one project.
type ProjectLayout struct {
	// StorePath is the metadata store file.
	StorePath string

	// ContentDir holds cells/, attachments/ and cache/.
	ContentDir string
}

// NewProjectLayout derives the content directory from the store file:
// "work/board.cells" keeps its content in "work/board_content".
func NewProjectLayout(storePath string) ProjectLayout {
	base := strings.TrimSuffix(storePath, filepath.Ext(storePath))
	return ProjectLayout{
		StorePath:  storePath,
		ContentDir: base + "_content",
	}
}

// ExternalPath returns the stored (relative) path for a new sidecar file.
func (p ProjectLayout) ExternalPath(id CellID, t CellType) string {
	return filepath.ToSlash(filepath.Join(CellsDir, string(id)+t.Extension()))
}

// ResolvePath returns the concrete filesystem path for non-inline content.
// External paths are relative to ContentDir, remote URLs map to a cache
// file keyed by the URL hash, and symlink paths are used verbatim.
func (p ProjectLayout) ResolvePath(location ContentLocation, stored *string) (string, error) {
	if location == LocationInline {
		return "", fmt.Errorf("%w: inline content has no file", ErrPathResolution)
	}
	if stored == nil || *stored == "" {
		return "", fmt.Errorf("%w: %s content has no stored path", ErrPathResolution, location)
	}
	switch location {
	case LocationExternal:
		if filepath.IsAbs(*stored) {
			return filepath.Clean(*stored), nil
		}
		return filepath.Join(p.ContentDir, filepath.FromSlash(*stored)), nil
	case LocationRemote:
		return filepath.Join(p.ContentDir, CacheDir, HashContent([]byte(*stored))), nil
	case LocationSymlink:
		return *stored, nil
	default:
		return "", fmt.Errorf("%w: unknown content location %q", ErrPathResolution, location)
	}
}

// OwnsFile reports whether the project manages the file's lifetime.
// Symlinked user files and remote caches are never removed with the cell.
func (p ProjectLayout) OwnsFile(location ContentLocation) bool {
	return location == LocationExternal
}

// HashContent returns the hex SHA-256 of raw content bytes.
func HashContent(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
