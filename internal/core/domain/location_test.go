package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locPtr(l ContentLocation) *ContentLocation { return &l }

func strPtr(s string) *string { return &s }

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		name     string
		rule     StorageRule
		size     int64
		pref     *ContentLocation
		expected ContentLocation
	}{
		{"always external ignores preference", StorageAlwaysExternal, 10, locPtr(LocationInline), LocationExternal},
		{"always external small payload", StorageAlwaysExternal, 0, nil, LocationExternal},
		{"always inline ignores preference", StorageAlwaysInline, 10, locPtr(LocationExternal), LocationInline},
		{"size dependent at threshold stays inline", StorageSizeDependent, InlineThreshold, nil, LocationInline},
		{"size dependent above threshold goes external", StorageSizeDependent, InlineThreshold + 1, nil, LocationExternal},
		{"size dependent above threshold beats preference", StorageSizeDependent, InlineThreshold + 1, locPtr(LocationInline), LocationExternal},
		{"size dependent small honours preference", StorageSizeDependent, 10, locPtr(LocationExternal), LocationExternal},
		{"user choice honours symlink", StorageUserChoice, 5, locPtr(LocationSymlink), LocationSymlink},
		{"user choice large still honours preference", StorageUserChoice, InlineThreshold * 4, locPtr(LocationInline), LocationInline},
		{"user choice default inline", StorageUserChoice, 5, nil, LocationInline},
		{"invalid preference falls back", StorageUserChoice, 5, locPtr("floppy"), LocationInline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveLocation(tt.rule, tt.size, tt.pref))
		})
	}
}

func TestCellType_StorageRule(t *testing.T) {
	assert.Equal(t, StorageAlwaysExternal, CellTypePython.StorageRule())
	assert.Equal(t, StorageSizeDependent, CellTypeText.StorageRule())
	assert.Equal(t, StorageSizeDependent, CellTypeMarkdown.StorageRule())
	assert.Equal(t, StorageUserChoice, CellTypeJSON.StorageRule())
}

func TestProjectLayout_ResolvePath(t *testing.T) {
	layout := NewProjectLayout(filepath.Join("/work", "board.cells"))
	assert.Equal(t, filepath.Join("/work", "board_content"), layout.ContentDir)

	t.Run("external relative to content dir", func(t *testing.T) {
		got, err := layout.ResolvePath(LocationExternal, strPtr("cells/abc.py"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/work", "board_content", "cells", "abc.py"), got)
	})

	t.Run("remote maps to url hash in cache", func(t *testing.T) {
		url := "https://example.com/data.json"
		got, err := layout.ResolvePath(LocationRemote, &url)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(layout.ContentDir, CacheDir, HashContent([]byte(url))), got)
	})

	t.Run("symlink verbatim", func(t *testing.T) {
		got, err := layout.ResolvePath(LocationSymlink, strPtr("/home/me/notes.md"))
		require.NoError(t, err)
		assert.Equal(t, "/home/me/notes.md", got)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := layout.ResolvePath(LocationExternal, nil)
		assert.True(t, errors.Is(err, ErrPathResolution))

		_, err = layout.ResolvePath(LocationSymlink, strPtr(""))
		assert.True(t, errors.Is(err, ErrPathResolution))
	})

	t.Run("inline has no path", func(t *testing.T) {
		_, err := layout.ResolvePath(LocationInline, strPtr("x"))
		assert.True(t, errors.Is(err, ErrPathResolution))
	})
}

func TestHashContent(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashContent(nil))
	assert.NotEqual(t, HashContent([]byte("a")), HashContent([]byte("b")))
}

func TestParseContentLocation(t *testing.T) {
	l, err := ParseContentLocation(" External ")
	require.NoError(t, err)
	assert.Equal(t, LocationExternal, l)

	_, err = ParseContentLocation("tape")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
