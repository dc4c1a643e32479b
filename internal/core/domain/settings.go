package domain

import (
	"fmt"
	"time"
)

// Settings holds user-tunable behaviour.
type Settings struct {
	Journal    JournalSettings    `json:"journal"`
	Cache      CacheSettings      `json:"cache"`
	Reconciler ReconcilerSettings `json:"reconciler"`
	Editor     EditorSettings     `json:"editor"`
	Remote     RemoteSettings     `json:"remote"`
}

// JournalSettings configures the snapshot journal.
type JournalSettings struct {
	// Retention is how many snapshots are kept. Must be at least 1.
	Retention int `json:"retention"`
}

// CacheSettings configures the lazy content cache.
type CacheSettings struct {
	// Capacity is the number of content payloads kept resident.
	Capacity int `json:"capacity"`
}

// ReconcilerSettings configures the external edit watcher.
type ReconcilerSettings struct {
	PollInterval time.Duration `json:"poll_interval"`
}

// EditorSettings configures the external editor.
type EditorSettings struct {
	// Command overrides $EDITOR. It may contain arguments.
	Command string `json:"command"`
}

// RemoteSettings configures fetching of remote content.
type RemoteSettings struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Journal:    JournalSettings{Retention: 50},
		Cache:      CacheSettings{Capacity: 100},
		Reconciler: ReconcilerSettings{PollInterval: 500 * time.Millisecond},
		Remote:     RemoteSettings{RequestsPerSecond: 2},
	}
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if s.Journal.Retention < 1 {
		return fmt.Errorf("%w: got %d", ErrRetentionConfig, s.Journal.Retention)
	}
	if s.Cache.Capacity < 1 {
		return fmt.Errorf("%w: cache capacity must be at least 1", ErrInvalidInput)
	}
	if s.Reconciler.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidInput)
	}
	if s.Remote.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: remote request rate must be positive", ErrInvalidInput)
	}
	return nil
}
