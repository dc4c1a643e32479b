package services

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/cellstore/internal/core/domain"
	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
	"github.com/custodia-labs/cellstore/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	keyJournalRetention  = "journal.retention"
	keyCacheCapacity     = "cache.capacity"
	keyPollIntervalMS    = "reconciler.poll_interval_ms"
	keyEditorCommand     = "editor.command"
	keyRemoteRatePerSecs = "remote.requests_per_second"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current settings. Missing or non-positive values fall
// back to defaults, except retention which is reported as configured so
// a bad value surfaces as an error.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Journal: domain.JournalSettings{
			Retention: defaults.Journal.Retention,
		},
		Cache: domain.CacheSettings{
			Capacity: s.getInt(keyCacheCapacity, defaults.Cache.Capacity),
		},
		Reconciler: domain.ReconcilerSettings{
			PollInterval: time.Duration(s.getInt(keyPollIntervalMS, int(defaults.Reconciler.PollInterval/time.Millisecond))) * time.Millisecond,
		},
		Editor: domain.EditorSettings{
			Command: s.configStore.GetString(keyEditorCommand),
		},
		Remote: domain.RemoteSettings{
			RequestsPerSecond: s.getFloat(keyRemoteRatePerSecs, defaults.Remote.RequestsPerSecond),
		},
	}
	if _, ok := s.configStore.Get(keyJournalRetention); ok {
		settings.Journal.Retention = s.configStore.GetInt(keyJournalRetention)
	}

	return settings, nil
}

// Save validates and persists settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.configStore.Set(keyJournalRetention, settings.Journal.Retention); err != nil {
		return fmt.Errorf("save journal retention: %w", err)
	}
	if err := s.configStore.Set(keyCacheCapacity, settings.Cache.Capacity); err != nil {
		return fmt.Errorf("save cache capacity: %w", err)
	}
	if err := s.configStore.Set(keyPollIntervalMS, int(settings.Reconciler.PollInterval/time.Millisecond)); err != nil {
		return fmt.Errorf("save poll interval: %w", err)
	}
	if err := s.configStore.Set(keyEditorCommand, settings.Editor.Command); err != nil {
		return fmt.Errorf("save editor command: %w", err)
	}
	if err := s.configStore.Set(keyRemoteRatePerSecs, settings.Remote.RequestsPerSecond); err != nil {
		return fmt.Errorf("save remote rate: %w", err)
	}

	return nil
}

// Set parses value for key and saves the result.
func (s *SettingsService) Set(key, value string) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)

	switch key {
	case keyJournalRetention:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrRetentionConfig, key)
		}
		settings.Journal.Retention = n
	case keyCacheCapacity:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		settings.Cache.Capacity = n
	case keyPollIntervalMS:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		settings.Reconciler.PollInterval = time.Duration(n) * time.Millisecond
	case keyEditorCommand:
		settings.Editor.Command = value
	case keyRemoteRatePerSecs:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		settings.Remote.RequestsPerSecond = f
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	return s.Save(settings)
}

// Keys lists the recognised setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := []string{
		keyJournalRetention,
		keyCacheCapacity,
		keyPollIntervalMS,
		keyEditorCommand,
		keyRemoteRatePerSecs,
	}
	slices.Sort(keys)
	return keys
}

// getInt returns a positive integer setting or the default.
func (s *SettingsService) getInt(key string, defaultVal int) int {
	if v := s.configStore.GetInt(key); v > 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if v := s.configStore.GetFloat(key); v > 0 {
		return v
	}
	return defaultVal
}
