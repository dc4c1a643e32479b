package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cellstore/internal/core/domain"
)

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSettings(), *settings)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("journal.retention", 10)
	_ = store.Set("cache.capacity", 25)
	_ = store.Set("reconciler.poll_interval_ms", 250)
	_ = store.Set("editor.command", "code --wait")
	_ = store.Set("remote.requests_per_second", 0.5)

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.Equal(t, 10, settings.Journal.Retention)
	assert.Equal(t, 25, settings.Cache.Capacity)
	assert.Equal(t, 250*time.Millisecond, settings.Reconciler.PollInterval)
	assert.Equal(t, "code --wait", settings.Editor.Command)
	assert.InDelta(t, 0.5, settings.Remote.RequestsPerSecond, 1e-9)
}

func TestSettingsService_Get_BadRetentionSurfaces(t *testing.T) {
	store := memory.NewConfigStore()
	_ = store.Set("journal.retention", 0)

	settings, err := NewSettingsService(store).Get()

	require.NoError(t, err)
	assert.ErrorIs(t, settings.Validate(), domain.ErrRetentionConfig)
}

func TestSettingsService_Save_Validates(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store)
	settings := domain.DefaultSettings()
	settings.Journal.Retention = 0

	err := service.Save(&settings)

	assert.ErrorIs(t, err, domain.ErrRetentionConfig)
	_, ok := store.Get("journal.retention")
	assert.False(t, ok)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, s *domain.Settings)
	}{
		{"journal.retention", "7", func(t *testing.T, s *domain.Settings) {
			assert.Equal(t, 7, s.Journal.Retention)
		}},
		{"cache.capacity", "12", func(t *testing.T, s *domain.Settings) {
			assert.Equal(t, 12, s.Cache.Capacity)
		}},
		{"reconciler.poll_interval_ms", "100", func(t *testing.T, s *domain.Settings) {
			assert.Equal(t, 100*time.Millisecond, s.Reconciler.PollInterval)
		}},
		{"editor.command", " nano ", func(t *testing.T, s *domain.Settings) {
			assert.Equal(t, "nano", s.Editor.Command)
		}},
		{"remote.requests_per_second", "4.5", func(t *testing.T, s *domain.Settings) {
			assert.InDelta(t, 4.5, s.Remote.RequestsPerSecond, 1e-9)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			service := NewSettingsService(memory.NewConfigStore())

			require.NoError(t, service.Set(tt.key, tt.value))

			settings, err := service.Get()
			require.NoError(t, err)
			tt.check(t, settings)
		})
	}
}

func TestSettingsService_Set_Errors(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore())

	assert.ErrorIs(t, service.Set("journal.retention", "0"), domain.ErrRetentionConfig)
	assert.ErrorIs(t, service.Set("journal.retention", "many"), domain.ErrRetentionConfig)
	assert.ErrorIs(t, service.Set("cache.capacity", "-1"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.Set("remote.requests_per_second", "fast"), domain.ErrInvalidInput)
	assert.ErrorIs(t, service.Set("search.mode", "hybrid"), domain.ErrInvalidInput)
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(memory.NewConfigStore()).Keys()

	assert.Equal(t, []string{
		"cache.capacity",
		"editor.command",
		"journal.retention",
		"reconciler.poll_interval_ms",
		"remote.requests_per_second",
	}, keys)
}
