package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cellstore/internal/core/ports/driven"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.values)
}

func TestConfigStore_Set_Update(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("journal.retention", 10))
	require.NoError(t, store.Set("journal.retention", 20))

	val, ok := store.Get("journal.retention")
	assert.True(t, ok)
	assert.Equal(t, 20, val)
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store := NewConfigStore()

	val, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_GetString(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("editor.command", "code --wait")
	_ = store.Set("cache.capacity", 100)

	assert.Equal(t, "code --wait", store.GetString("editor.command"))
	assert.Empty(t, store.GetString("cache.capacity"))
	assert.Empty(t, store.GetString("missing"))
}

func TestConfigStore_GetInt(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 42, 42},
		{"int64", int64(42), 42},
		{"float64", float64(42), 42},
		{"string", "42", 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewConfigStore()
			_ = store.Set("key", tt.value)
			assert.Equal(t, tt.want, store.GetInt("key"))
		})
	}
	assert.Zero(t, NewConfigStore().GetInt("missing"))
}

func TestConfigStore_GetFloat(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
	}{
		{"float64", 2.5, 2.5},
		{"int", 3, 3},
		{"int64", int64(4), 4},
		{"string", "2.5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewConfigStore()
			_ = store.Set("remote.requests_per_second", tt.value)
			assert.InDelta(t, tt.want, store.GetFloat("remote.requests_per_second"), 1e-9)
		})
	}
}

func TestConfigStore_GetBool(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("enabled", true)
	_ = store.Set("wrong", "true")

	assert.True(t, store.GetBool("enabled"))
	assert.False(t, store.GetBool("wrong"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_SaveLoad_NoOp(t *testing.T) {
	store := NewConfigStore()
	_ = store.Set("key", "value")

	require.NoError(t, store.Save())
	require.NoError(t, store.Load())
	assert.Equal(t, "value", store.GetString("key"))
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_InterfaceCompliance(t *testing.T) {
	var _ driven.ConfigStore = NewConfigStore()
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set(fmt.Sprintf("key.%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_ = store.GetInt(fmt.Sprintf("key.%d", n))
		}(i)
	}
	wg.Wait()

	for i := range 50 {
		assert.Equal(t, i, store.GetInt(fmt.Sprintf("key.%d", i)))
	}
}
