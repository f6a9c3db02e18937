package server

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func TestNewCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()
	require.NotNil(t, registry)
	assert.NotNil(t, registry.store)
	assert.Empty(t, registry.List())
}

func TestCommandRegistry_RegisterMarksMutating(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("about", noopHandler)
	registry.Register("create_object", noopHandler)
	registry.RegisterMutating("custom_write", noopHandler)

	about, ok := registry.Get("about")
	require.True(t, ok)
	assert.False(t, about.Mutating)

	create, ok := registry.Get("create_object")
	require.True(t, ok)
	assert.True(t, create.Mutating)

	custom, ok := registry.Get("custom_write")
	require.True(t, ok)
	assert.True(t, custom.Mutating)
}

func TestCommandRegistry_Replace(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("about", noopHandler)
	registry.Register("about", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"v": 2}, nil
	})

	entry, ok := registry.Get("about")
	require.True(t, ok)
	result, err := entry.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result["v"])
	assert.Len(t, registry.List(), 1)
}

func TestCommandRegistry_GetNotFound(t *testing.T) {
	registry := NewCommandRegistry()
	_, ok := registry.Get("nonexistent")
	assert.False(t, ok)
}

func TestCommandRegistry_Delete(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("about", noopHandler)
	registry.Delete("about")
	registry.Delete("nonexistent")

	_, ok := registry.Get("about")
	assert.False(t, ok)
}

func TestCommandRegistry_ListSorted(t *testing.T) {
	registry := NewCommandRegistry()
	for _, name := range []string{"modify_object", "about", "get_scene_info"} {
		registry.Register(name, noopHandler)
	}

	var names []string
	for _, e := range registry.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"about", "get_scene_info", "modify_object"}, names)
}

func TestCommandRegistry_RejectsBadEntries(t *testing.T) {
	registry := NewCommandRegistry()
	assert.Panics(t, func() { registry.Register("", noopHandler) })
	assert.Panics(t, func() { registry.Register("about", nil) })
}

func TestCommandRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewCommandRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.Register(fmt.Sprintf("cmd-%d", id), noopHandler)
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.Get(fmt.Sprintf("cmd-%d", id))
				registry.List()
			}
		}(i)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				registry.Delete(fmt.Sprintf("cmd-%d", id))
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, len(registry.List()), 10)
}
