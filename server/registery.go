package server

import (
	"context"
	"sort"
	"sync"
)

// Handler executes one command against the host model.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// MutatingCommands must always run on the owner thread.
var MutatingCommands = map[string]struct{}{
	"create_object": {},
	"modify_object": {},
	"delete_object": {},
}

type CommandEntry struct {
	Name     string
	Handler  Handler
	Mutating bool
}

type CommandRegistry struct {
	mu    sync.RWMutex
	store map[string]CommandEntry
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{store: make(map[string]CommandEntry)}
}

// Register adds a handler. It is routed through the owner thread when its name
// is in MutatingCommands.
func (r *CommandRegistry) Register(name string, h Handler) {
	_, mutating := MutatingCommands[name]
	r.put(CommandEntry{Name: name, Handler: h, Mutating: mutating})
}

// RegisterMutating adds a handler that always runs on the owner thread.
func (r *CommandRegistry) RegisterMutating(name string, h Handler) {
	r.put(CommandEntry{Name: name, Handler: h, Mutating: true})
}

func (r *CommandRegistry) put(e CommandEntry) {
	if e.Name == "" {
		panic("command name cannot be empty")
	}
	if e.Handler == nil {
		panic("command handler cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[e.Name] = e
}

func (r *CommandRegistry) Get(name string) (CommandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.store[name]
	return e, ok
}

func (r *CommandRegistry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, name)
}

// List returns the registered commands sorted by name.
func (r *CommandRegistry) List() []CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]CommandEntry, 0, len(r.store))
	for _, e := range r.store {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
