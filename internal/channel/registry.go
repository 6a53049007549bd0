package channel

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// Registry is the durable catalog of channels and their origin URLs.
// The relay reads it at startup and the admin API mutates it.
type Registry interface {
	// Add records src. It returns ErrAlreadyExists if src.ID is taken.
	Add(ctx context.Context, src Source) error

	// Remove deletes the channel. It returns ErrNotFound if id is unknown.
	Remove(ctx context.Context, id ID) error

	// Get returns the source registered for id, or ErrNotFound.
	Get(ctx context.Context, id ID) (Source, error)

	// List returns every registered source ordered by name, then version.
	List(ctx context.Context) ([]Source, error)
}

var (
	// ErrAlreadyExists is returned when adding a channel whose ID is registered.
	ErrAlreadyExists = errors.New("channel already exists")

	// ErrNotFound is returned when the channel is not registered.
	ErrNotFound = errors.New("channel not found")
)

// MemoryRegistry is a concurrency-safe in-memory Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	sources map[ID]Source
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sources: make(map[ID]Source)}
}

// Add implements Registry.Add.
func (r *MemoryRegistry) Add(_ context.Context, src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[src.ID]; exists {
		return ErrAlreadyExists
	}
	r.sources[src.ID] = src
	return nil
}

// Remove implements Registry.Remove.
func (r *MemoryRegistry) Remove(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[id]; !exists {
		return ErrNotFound
	}
	delete(r.sources, id)
	return nil
}

// Get implements Registry.Get.
func (r *MemoryRegistry) Get(_ context.Context, id ID) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	if !ok {
		return Source{}, ErrNotFound
	}
	return src, nil
}

// List implements Registry.List.
func (r *MemoryRegistry) List(_ context.Context) ([]Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	slices.SortFunc(out, func(a, b Source) int { return a.ID.Compare(b.ID) })
	return out, nil
}
