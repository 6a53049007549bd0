package relay

import (
	"sync"

	"hls-relay/internal/channel"
)

// SnapshotCache holds the current Snapshot of every relayed channel.
// Put replaces an entry as a single pointer swap, so readers observe either
// the previous snapshot or the new one and never a mix of two poll cycles.
// Replace swaps the snapshot only while an entry exists, so a removed channel
// stays removed.
type SnapshotCache interface {
	Put(id channel.ID, snap *Snapshot)
	Replace(id channel.ID, snap *Snapshot) bool
	Get(id channel.ID) (*Snapshot, bool)
	Remove(id channel.ID)
	Len() int
}

// InMemoryCache is the process-wide SnapshotCache.
type InMemoryCache struct {
	mu        sync.RWMutex
	snapshots map[channel.ID]*Snapshot
}

// NewInMemoryCache returns an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{snapshots: make(map[channel.ID]*Snapshot)}
}

// Put implements SnapshotCache.Put.
func (c *InMemoryCache) Put(id channel.ID, snap *Snapshot) {
	c.mu.Lock()
	c.snapshots[id] = snap
	c.mu.Unlock()
}

// Replace implements SnapshotCache.Replace. It reports whether id was present.
func (c *InMemoryCache) Replace(id channel.ID, snap *Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.snapshots[id]; !ok {
		return false
	}
	c.snapshots[id] = snap
	return true
}

// Get implements SnapshotCache.Get. The ok result distinguishes an unknown
// channel from one holding an empty snapshot.
func (c *InMemoryCache) Get(id channel.ID) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.snapshots[id]
	return snap, ok
}

// Remove implements SnapshotCache.Remove.
func (c *InMemoryCache) Remove(id channel.ID) {
	c.mu.Lock()
	delete(c.snapshots, id)
	c.mu.Unlock()
}

// Len implements SnapshotCache.Len.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
