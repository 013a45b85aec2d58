package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// SnapshotCache holds raw introspected-schema snapshots keyed by database
// name. Nothing in this module reads or fills it: the drift Watcher diffs
// against its CompiledSchema's Schema directly (see watcher.go).
type SnapshotCache struct {
	cache *lru.TwoQueueCache[string, []byte]
}

// NewSnapshotCache returns a cache holding up to size entries.
func NewSnapshotCache(size int) (*SnapshotCache, error) {
	c, err := lru.New2Q[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &SnapshotCache{cache: c}, nil
}

// Get returns the cached snapshot for a database name.
func (c *SnapshotCache) Get(name string) ([]byte, bool) {
	return c.cache.Get(name)
}

// Put stores the snapshot for a database name.
func (c *SnapshotCache) Put(name string, snapshot []byte) {
	c.cache.Add(name, snapshot)
}
