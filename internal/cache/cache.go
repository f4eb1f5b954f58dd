// Package cache implements the bounded LRU embedding cache described in
// spec §4.2 (C2): an advisory layer over the vector store so repeated
// graph-descent reads of the same block don't all hit the memory map.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dewey-index/dewey/internal/vector"
)

// Reader is the subset of vector.Store the cache needs. Kept as an
// interface so tests can substitute a counting stub.
type Reader interface {
	Read(id vector.BlockID) ([]float32, error)
}

// Cache is a bounded LRU mapping BlockID to Vector, fronting a Reader.
// Correctness never depends on a hit: Get always returns the right
// vector whether or not capacity is 0 (the per spec §9 "advisory cache"
// requirement — tests must pass identically at capacity 0 and capacity
// infinity).
type Cache struct {
	backing Reader
	lru     *lru.Cache[vector.BlockID, []float32]
}

// New creates a Cache fronting backing with room for capacity entries.
// capacity <= 0 disables caching entirely: every Get is a pass-through
// read, which is semantically identical to an always-miss cache.
func New(backing Reader, capacity int) *Cache {
	c := &Cache{backing: backing}
	if capacity > 0 {
		l, _ := lru.New[vector.BlockID, []float32](capacity)
		c.lru = l
	}
	return c
}

// Get returns the vector for id, consulting the cache before falling
// back to the backing store. A hit moves the entry to MRU; a miss reads
// through and inserts at MRU, evicting LRU if over capacity.
func (c *Cache) Get(id vector.BlockID) ([]float32, error) {
	if c.lru != nil {
		if v, ok := c.lru.Get(id); ok {
			return v, nil
		}
	}

	v, err := c.backing.Read(id)
	if err != nil {
		return nil, err
	}

	if c.lru != nil {
		c.lru.Add(id, v)
	}
	return v, nil
}

// Len returns the number of entries currently cached (0 when disabled).
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops all cached entries without affecting the backing store.
func (c *Cache) Purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}
