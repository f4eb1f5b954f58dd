// Package hnsw implements the persistent hierarchical proximity graph
// described in spec §4.6 (C6): a multi-layer navigable small world graph
// over BlockIDs, supporting incremental insertion and top-k approximate
// nearest-neighbor search under cosine distance.
package hnsw

import (
	"math"
	"math/rand"
	"sync"

	"github.com/dewey-index/dewey/internal/vector"
)

// BlockID is the stable 64-bit identifier a graph node is keyed by.
type BlockID = vector.BlockID

// noEntryPoint is the wire-format sentinel for "graph is empty"
// (spec §6: "entry_point(u64, all-ones = none)").
const noEntryPoint BlockID = ^BlockID(0)

// Config holds the build-time parameters named in spec §4.6. Defaults
// match the spec exactly: M=16, M0=32, EfConstruction=200,
// EfSearchDefault=50.
type Config struct {
	M               int
	M0              int
	EfConstruction  int
	EfSearchDefault int
}

// DefaultConfig returns the spec's default build parameters.
func DefaultConfig() Config {
	return Config{
		M:               16,
		M0:              32,
		EfConstruction:  200,
		EfSearchDefault: 50,
	}
}

// levelMultiplier is 1/ln(M), used by the level-draw in Insert.
func (c Config) levelMultiplier() float64 {
	return 1.0 / math.Log(float64(c.M))
}

// node is one graph node (spec §3, "Graph node"): a maximum layer plus,
// for each layer 0..=level, an ordered neighbor list capped at M0 (layer
// 0) or M (all higher layers).
type node struct {
	mu        sync.RWMutex
	vec       []float32
	level     int
	neighbors [][]BlockID // neighbors[l] is the neighbor list at layer l
}

// Graph is the persistent HNSW index (C6). All exported methods are
// safe for concurrent use; callers needing the single-writer/multi-reader
// posture described in spec §5 serialize writers themselves (the index
// coordinator holds that lock), but Graph's own mutex makes it safe even
// without that discipline.
type Graph struct {
	mu sync.RWMutex

	cfg Config

	nodes      map[BlockID]*node
	entryPoint BlockID
	hasEntry   bool
	maxLevel   int
	maxSeenID  BlockID

	rng *rand.Rand
}

// New creates an empty graph with the given configuration. rngSeed pins
// the level-draw RNG for determinism (spec §9: "the level-draw RNG must
// be seedable; test harness pins the seed").
func New(cfg Config, rngSeed int64) *Graph {
	return &Graph{
		cfg:   cfg,
		nodes: make(map[BlockID]*node),
		rng:   rand.New(rand.NewSource(rngSeed)),
	}
}

// Len returns the number of live nodes in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EntryPoint returns the current entry point and whether the graph is
// non-empty.
func (g *Graph) EntryPoint() (BlockID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entryPoint, g.hasEntry
}

// MaxLevel returns the graph's current maximum level.
func (g *Graph) MaxLevel() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.maxLevel
}

// Config returns the graph's build parameters.
func (g *Graph) Config() Config {
	return g.cfg
}

// SetEfSearchDefault overrides the search-time default beam width. It is
// not part of graph.bin's wire format (spec §6); the coordinator applies
// its configured value after Load since ef_search_default is a runtime
// search tuning knob, not a structural graph parameter.
func (g *Graph) SetEfSearchDefault(ef int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.EfSearchDefault = ef
}

// EfSearchDefault returns the configured default search beam width.
func (g *Graph) EfSearchDefault() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.EfSearchDefault
}

// NeighborsAt returns a copy of id's neighbor list at layer l, for tests
// and for the persistence layer.
func (g *Graph) NeighborsAt(id BlockID, l int) []BlockID {
	g.mu.RLock()
	n, ok := g.nodes[id]
	g.mu.RUnlock()
	if !ok {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if l >= len(n.neighbors) {
		return nil
	}
	out := make([]BlockID, len(n.neighbors[l]))
	copy(out, n.neighbors[l])
	return out
}

// Level returns id's maximum layer, and whether id is present.
func (g *Graph) Level(id BlockID) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.level, true
}

// capacityFor returns the neighbor-list capacity at layer l: M0 at layer
// 0, M above (spec §3).
func (c Config) capacityFor(l int) int {
	if l == 0 {
		return c.M0
	}
	return c.M
}
