package hnsw

import (
	"container/heap"
	"math"

	"github.com/bits-and-blooms/bitset"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// TagFilter decides whether a candidate block id survives the final
// result filter (spec §4.6, step 3: "filtering out tombstoned ids and
// ids failing the caller-supplied tag filter"). It is applied only to
// the returned top-k, never to the search frontier (spec's "All
// neighbors tombstoned" edge case).
type TagFilter func(id BlockID) bool

// Tombstoned reports whether id is logically deleted; Graph calls this
// only when filtering final results, never during frontier expansion.
type Tombstoned func(id BlockID) bool

// Insert adds vec (assumed already unit-normalized by the caller, per
// spec §4.6) to the graph under id, running the five-step procedure from
// spec §4.6: draw a level, greedy-descend to the new node's top layer,
// run layer-local search at each layer down to 0, install bidirectional
// edges with heuristic diversity pruning, and update entry_point/
// max_level if the new node exceeds them.
func (g *Graph) Insert(id BlockID, vec []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		return deweyerrors.InvalidArgument("block id already present in graph", nil)
	}

	level := g.randomLevel()
	n := &node{
		vec:       vec,
		level:     level,
		neighbors: make([][]BlockID, level+1),
	}
	for l := range n.neighbors {
		n.neighbors[l] = make([]BlockID, 0, g.cfg.capacityFor(l))
	}
	g.nodes[id] = n
	if id > g.maxSeenID || len(g.nodes) == 1 {
		g.maxSeenID = id
	}

	if !g.hasEntry {
		g.entryPoint = id
		g.hasEntry = true
		g.maxLevel = level
		return nil
	}

	ep := g.entryPoint
	epDist := cosineDistance(vec, g.nodes[ep].vec)

	// Step 3: greedy-descend from max_level down to l+1.
	for l := g.maxLevel; l > level; l-- {
		ep, epDist = g.greedyDescend(vec, ep, epDist, l)
	}

	// Step 4 + 5: layer-local search and heuristic selection, per layer,
	// from min(level, maxLevel) down to 0.
	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, ep, epDist, l, g.cfg.EfConstruction, nil)
		selected := g.selectNeighborsHeuristic(vec, candidates, g.cfg.capacityFor(l))

		n.neighbors[l] = selected

		for _, nb := range selected {
			g.connect(nb, id, l)
		}

		if len(candidates) > 0 {
			ep = candidates[0].id
			epDist = candidates[0].dist
		}
	}

	// Step 6.
	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = id
	}

	return nil
}

// connect installs id as a neighbor of existing node `of` at layer l,
// trimming to capacity with the heuristic selection rule if the list
// would overflow (spec §4.6 step 5).
func (g *Graph) connect(of, id BlockID, l int) {
	other, ok := g.nodes[of]
	if !ok || l >= len(other.neighbors) {
		return
	}

	other.mu.Lock()
	defer other.mu.Unlock()

	capacity := g.cfg.capacityFor(l)
	if len(other.neighbors[l]) < capacity {
		other.neighbors[l] = append(other.neighbors[l], id)
		return
	}

	union := make([]candidate, 0, len(other.neighbors[l])+1)
	for _, nb := range other.neighbors[l] {
		if nbNode, ok := g.nodes[nb]; ok {
			union = append(union, candidate{id: nb, dist: cosineDistance(other.vec, nbNode.vec)})
		}
	}
	union = append(union, candidate{id: id, dist: cosineDistance(other.vec, g.nodes[id].vec)})

	selected := g.selectNeighborsFromCandidates(other.vec, union, capacity)
	other.neighbors[l] = selected
}

// greedyDescend repeatedly moves to the neighbor of `from` at layer l
// with the smallest distance to query, until no neighbor improves on
// the current best (spec §4.6 step 3).
func (g *Graph) greedyDescend(query []float32, from BlockID, fromDist float32, l int) (BlockID, float32) {
	current := from
	currentDist := fromDist

	for {
		n := g.nodes[current]
		n.mu.RLock()
		neighbors := n.neighbors
		var layerNeighbors []BlockID
		if l < len(neighbors) {
			layerNeighbors = append(layerNeighbors, neighbors[l]...)
		}
		n.mu.RUnlock()

		improved := false
		for _, nb := range layerNeighbors {
			nbNode, ok := g.nodes[nb]
			if !ok {
				continue
			}
			d := cosineDistance(query, nbNode.vec)
			if d < currentDist || (d == currentDist && nb < current) {
				current = nb
				currentDist = d
				improved = true
			}
		}
		if !improved {
			break
		}
	}

	return current, currentDist
}

// searchLayer is the layer-local search primitive (spec §4.6, "the core
// primitive"): a min-heap C of candidates to explore, a max-heap W of
// the ef best-so-far, and a visited bitmap, seeded from entry. It
// returns W drained in ascending-distance order. visitedOverride lets
// Search share a single visited set across the base-layer expansion;
// Insert passes nil to start fresh each call.
func (g *Graph) searchLayer(query []float32, entry BlockID, entryDist float32, l int, ef int, visitedOverride *bitset.BitSet) []candidate {
	visited := visitedOverride
	if visited == nil {
		visited = bitset.New(g.bitsetSize())
	}
	visited.Set(uint(entry))

	c := &minHeap{{id: entry, dist: entryDist}}
	heap.Init(c)
	w := &maxHeap{{id: entry, dist: entryDist}}
	heap.Init(w)

	for c.Len() > 0 {
		closest := heap.Pop(c).(candidate)

		if w.Len() >= ef {
			farthest := (*w)[0]
			if closest.dist > farthest.dist || (closest.dist == farthest.dist && closest.id > farthest.id) {
				break
			}
		}

		n, ok := g.nodes[closest.id]
		if !ok {
			continue
		}
		n.mu.RLock()
		var layerNeighbors []BlockID
		if l < len(n.neighbors) {
			layerNeighbors = append(layerNeighbors, n.neighbors[l]...)
		}
		n.mu.RUnlock()

		for _, nb := range layerNeighbors {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			nbNode, ok := g.nodes[nb]
			if !ok {
				continue
			}
			d := cosineDistance(query, nbNode.vec)

			if w.Len() < ef {
				heap.Push(c, candidate{id: nb, dist: d})
				heap.Push(w, candidate{id: nb, dist: d})
				continue
			}
			farthest := (*w)[0]
			if d < farthest.dist || (d == farthest.dist && nb < farthest.id) {
				heap.Push(c, candidate{id: nb, dist: d})
				heap.Push(w, candidate{id: nb, dist: d})
				heap.Pop(w)
			}
		}
	}

	return sortedFromMaxHeap(w)
}

// selectNeighborsHeuristic runs the diversity-pruning rule from spec
// §4.6 step 4: iteratively pick the closest remaining candidate to
// query that is closer to query than to any already-selected neighbor.
func (g *Graph) selectNeighborsHeuristic(query []float32, candidates []candidate, m int) []BlockID {
	selected := g.selectNeighborsFromCandidates(query, candidates, m)
	return selected
}

func (g *Graph) selectNeighborsFromCandidates(query []float32, candidates []candidate, m int) []BlockID {
	sorted := append([]candidate(nil), candidates...)
	sortCandidatesAscending(sorted)

	result := make([]BlockID, 0, m)
	resultVecs := make([][]float32, 0, m)

	for _, cand := range sorted {
		if len(result) >= m {
			break
		}
		nd, ok := g.nodes[cand.id]
		if !ok {
			continue
		}

		diverse := true
		for _, rv := range resultVecs {
			if cosineDistance(nd.vec, rv) < cand.dist {
				diverse = false
				break
			}
		}
		if diverse {
			result = append(result, cand.id)
			resultVecs = append(resultVecs, nd.vec)
		}
	}

	// If diversity pruning left room (few diverse candidates), fill the
	// remainder with the next-closest candidates not yet selected, so
	// capacity is used whenever candidates exist — the heuristic trims
	// redundancy, it doesn't intentionally under-fill.
	if len(result) < m {
		have := make(map[BlockID]bool, len(result))
		for _, id := range result {
			have[id] = true
		}
		for _, cand := range sorted {
			if len(result) >= m {
				break
			}
			if have[cand.id] {
				continue
			}
			result = append(result, cand.id)
			have[cand.id] = true
		}
	}

	return result
}

func sortCandidatesAscending(c []candidate) {
	// Insertion sort: candidate lists here are bounded by ef_construction
	// (typically a few hundred), so O(n^2) is not a hot path, and it keeps
	// the tie-break rule (spec §4.6) trivially consistent with `less`.
	for i := 1; i < len(c); i++ {
		j := i
		for j > 0 && less(c[j], c[j-1]) {
			c[j], c[j-1] = c[j-1], c[j]
			j--
		}
	}
}

// randomLevel draws l = floor(-ln(U) * levelMultiplier), U in (0, 1]
// (spec §4.6 step 1).
func (g *Graph) randomLevel() int {
	u := g.rng.Float64()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(u) * g.cfg.levelMultiplier()))
}

// bitsetSize returns a visited-bitmap size covering every block id the
// graph currently knows about.
func (g *Graph) bitsetSize() uint {
	return uint(g.maxSeenID) + 1
}
