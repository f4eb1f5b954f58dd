package hnsw

import "sort"

// Result is one ranked hit from Search: a block id and its cosine
// distance to the query vector.
type Result struct {
	ID       BlockID
	Distance float32
}

// Search returns the k nearest neighbors of query under cosine distance
// (spec §4.6, "Search"). tombstoned and filter are applied only to the
// final top-k, never to the search frontier, so recall doesn't collapse
// near deletions (spec's "All neighbors tombstoned" edge case).
//
// Edge cases per spec §4.6: an empty graph returns an empty result; if
// k exceeds the number of live (non-tombstoned, filter-passing) nodes,
// every live node is returned, sorted by distance.
func (g *Graph) Search(query []float32, k int, ef int, tombstoned Tombstoned, filter TagFilter) []Result {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.hasEntry || len(g.nodes) == 0 {
		return nil
	}
	if ef < k {
		ef = k
	}

	ep := g.entryPoint
	epDist := cosineDistance(query, g.nodes[ep].vec)

	for l := g.maxLevel; l > 0; l-- {
		ep, epDist = g.greedyDescend(query, ep, epDist, l)
	}

	candidates := g.searchLayer(query, ep, epDist, 0, ef, nil)

	results := make([]Result, 0, k)
	for _, c := range candidates {
		if tombstoned != nil && tombstoned(c.id) {
			continue
		}
		if filter != nil && !filter(c.id) {
			continue
		}
		results = append(results, Result{ID: c.id, Distance: c.dist})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// LoadNode installs a node with a precomputed neighbor structure,
// bypassing the random level draw and insertion procedure. Used only by
// the persistence layer when reconstructing a graph from graph.bin.
func (g *Graph) LoadNode(id BlockID, vec []float32, level int, neighbors [][]BlockID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[id] = &node{vec: vec, level: level, neighbors: neighbors}
	if id > g.maxSeenID || len(g.nodes) == 1 {
		g.maxSeenID = id
	}
}

// SetHeader installs the graph-wide header fields read from graph.bin's
// header record (entry_point, max_level). Used only by the persistence
// layer, after all nodes have been loaded via LoadNode.
func (g *Graph) SetHeader(entryPoint BlockID, hasEntry bool, maxLevel int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entryPoint = entryPoint
	g.hasEntry = hasEntry
	g.maxLevel = maxLevel
}

// AllLive returns every non-tombstoned node id, sorted ascending.
func (g *Graph) AllLive(tombstoned Tombstoned, filter TagFilter) []BlockID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]BlockID, 0, len(g.nodes))
	for id := range g.nodes {
		if tombstoned != nil && tombstoned(id) {
			continue
		}
		if filter != nil && !filter(id) {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
