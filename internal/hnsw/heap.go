package hnsw

import "container/heap"

// candidate is one entry in a layer-local search frontier: a node id and
// its distance to the query vector.
type candidate struct {
	id   BlockID
	dist float32
}

// less orders two candidates with spec §4.6's tie-break rule: smaller
// distance wins; on equal distance, the smaller block id wins, so
// identical runs produce identical orderings (spec §4.6, "Tie-breaking").
func less(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.id < b.id
}

// minHeap is a min-heap of candidates ordered by distance (closest
// first): the layer-local search's "candidates to explore" set C.
type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap is a max-heap of candidates ordered by distance (farthest
// first): the layer-local search's "best so far" set W, capped at ef so
// its root is always the worst candidate currently kept.
type maxHeap []candidate

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// sortedFromMaxHeap drains h into ascending-distance order without
// mutating the caller's copy semantics (h is consumed).
func sortedFromMaxHeap(h *maxHeap) []candidate {
	n := h.Len()
	out := make([]candidate, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate)
	}
	return out
}
