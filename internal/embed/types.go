// Package embed implements the embedding client described in spec §4.5
// (C5): a batched `embed(batch) -> vectors` contract, with an HTTP REST
// implementation against an external embedding provider and a
// deterministic in-process implementation for tests.
package embed

import (
	"context"
	"math"
)

// Embedder is the C5 contract: Embed returns one vector per input text,
// preserving order and length (output[i] corresponds to batch[i]).
type Embedder interface {
	Embed(ctx context.Context, batch []string) ([][]float32, error)
	Dimensions() int
}

// normalizeVector returns v scaled to unit length. A zero vector is
// returned unchanged (cosine distance against it is degenerate anyway).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
