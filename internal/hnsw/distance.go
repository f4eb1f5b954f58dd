package hnsw

import (
	"github.com/chewxy/math32"
)

// cosineDistance computes 1 - dot(a, b) for vectors that are already
// unit-normalized (spec §4.6: "vectors are pre-normalized at insert time
// so cosine reduces to 1 - dot"). Falls back to the full cosine formula
// if either vector isn't unit length, so callers that forget to
// normalize still get a correct (if slower) answer.
func cosineDistance(a, b []float32) float32 {
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	const epsilon = 1e-6
	if math32.Abs(normA-1) < epsilon && math32.Abs(normB-1) < epsilon {
		return 1 - dot
	}

	denom := math32.Sqrt(normA) * math32.Sqrt(normB)
	if denom == 0 {
		return 1
	}
	return 1 - dot/denom
}

// Normalize returns v scaled to unit length under the L2 norm. A zero
// vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSquares float32
	for _, x := range v {
		sumSquares += x * x
	}
	norm := math32.Sqrt(sumSquares)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
