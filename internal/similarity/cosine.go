// Package similarity provides vector similarity math for retrieval scoring.
package similarity

import "math"

// Cosine computes the cosine similarity between two vectors.
// The result is in [-1, 1]. It returns 0.0 when either vector is empty,
// zero-norm, or when the dimensions disagree, so callers never have to
// guard against division by zero or missing embeddings.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
