package retrieve

import "math"

// Cosine returns the cosine similarity of two vectors.
// A zero-magnitude vector scores 0; mismatched dimensions score
// negative infinity so the chunk can never be selected.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(-1)
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
