package embeddings

import "math"

// Normalize scales v in place to unit L2 norm. A zero vector has no
// direction and is left as is.
func Normalize(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return
	}
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}
