package embedding

import "math"

// Normalize scales v to unit length and returns a new vector.
// A zero vector cannot be normalized and is returned as is.
func Normalize(v []float32) []float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	if sum == 0 {
		return v
	}

	magnitude := float32(math.Sqrt(float64(sum)))
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = val / magnitude
	}
	return out
}
