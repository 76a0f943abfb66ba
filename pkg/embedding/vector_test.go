package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
	}{
		{"simple", []float32{3, 4}},
		{"negative components", []float32{-1, 2, -3}},
		{"already unit", []float32{1, 0, 0}},
		{"tiny values", []float32{1e-4, 2e-4, 2e-4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.in)
			require.Len(t, out, len(tt.in))

			var norm float64
			for _, v := range out {
				norm += float64(v) * float64(v)
			}
			require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
		})
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	in := []float32{0, 0, 0}
	require.Equal(t, in, Normalize(in))
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	Normalize(in)
	require.Equal(t, []float32{3, 4}, in)
}
