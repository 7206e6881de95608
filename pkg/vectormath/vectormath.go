package vectormath

import (
	"errors"
	"math"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func Magnitude(a []float32) float64 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns 0 when either vector is empty or has zero
// magnitude. Vectors of unequal length are rejected rather than truncated.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}

	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	magA := Magnitude(a)
	magB := Magnitude(b)
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return Dot(a, b) / (magA * magB), nil
}
