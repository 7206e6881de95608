package vectormath

import (
	"errors"
	"math"
	"testing"
)

func TestCosineSimilarity_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
		wantErr  error
	}{
		{
			name:     "Identical_Vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "Orthogonal_Vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "Opposite_Vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "Nil_Left",
			a:        nil,
			b:        []float32{1, 2},
			expected: 0,
		},
		{
			name:     "Empty_Right",
			a:        []float32{1, 2},
			b:        []float32{},
			expected: 0,
		},
		{
			name:     "Zero_Magnitude",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
		{
			name:    "Dimension_Mismatch",
			a:       []float32{1, 2, 3},
			b:       []float32{1, 2},
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error got %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("similarity got %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarity_Symmetry(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{0.1, 0.4, -0.5, 0.6}

	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("cosine not symmetric: %f vs %f", ab, ba)
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	v := []float32{0.25, 0.5, -0.1, 0.8, 0.33}

	got, err := CosineSimilarity(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self similarity got %f, want 1.0", got)
	}
}

func TestDotAndMagnitude(t *testing.T) {
	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("dot got %f, want 32", got)
	}

	if got := Magnitude([]float32{3, 4}); got != 5 {
		t.Errorf("magnitude got %f, want 5", got)
	}

	if got := Magnitude(nil); got != 0 {
		t.Errorf("magnitude of nil got %f, want 0", got)
	}
}
