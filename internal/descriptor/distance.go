package descriptor

import (
	"fmt"
	"math"
	"math/bits"
)

// cosineEpsilon keeps CosineSimilarity finite when either vector is all zero.
const cosineEpsilon = 1e-9

// Metric selects the distance used to compare frames during clustering.
type Metric string

const (
	MetricHamming     Metric = "phash"
	MetricGridSquared Metric = "rgb"
)

// ParseMetric accepts the configuration names of the supported metrics.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricHamming, MetricGridSquared:
		return Metric(s), nil
	case "hamming":
		return MetricHamming, nil
	case "rgb_grid", "grid":
		return MetricGridSquared, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Kind returns the descriptor kind the metric operates on.
func (m Metric) Kind() Kind {
	switch m {
	case MetricHamming:
		return KindPerceptualHash
	case MetricGridSquared:
		return KindColorGrid
	default:
		return KindNone
	}
}

// Hamming counts the differing bits of two hashes of equal width.
func Hamming(a, b PerceptualHash) (int, error) {
	if a.Width != b.Width {
		return 0, fmt.Errorf("%w: hash widths %d and %d", ErrShapeMismatch, a.Width, b.Width)
	}
	return bits.OnesCount64(a.Bits ^ b.Bits), nil
}

// GridSquaredDistance sums the squared Euclidean color distance over all
// cells. Both grids must have the same key set.
func GridSquaredDistance(a, b ColorGrid) (float64, error) {
	if !a.sameShape(b) {
		return 0, fmt.Errorf("%w: grids with %d and %d cells", ErrShapeMismatch, a.Len(), b.Len())
	}
	var sum float64
	for i := range a.cells {
		ca, cb := a.cells[i].Color, b.cells[i].Color
		for k := 0; k < 3; k++ {
			d := float64(ca[k] - cb[k])
			sum += d * d
		}
	}
	return sum, nil
}

// CosineSimilarity flattens both grids in key order and returns
// dot(a,b) / (|a|*|b| + 1e-9).
func CosineSimilarity(a, b ColorGrid) (float64, error) {
	if !a.sameShape(b) {
		return 0, fmt.Errorf("%w: grids with %d and %d cells", ErrShapeMismatch, a.Len(), b.Len())
	}
	var dot, na, nb float64
	for i := range a.cells {
		ca, cb := a.cells[i].Color, b.cells[i].Color
		for k := 0; k < 3; k++ {
			x, y := float64(ca[k]), float64(cb[k])
			dot += x * y
			na += x * x
			nb += y * y
		}
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon), nil
}

// Distance compares two descriptors with the given metric. Both descriptors
// must hold the variant the metric operates on.
func Distance(m Metric, a, b Descriptor) (float64, error) {
	switch m {
	case MetricHamming:
		ha, okA := a.Hash()
		hb, okB := b.Hash()
		if !okA || !okB {
			return 0, fmt.Errorf("%w: %s metric on %s and %s", ErrShapeMismatch, m, a.Kind(), b.Kind())
		}
		d, err := Hamming(ha, hb)
		return float64(d), err
	case MetricGridSquared:
		ga, okA := a.Grid()
		gb, okB := b.Grid()
		if !okA || !okB {
			return 0, fmt.Errorf("%w: %s metric on %s and %s", ErrShapeMismatch, m, a.Kind(), b.Kind())
		}
		return GridSquaredDistance(ga, gb)
	default:
		return 0, fmt.Errorf("unknown metric %q", m)
	}
}

// Similarity returns the cosine similarity of two color-grid descriptors.
// Any other variant is a shape mismatch.
func Similarity(a, b Descriptor) (float64, error) {
	ga, okA := a.Grid()
	gb, okB := b.Grid()
	if !okA || !okB {
		return 0, fmt.Errorf("%w: cosine similarity on %s and %s", ErrShapeMismatch, a.Kind(), b.Kind())
	}
	return CosineSimilarity(ga, gb)
}
