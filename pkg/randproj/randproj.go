// Package randproj implements seeded Gaussian random projection, the cheap
// baseline the demos compare against a fitted basis. Random directions need
// no fitting pass, but they are not ordered by captured variance, which is
// exactly the gap the comparison is meant to show.
package randproj

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidShape is returned for non-positive dimensions or input whose
// width disagrees with the projector.
var ErrInvalidShape = errors.New("randproj: invalid shape")

// Projector maps d-dimensional rows onto k random unit directions.
// Immutable after New; safe for concurrent use.
type Projector struct {
	planes *mat.Dense // k x d, rows are unit vectors
	k, d   int
	seed   int64
}

// New draws k random directions in d dimensions from a seeded normal and
// normalizes each to unit length. The same seed reproduces the same
// projector.
func New(k, d int, seed int64) (*Projector, error) {
	if k <= 0 || d <= 0 {
		return nil, fmt.Errorf("%w: k=%d, d=%d", ErrInvalidShape, k, d)
	}
	if k > d {
		return nil, fmt.Errorf("%w: k=%d exceeds dimension %d", ErrInvalidShape, k, d)
	}

	rng := rand.New(rand.NewSource(seed))
	planes := mat.NewDense(k, d, nil)
	for i := 0; i < k; i++ {
		row := planes.RawRowView(i)
		var norm float64
		for j := range row {
			row[j] = rng.NormFloat64()
			norm += row[j] * row[j]
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range row {
				row[j] /= norm
			}
		}
	}

	return &Projector{planes: planes, k: k, d: d, seed: seed}, nil
}

// Transform projects rows of X onto the random directions, returning an
// m x k matrix.
func (p *Projector) Transform(X [][]float64) ([][]float64, error) {
	data, err := p.denseOf(X, p.d)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(data, p.planes.T())
	return rowsOf(&out), nil
}

// Reconstruct maps projected rows back through the transposed directions.
// Unlike a fitted orthonormal basis this is only an approximation of a
// pseudo-inverse, so round-trip error stays visible even at k close to d.
func (p *Projector) Reconstruct(Z [][]float64) ([][]float64, error) {
	data, err := p.denseOf(Z, p.k)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(data, p.planes)
	return rowsOf(&out), nil
}

// ReconstructionError reports the mean squared error of the round trip
// through Transform and Reconstruct, averaged over all elements.
func (p *Projector) ReconstructionError(X [][]float64) (float64, error) {
	Z, err := p.Transform(X)
	if err != nil {
		return 0, err
	}
	R, err := p.Reconstruct(Z)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i, row := range X {
		for j, v := range row {
			diff := v - R[i][j]
			sum += diff * diff
		}
	}
	return sum / float64(len(X)*len(X[0])), nil
}

// Planes returns a copy of the direction matrix rows.
func (p *Projector) Planes() [][]float64 {
	out := make([][]float64, p.k)
	for i := 0; i < p.k; i++ {
		out[i] = make([]float64, p.d)
		copy(out[i], p.planes.RawRowView(i))
	}
	return out
}

// K returns the projected dimensionality.
func (p *Projector) K() int { return p.k }

// Dimension returns the expected input width.
func (p *Projector) Dimension() int { return p.d }

// Seed returns the seed the directions were drawn from.
func (p *Projector) Seed() int64 { return p.seed }

func (p *Projector) denseOf(X [][]float64, width int) (*mat.Dense, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: matrix has no rows", ErrInvalidShape)
	}
	out := mat.NewDense(len(X), width, nil)
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidShape, i, len(row), width)
		}
		out.SetRow(i, row)
	}
	return out, nil
}

func rowsOf(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}
