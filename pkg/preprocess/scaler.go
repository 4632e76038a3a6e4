// Package preprocess provides feature scaling applied ahead of fitting.
//
// Projection quality is dominated by whichever features carry the largest
// raw variance, so callers working with mixed units standardize first. The
// scaler follows the same fitted-state and error conventions as the
// estimator it feeds: no internal locking, reads safe after Fit.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNotFitted is returned when Transform or InverseTransform runs
	// before a successful Fit.
	ErrNotFitted = errors.New("preprocess: scaler is not fitted")

	// ErrShapeMismatch is returned for empty, ragged, or wrong-width input.
	ErrShapeMismatch = errors.New("preprocess: shape mismatch")
)

// StandardScaler scales features to zero mean and unit variance.
//
// The standard deviation uses the population convention (divide by n), and
// a feature with no spread keeps a scale of 1 so constant columns pass
// through centered instead of dividing by zero.
type StandardScaler struct {
	withMean bool
	withStd  bool

	fitted *scalerModel
}

type scalerModel struct {
	mean      []float64
	scale     []float64
	nFeatures int
}

// NewStandardScaler returns a scaler that both centers and scales.
func NewStandardScaler() *StandardScaler {
	return NewStandardScalerWith(true, true)
}

// NewStandardScalerWith selects whether the mean is subtracted and whether
// features are divided by their standard deviation.
func NewStandardScalerWith(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{withMean: withMean, withStd: withStd}
}

// Restore rebuilds a fitted scaler from persisted statistics, as returned
// by [StandardScaler.Mean] and [StandardScaler.Scale]. Every scale entry
// must be nonzero.
func Restore(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: %d mean values for %d scale values", ErrShapeMismatch, len(mean), len(scale))
	}
	m := &scalerModel{
		mean:      make([]float64, len(mean)),
		scale:     make([]float64, len(scale)),
		nFeatures: len(mean),
	}
	copy(m.mean, mean)
	for j, v := range scale {
		if v == 0 {
			return nil, fmt.Errorf("%w: scale for feature %d is zero", ErrShapeMismatch, j)
		}
		m.scale[j] = v
	}
	return &StandardScaler{withMean: true, withStd: true, fitted: m}, nil
}

// Fit computes per-feature mean and scale from X, replacing any prior fit.
func (s *StandardScaler) Fit(X [][]float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("%w: matrix has no rows", ErrShapeMismatch)
	}
	d := len(X[0])
	if d == 0 {
		return fmt.Errorf("%w: matrix has no columns", ErrShapeMismatch)
	}

	data := mat.NewDense(n, d, nil)
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), d)
		}
		data.SetRow(i, row)
	}

	mean := make([]float64, d)
	scale := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, data)
		m, v := stat.MeanVariance(col, nil)
		if s.withMean {
			mean[j] = m
		}
		scale[j] = 1
		if s.withStd && n > 1 {
			// stat.MeanVariance is the unbiased n-1 form; rescale to the
			// population convention.
			if sd := math.Sqrt(v * float64(n-1) / float64(n)); sd > 1e-8 {
				scale[j] = sd
			}
		}
	}

	s.fitted = &scalerModel{mean: mean, scale: scale, nFeatures: d}
	return nil
}

// Transform standardizes rows of X with the fitted statistics.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	m := s.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != m.nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), m.nFeatures)
		}
		scaled := make([]float64, m.nFeatures)
		for j, v := range row {
			scaled[j] = (v - m.mean[j]) / m.scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits the scaler on X and returns the standardized X.
func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform undoes the scaling, mapping standardized rows back to
// the original feature units.
func (s *StandardScaler) InverseTransform(X [][]float64) ([][]float64, error) {
	m := s.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != m.nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), m.nFeatures)
		}
		restored := make([]float64, m.nFeatures)
		for j, v := range row {
			restored[j] = v*m.scale[j] + m.mean[j]
		}
		out[i] = restored
	}
	return out, nil
}

// Mean returns the fitted per-feature mean, or nil before Fit.
func (s *StandardScaler) Mean() []float64 {
	if s.fitted == nil {
		return nil
	}
	return s.fitted.mean
}

// Scale returns the fitted per-feature scale, or nil before Fit.
func (s *StandardScaler) Scale() []float64 {
	if s.fitted == nil {
		return nil
	}
	return s.fitted.scale
}

// NFeatures returns the fitted feature count, or 0 before Fit.
func (s *StandardScaler) NFeatures() int {
	if s.fitted == nil {
		return 0
	}
	return s.fitted.nFeatures
}
