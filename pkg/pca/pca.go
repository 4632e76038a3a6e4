// Package pca implements exact principal component analysis over dense
// float64 matrices.
//
// A PCA is fitted once and reused for any number of projections. Fitting
// mean-centers the data, forms the unbiased sample covariance matrix and
// takes its full symmetric eigendecomposition; the leading eigenvectors
// become the projection basis. [PCA.Transform] maps rows into the reduced
// basis, [PCA.InverseTransform] maps reduced rows back to feature space, and
// the variance statistics drive component-count selection in callers.
//
// A PCA performs no internal locking. Fit must not run concurrently with any
// other method on the same instance; once Fit has returned, the read-only
// methods are safe to call from multiple goroutines.
package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNotFitted is returned when a projection or diagnostic is requested
	// before a successful Fit.
	ErrNotFitted = errors.New("pca: estimator is not fitted")

	// ErrInvalidComponents is returned for a non-positive component count or
	// one that exceeds min(n_samples, n_features) of the fitted data.
	ErrInvalidComponents = errors.New("pca: invalid component count")

	// ErrShapeMismatch is returned when an input matrix is empty, ragged, or
	// its width disagrees with the fitted dimensions.
	ErrShapeMismatch = errors.New("pca: shape mismatch")
)

// PCA is a principal component estimator.
//
// Construct with [New] for an explicit component count or [NewFull] to keep
// the full basis, then call [PCA.Fit]. The zero value is unusable.
type PCA struct {
	// requested is the component count chosen at construction.
	// 0 means resolve to min(n_samples, n_features) at fit time.
	requested int

	// fitted is nil until Fit succeeds. Everything reachable from it is
	// immutable afterward; a re-fit swaps the whole bundle.
	fitted *model
}

// model carries the statistics of one successful fit.
type model struct {
	mean       []float64
	components *mat.Dense // k x nFeatures, rows are unit eigenvectors
	variance   []float64  // eigenvalues, descending
	ratio      []float64  // variance / total variance of the full spectrum
	singular   []float64
	nSamples   int
	nFeatures  int
}

// New returns an unfitted estimator that will keep the given number of
// components. The count must be positive; whether it is feasible for a given
// dataset is checked by Fit.
func New(components int) (*PCA, error) {
	if components <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidComponents, components)
	}
	return &PCA{requested: components}, nil
}

// NewFull returns an unfitted estimator that keeps the full basis:
// the component count resolves to min(n_samples, n_features) at fit time.
func NewFull() *PCA {
	return &PCA{}
}

// Restore reconstructs a fitted estimator from previously exported state,
// typically a persisted snapshot: the basis rows from [PCA.ComponentRows],
// the statistics from the matching accessors, and the training sample count.
// All inputs are copied. The restored estimator projects exactly like the
// one the state was exported from.
func Restore(mean []float64, components [][]float64, variance, ratio, singular []float64, nSamples int) (*PCA, error) {
	k := len(components)
	if k == 0 || len(components[0]) == 0 {
		return nil, fmt.Errorf("%w: empty component basis", ErrShapeMismatch)
	}
	d := len(components[0])
	if len(mean) != d {
		return nil, fmt.Errorf("%w: mean has %d values for %d features", ErrShapeMismatch, len(mean), d)
	}
	if len(variance) != k || len(ratio) != k || len(singular) != k {
		return nil, fmt.Errorf("%w: statistics cover %d/%d/%d components with a basis of %d",
			ErrShapeMismatch, len(variance), len(ratio), len(singular), k)
	}
	if nSamples < 1 || k > min(nSamples, d) {
		return nil, fmt.Errorf("%w: %d components with n_samples = %d, n_features = %d",
			ErrInvalidComponents, k, nSamples, d)
	}

	basis := mat.NewDense(k, d, nil)
	for i, row := range components {
		if len(row) != d {
			return nil, fmt.Errorf("%w: component row %d has %d values, want %d", ErrShapeMismatch, i, len(row), d)
		}
		basis.SetRow(i, row)
	}

	return &PCA{
		requested: k,
		fitted: &model{
			mean:       append([]float64(nil), mean...),
			components: basis,
			variance:   append([]float64(nil), variance...),
			ratio:      append([]float64(nil), ratio...),
			singular:   append([]float64(nil), singular...),
			nSamples:   nSamples,
			nFeatures:  d,
		},
	}, nil
}

// Fit computes the model from X (one sample per row) and overwrites any
// previous fit. The covariance matrix uses the unbiased n-1 denominator, and
// its eigendecomposition uses a symmetric solver, so eigenvalues are real and
// the eigenvectors form an orthonormal set. Zero eigenvalues (directions with
// no variance) are valid results, not errors.
func (p *PCA) Fit(X [][]float64) error {
	data, n, d, err := denseFromRows(X)
	if err != nil {
		return err
	}

	limit := min(n, d)
	k := p.requested
	if k == 0 {
		k = limit
	}
	if k > limit {
		return fmt.Errorf("%w: requested %d with min(n_samples, n_features) = %d", ErrInvalidComponents, k, limit)
	}

	mean := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, data)
		mean[j] = stat.Mean(col, nil)
	}

	// A single observation carries no sample variance; the covariance of
	// n = 1 is the zero matrix rather than a 0/0 division.
	cov := mat.NewSymDense(d, nil)
	if n > 1 {
		stat.CovarianceMatrix(cov, data, nil)
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return fmt.Errorf("pca: eigendecomposition did not converge")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Covariance is positive semi-definite; negatives are round-off.
	for i, v := range vals {
		if v < 0 {
			vals[i] = 0
		}
	}
	var total float64
	for _, v := range vals {
		total += v
	}

	// gonum orders eigenvalues ascending; walk from the back for the top k.
	// Ordering among exactly equal eigenvalues is solver-dependent.
	components := mat.NewDense(k, d, nil)
	variance := make([]float64, k)
	ratio := make([]float64, k)
	singular := make([]float64, k)
	for i := 0; i < k; i++ {
		src := d - 1 - i
		variance[i] = vals[src]
		if total > 0 {
			ratio[i] = vals[src] / total
		}
		singular[i] = math.Sqrt(vals[src] * float64(n-1))
		for j := 0; j < d; j++ {
			components.Set(i, j, vecs.At(j, src))
		}
	}

	p.fitted = &model{
		mean:       mean,
		components: components,
		variance:   variance,
		ratio:      ratio,
		singular:   singular,
		nSamples:   n,
		nFeatures:  d,
	}
	return nil
}

// FitTransform fits the estimator on X and returns the projection of X
// itself, equivalent to Fit followed by Transform.
func (p *PCA) FitTransform(X [][]float64) ([][]float64, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// Transform projects rows of X into the component basis. Centering uses the
// mean stored at fit time, never a mean of X itself: the projection must use
// the same origin for every input. The result has one row per input row and
// NComponents columns.
func (p *PCA) Transform(X [][]float64) ([][]float64, error) {
	m := p.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	data, rows, cols, err := denseFromRows(X)
	if err != nil {
		return nil, err
	}
	if cols != m.nFeatures {
		return nil, fmt.Errorf("%w: input has %d features, model was fitted on %d", ErrShapeMismatch, cols, m.nFeatures)
	}

	for i := 0; i < rows; i++ {
		floats.Sub(data.RawRowView(i), m.mean)
	}
	var out mat.Dense
	out.Mul(data, m.components.T())
	return rowsOf(&out), nil
}

// TransformVector projects a single vector, a convenience over [PCA.Transform].
func (p *PCA) TransformVector(x []float64) ([]float64, error) {
	out, err := p.Transform([][]float64{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InverseTransform maps reduced rows back to the original feature space:
// Z times the component matrix plus the stored mean. The reconstruction is
// exact only when the fit kept the data's full rank; otherwise it is the
// closest approximation within the retained subspace.
func (p *PCA) InverseTransform(Z [][]float64) ([][]float64, error) {
	m := p.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	data, rows, cols, err := denseFromRows(Z)
	if err != nil {
		return nil, err
	}
	k, _ := m.components.Dims()
	if cols != k {
		return nil, fmt.Errorf("%w: input has %d columns, model keeps %d components", ErrShapeMismatch, cols, k)
	}

	var out mat.Dense
	out.Mul(data, m.components)
	for i := 0; i < rows; i++ {
		floats.Add(out.RawRowView(i), m.mean)
	}
	return rowsOf(&out), nil
}

// ExplainedVarianceCumsum returns the running sum of the explained variance
// ratios. It is non-decreasing and its last entry is at most 1, reaching 1
// only when the fit kept the full rank.
func (p *PCA) ExplainedVarianceCumsum() ([]float64, error) {
	m := p.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(m.ratio))
	floats.CumSum(out, m.ratio)
	return out, nil
}

// ReconstructionError reports the mean squared error between X and its
// round trip through Transform and InverseTransform, averaged over every
// element of the matrix. It never increases when the component count grows,
// and is zero (to floating tolerance) at full rank.
func (p *PCA) ReconstructionError(X [][]float64) (float64, error) {
	Z, err := p.Transform(X)
	if err != nil {
		return 0, err
	}
	R, err := p.InverseTransform(Z)
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

// Truncate returns a new fitted estimator keeping only the first k
// components. Because variance ratios are computed against the full
// eigenspectrum at fit time, the result is identical to having fitted with k
// on the same data. The returned estimator shares backing arrays with the
// receiver; both remain read-only fitted models.
func (p *PCA) Truncate(k int) (*PCA, error) {
	m := p.fitted
	if m == nil {
		return nil, ErrNotFitted
	}
	if k <= 0 || k > len(m.variance) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidComponents, k, len(m.variance))
	}
	_, d := m.components.Dims()
	return &PCA{
		requested: k,
		fitted: &model{
			mean:       m.mean,
			components: m.components.Slice(0, k, 0, d).(*mat.Dense),
			variance:   m.variance[:k],
			ratio:      m.ratio[:k],
			singular:   m.singular[:k],
			nSamples:   m.nSamples,
			nFeatures:  m.nFeatures,
		},
	}, nil
}

// Components returns the k x n_features basis matrix whose rows are unit
// eigenvectors in descending eigenvalue order, or nil before Fit. Callers
// must treat it as read-only.
func (p *PCA) Components() *mat.Dense {
	if p.fitted == nil {
		return nil
	}
	return p.fitted.components
}

// ComponentRows returns a fresh row-slice copy of the basis matrix,
// or nil before Fit.
func (p *PCA) ComponentRows() [][]float64 {
	m := p.fitted
	if m == nil {
		return nil
	}
	k, d := m.components.Dims()
	rows := make([][]float64, k)
	for i := 0; i < k; i++ {
		rows[i] = make([]float64, d)
		copy(rows[i], m.components.RawRowView(i))
	}
	return rows
}

// Mean returns the per-feature mean of the fitted data, or nil before Fit.
// Callers must treat it as read-only.
func (p *PCA) Mean() []float64 {
	if p.fitted == nil {
		return nil
	}
	return p.fitted.mean
}

// ExplainedVariance returns the retained eigenvalues in descending order,
// or nil before Fit.
func (p *PCA) ExplainedVariance() []float64 {
	if p.fitted == nil {
		return nil
	}
	return p.fitted.variance
}

// ExplainedVarianceRatio returns each retained eigenvalue divided by the sum
// of all n_features eigenvalues, or nil before Fit. For a truncated fit the
// entries do not sum to 1; the remainder is the variance left behind.
func (p *PCA) ExplainedVarianceRatio() []float64 {
	if p.fitted == nil {
		return nil
	}
	return p.fitted.ratio
}

// SingularValues returns the singular values of the centered data matrix
// consistent with the eigendecomposition, sqrt(variance * (n_samples-1)),
// or nil before Fit.
func (p *PCA) SingularValues() []float64 {
	if p.fitted == nil {
		return nil
	}
	return p.fitted.singular
}

// NComponents returns the resolved component count, or 0 before Fit.
func (p *PCA) NComponents() int {
	if p.fitted == nil {
		return 0
	}
	return len(p.fitted.variance)
}

// NFeatures returns the fitted feature count, or 0 before Fit.
func (p *PCA) NFeatures() int {
	if p.fitted == nil {
		return 0
	}
	return p.fitted.nFeatures
}

// NSamples returns the number of rows the model was fitted on, or 0 before Fit.
func (p *PCA) NSamples() int {
	if p.fitted == nil {
		return 0
	}
	return p.fitted.nSamples
}

// denseFromRows copies a row-slice matrix into a dense matrix, rejecting
// empty and ragged input.
func denseFromRows(X [][]float64) (*mat.Dense, int, int, error) {
	n := len(X)
	if n == 0 {
		return nil, 0, 0, fmt.Errorf("%w: matrix has no rows", ErrShapeMismatch)
	}
	d := len(X[0])
	if d == 0 {
		return nil, 0, 0, fmt.Errorf("%w: matrix has no columns", ErrShapeMismatch)
	}
	out := mat.NewDense(n, d, nil)
	for i, row := range X {
		if len(row) != d {
			return nil, 0, 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), d)
		}
		out.SetRow(i, row)
	}
	return out, n, d, nil
}

// rowsOf copies a dense matrix back into row slices.
func rowsOf(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}
