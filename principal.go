// Package principal reduces the dimensionality of vector datasets with
// principal component analysis.
//
// A [Reducer] standardizes features, fits an orthonormal component basis to
// the training data, and keeps either a fixed number of components or the
// smallest number that captures a target share of the variance.
//
// # Quick Start
//
//	red, err := principal.Open(principal.Config{
//	    VarianceTarget: 0.95,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := red.Fit(vectors); err != nil {
//	    log.Fatal(err)
//	}
//
//	projected, err := red.Transform(vectors)
//
// # Lifecycle
//
// The Reducer has two phases:
//  1. Fit a basis with [Reducer.Fit] (expensive: covariance + eigendecomposition)
//  2. Project with [Reducer.Transform] (safe for concurrent use)
//
// Fitting requires all training vectors upfront. Calling [Reducer.Fit] again
// replaces the basis; a failed refit leaves the previous basis untouched.
package principal

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/opaque/principal/pkg/pca"
	"github.com/opaque/principal/pkg/preprocess"
)

// ErrNotFitted is returned when a projection is requested before a
// successful [Reducer.Fit].
var ErrNotFitted = errors.New("principal: reducer is not fitted")

// Config controls the behavior of a [Reducer].
//
// The zero value is usable: it standardizes features and keeps the smallest
// basis capturing 95% of the variance.
type Config struct {
	// Components pins the number of components to keep. When positive it
	// takes precedence over VarianceTarget. Fit fails if it exceeds
	// min(n_samples, n_features) of the training data.
	// Default: 0 (select by VarianceTarget).
	Components int

	// VarianceTarget selects the smallest component count whose cumulative
	// explained-variance ratio reaches this fraction. Must be in (0, 1];
	// 0.90, 0.95 and 0.99 are the usual operating points. A target the
	// spectrum never reaches (round-off can leave the cumulative sum just
	// below 1.0) keeps the full rank.
	// Default: 0.95.
	VarianceTarget float64

	// Raw disables standardization. By default every feature is shifted to
	// zero mean and scaled to unit variance before the basis is fitted, so
	// wide-ranged features cannot dominate the spectrum. Set Raw when the
	// features already share a scale and only centering is wanted.
	Raw bool
}

// ComponentStat describes one retained component in a [Report].
type ComponentStat struct {
	// Index is the 1-based component rank.
	Index int

	// Eigenvalue is the variance captured along this component.
	Eigenvalue float64

	// Ratio is Eigenvalue over the total variance of all features.
	Ratio float64

	// Cumulative is the running sum of Ratio through this component.
	Cumulative float64

	// Singular is the corresponding singular value of the centered data.
	Singular float64
}

// Report summarizes a fitted [Reducer].
type Report struct {
	Samples     int
	Features    int
	Components  int
	Captured    float64 // cumulative variance ratio at the chosen rank
	Compression float64 // Features / Components
	Stats       []ComponentStat
}

// String renders the report as a fixed-width table.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4s %12s %10s %12s %10s\n", "PC", "eigenvalue", "ratio", "cumulative", "singular")
	for _, s := range r.Stats {
		fmt.Fprintf(&b, "%4d %12.4f %10.4f %12.4f %10.4f\n", s.Index, s.Eigenvalue, s.Ratio, s.Cumulative, s.Singular)
	}
	fmt.Fprintf(&b, "kept %d of %d features (%.1fx compression), %d samples, %.1f%% variance captured\n",
		r.Components, r.Features, r.Compression, r.Samples, r.Captured*100)
	return b.String()
}

// reducerState tracks the lifecycle phase of a [Reducer].
type reducerState int

const (
	stateUnfitted reducerState = iota // No basis fitted yet.
	stateReady                        // Basis fitted, ready to project.
)

// Reducer is a dimensionality reducer combining feature standardization
// with a truncated principal component basis.
//
// After [Reducer.Fit] completes, all projection methods are safe for
// concurrent use from multiple goroutines.
type Reducer struct {
	cfg Config

	mu    sync.RWMutex
	state reducerState

	// Fitted state (populated by Fit, replaced atomically on refit).
	scaler *preprocess.StandardScaler
	proj   *pca.PCA
}

// Open creates a new reducer with the given configuration.
//
// All Config fields have usable defaults; see [Config]. No fitting happens
// here, the heavy work is deferred to [Reducer.Fit].
func Open(cfg Config) (*Reducer, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &Reducer{cfg: cfg, state: stateUnfitted}, nil
}

// Reopen rebuilds a ready reducer from a previously fitted projector and
// scaler, as persisted by a snapshot. The scaler may be nil for a reducer
// fitted on raw data.
func Reopen(proj *pca.PCA, scaler *preprocess.StandardScaler) (*Reducer, error) {
	if proj == nil || proj.NComponents() == 0 {
		return nil, ErrNotFitted
	}
	if scaler != nil && scaler.NFeatures() != proj.NFeatures() {
		return nil, fmt.Errorf("principal: scaler covers %d features, projector %d",
			scaler.NFeatures(), proj.NFeatures())
	}
	return &Reducer{
		cfg:    Config{Components: proj.NComponents(), Raw: scaler == nil},
		scaler: scaler,
		proj:   proj,
		state:  stateReady,
	}, nil
}

// Fit learns the standardization statistics and component basis from X,
// then truncates the basis per the configured selection rule.
//
// X must be a rectangular matrix with at least one row. Fit may be called
// again to replace the basis; on failure the previous basis is kept.
func (r *Reducer) Fit(X [][]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	work := X
	var scaler *preprocess.StandardScaler
	if !r.cfg.Raw {
		scaler = preprocess.NewStandardScaler()
		scaled, err := scaler.FitTransform(X)
		if err != nil {
			return fmt.Errorf("principal: fit failed: %w", err)
		}
		work = scaled
	}

	proj := pca.NewFull()
	if err := proj.Fit(work); err != nil {
		return fmt.Errorf("principal: fit failed: %w", err)
	}

	k := r.cfg.Components
	if k <= 0 {
		cumulative, err := proj.ExplainedVarianceCumsum()
		if err != nil {
			return fmt.Errorf("principal: fit failed: %w", err)
		}
		k = selectRank(cumulative, r.cfg.VarianceTarget)
	}

	kept, err := proj.Truncate(k)
	if err != nil {
		return fmt.Errorf("principal: fit failed: %w", err)
	}

	r.scaler = scaler
	r.proj = kept
	r.state = stateReady
	return nil
}

// Transform projects the rows of X onto the fitted basis, returning one
// row of [Reducer.Components] values per input row.
func (r *Reducer) Transform(X [][]float64) ([][]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state != stateReady {
		return nil, ErrNotFitted
	}

	work := X
	if r.scaler != nil {
		scaled, err := r.scaler.Transform(X)
		if err != nil {
			return nil, fmt.Errorf("principal: transform failed: %w", err)
		}
		work = scaled
	}

	out, err := r.proj.Transform(work)
	if err != nil {
		return nil, fmt.Errorf("principal: transform failed: %w", err)
	}
	return out, nil
}

// TransformVector projects a single vector onto the fitted basis.
func (r *Reducer) TransformVector(x []float64) ([]float64, error) {
	out, err := r.Transform([][]float64{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// InverseTransform maps projected rows back to the original feature space,
// undoing both the basis projection and the standardization. The result is
// the closest reconstruction the kept components allow.
func (r *Reducer) InverseTransform(Z [][]float64) ([][]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state != stateReady {
		return nil, ErrNotFitted
	}

	out, err := r.proj.InverseTransform(Z)
	if err != nil {
		return nil, fmt.Errorf("principal: inverse transform failed: %w", err)
	}
	if r.scaler != nil {
		out, err = r.scaler.InverseTransform(out)
		if err != nil {
			return nil, fmt.Errorf("principal: inverse transform failed: %w", err)
		}
	}
	return out, nil
}

// ReconstructionError reports the mean squared error between X and its
// projection round trip. When standardization is enabled the error is
// measured in the standardized space, so every feature contributes on the
// same scale.
func (r *Reducer) ReconstructionError(X [][]float64) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state != stateReady {
		return 0, ErrNotFitted
	}

	work := X
	if r.scaler != nil {
		scaled, err := r.scaler.Transform(X)
		if err != nil {
			return 0, fmt.Errorf("principal: reconstruction error failed: %w", err)
		}
		work = scaled
	}

	mse, err := r.proj.ReconstructionError(work)
	if err != nil {
		return 0, fmt.Errorf("principal: reconstruction error failed: %w", err)
	}
	return mse, nil
}

// Report summarizes the fitted basis with per-component variance statistics.
func (r *Reducer) Report() (*Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.state != stateReady {
		return nil, ErrNotFitted
	}

	variance := r.proj.ExplainedVariance()
	ratio := r.proj.ExplainedVarianceRatio()
	singular := r.proj.SingularValues()

	stats := make([]ComponentStat, len(variance))
	var cumulative float64
	for i := range variance {
		cumulative += ratio[i]
		stats[i] = ComponentStat{
			Index:      i + 1,
			Eigenvalue: variance[i],
			Ratio:      ratio[i],
			Cumulative: cumulative,
			Singular:   singular[i],
		}
	}

	rep := &Report{
		Samples:    r.proj.NSamples(),
		Features:   r.proj.NFeatures(),
		Components: r.proj.NComponents(),
		Captured:   cumulative,
		Stats:      stats,
	}
	if rep.Components > 0 {
		rep.Compression = float64(rep.Features) / float64(rep.Components)
	}
	return rep, nil
}

// Components returns the number of components kept by the last Fit,
// or 0 before fitting.
func (r *Reducer) Components() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != stateReady {
		return 0
	}
	return r.proj.NComponents()
}

// IsFitted reports whether a basis has been fitted.
func (r *Reducer) IsFitted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == stateReady
}

// PCA returns the fitted projector, or nil before Fit. When standardization
// is enabled the projector operates in the standardized space; pair it with
// [Reducer.Scaler] when persisting.
func (r *Reducer) PCA() *pca.PCA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.proj
}

// Scaler returns the fitted standardizer, or nil when standardization is
// disabled or the reducer is unfitted.
func (r *Reducer) Scaler() *preprocess.StandardScaler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scaler
}

// --- Internal helpers ---

// selectRank returns the smallest component count whose cumulative ratio
// reaches target, or the full rank when none does.
func selectRank(cumulative []float64, target float64) int {
	for i, c := range cumulative {
		if c >= target {
			return i + 1
		}
	}
	return len(cumulative)
}

// applyDefaults fills zero-value fields with usable defaults.
func applyDefaults(cfg *Config) {
	if cfg.Components <= 0 && cfg.VarianceTarget <= 0 {
		cfg.VarianceTarget = 0.95
	}
}

// validateConfig checks that the config values are consistent.
func validateConfig(cfg *Config) error {
	if cfg.Components < 0 {
		return fmt.Errorf("principal: Components must not be negative, got %d", cfg.Components)
	}
	if cfg.VarianceTarget < 0 || cfg.VarianceTarget > 1 {
		return fmt.Errorf("principal: VarianceTarget must be in (0, 1], got %v", cfg.VarianceTarget)
	}
	return nil
}
