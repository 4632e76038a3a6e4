package store

import (
	"time"

	"github.com/opaque/principal/pkg/pca"
)

// Snapshot is the serializable state of a fitted estimator. It carries
// everything needed to rebuild the projection without refitting.
type Snapshot struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Components [][]float64 `json:"components"`
	Mean       []float64   `json:"mean"`
	Variance   []float64   `json:"explained_variance"`
	Ratio      []float64   `json:"explained_variance_ratio"`
	Singular   []float64   `json:"singular_values"`
	NSamples   int         `json:"n_samples"`
	NFeatures  int         `json:"n_features"`

	// Standardization statistics of the pipeline that produced the
	// estimator. Nil when the estimator was fitted on raw data.
	ScalerMean  []float64 `json:"scaler_mean,omitempty"`
	ScalerScale []float64 `json:"scaler_scale,omitempty"`
}

// FromPCA captures a fitted estimator under the given name. All state is
// copied, so later refits of p do not alter the snapshot.
func FromPCA(name string, p *pca.PCA) (*Snapshot, error) {
	rows := p.ComponentRows()
	if rows == nil {
		return nil, pca.ErrNotFitted
	}

	return &Snapshot{
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Components: rows,
		Mean:       copyFloats(p.Mean()),
		Variance:   copyFloats(p.ExplainedVariance()),
		Ratio:      copyFloats(p.ExplainedVarianceRatio()),
		Singular:   copyFloats(p.SingularValues()),
		NSamples:   p.NSamples(),
		NFeatures:  p.NFeatures(),
	}, nil
}

// Restore rebuilds the fitted estimator. The snapshot's shape consistency is
// validated by [pca.Restore].
func (s *Snapshot) Restore() (*pca.PCA, error) {
	return pca.Restore(s.Mean, s.Components, s.Variance, s.Ratio, s.Singular, s.NSamples)
}

func copyFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}
