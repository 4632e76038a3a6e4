// Package service implements the projection model service: named PCA models
// fitted on demand, persisted as snapshots, and served to authenticated
// clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
	"github.com/opaque/principal/pkg/pca"
)

// Config holds service configuration.
type Config struct {
	// MaxWorkers bounds concurrent fits. Fitting takes a full
	// eigendecomposition, so unbounded fits can starve the process.
	MaxWorkers int

	// MaxSamplesPerRequest caps the number of rows accepted by a single
	// call, both for fitting and for projections.
	MaxSamplesPerRequest int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:           4,
		MaxSamplesPerRequest: 100000,
	}
}

// ModelInfo describes a stored model.
type ModelInfo struct {
	Name       string
	CreatedAt  time.Time
	Components int
	Features   int
	Samples    int

	// Ratio is the explained-variance ratio per kept component.
	Ratio []float64
}

// model pairs a hydrated estimator with its descriptive info.
type model struct {
	info ModelInfo
	est  *pca.PCA
}

// ProjectionService fits, stores, and serves named projection models.
//
// Every operation takes a session token issued by [ProjectionService.Login].
// Models live in the snapshot store; hydrated estimators are cached in
// memory and evicted on delete or refit.
type ProjectionService struct {
	cfg      Config
	store    store.Store
	sessions *session.Manager

	mu     sync.RWMutex
	models map[string]*model

	fitSem chan struct{}
}

// modelNameRE restricts names to filesystem- and URL-safe identifiers.
var modelNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// New creates a projection service over the given snapshot store and
// session manager.
func New(cfg Config, st store.Store, sessions *session.Manager) (*ProjectionService, error) {
	if st == nil {
		return nil, fmt.Errorf("service: snapshot store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("service: session manager is required")
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.MaxSamplesPerRequest <= 0 {
		cfg.MaxSamplesPerRequest = DefaultConfig().MaxSamplesPerRequest
	}

	return &ProjectionService{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		models:   make(map[string]*model),
		fitSem:   make(chan struct{}, cfg.MaxWorkers),
	}, nil
}

// --- Sessions ---

// Login authenticates an API key and opens a session.
func (s *ProjectionService) Login(ctx context.Context, apiKey string) (*session.Session, error) {
	return s.sessions.Create(ctx, apiKey)
}

// RefreshSession rotates a session token near its expiry.
func (s *ProjectionService) RefreshSession(ctx context.Context, token string) (*session.Session, error) {
	return s.sessions.Refresh(ctx, token)
}

// RevokeSession invalidates a session token.
func (s *ProjectionService) RevokeSession(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// ValidateSession checks that a session token is valid and unexpired.
func (s *ProjectionService) ValidateSession(ctx context.Context, token string) error {
	_, err := s.sessions.Validate(ctx, token)
	return err
}

// ActiveSessions returns the number of unexpired sessions.
func (s *ProjectionService) ActiveSessions() int {
	return s.sessions.ActiveCount()
}

// authorize validates the session token carried by a request.
func (s *ProjectionService) authorize(ctx context.Context, token string) error {
	_, err := s.sessions.Validate(ctx, token)
	return err
}

// --- Model operations ---

// Fit trains a model on X and stores it under name. With refit false the
// name must be unused; with refit true an existing model is replaced.
// Components 0 keeps the full basis.
func (s *ProjectionService) Fit(ctx context.Context, token, name string, X [][]float64, components int, refit bool) (*ModelInfo, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.validateBatch(X); err != nil {
		return nil, err
	}
	if components < 0 {
		return nil, fmt.Errorf("%w: components must not be negative, got %d", ErrInvalidRequest, components)
	}

	if !refit {
		if _, err := s.store.Get(ctx, name); err == nil {
			return nil, fmt.Errorf("%w: %q", ErrModelExists, name)
		} else if !errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("store lookup failed: %w", err)
		}
	}

	select {
	case s.fitSem <- struct{}{}:
		defer func() { <-s.fitSem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	est := pca.NewFull()
	if components > 0 {
		var err error
		est, err = pca.New(components)
		if err != nil {
			return nil, err
		}
	}
	if err := est.Fit(X); err != nil {
		return nil, err
	}

	snap, err := store.FromPCA(name, est)
	if err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}

	if refit {
		if err := s.store.Delete(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to replace model: %w", err)
		}
	}
	if err := s.store.Put(ctx, snap); err != nil {
		if errors.Is(err, store.ErrSnapshotExists) {
			return nil, fmt.Errorf("%w: %q", ErrModelExists, name)
		}
		return nil, fmt.Errorf("failed to store model: %w", err)
	}

	m := &model{info: infoFromSnapshot(snap), est: est}
	s.mu.Lock()
	s.models[name] = m
	s.mu.Unlock()

	info := m.info
	return &info, nil
}

// Transform projects the rows of X with the named model.
func (s *ProjectionService) Transform(ctx context.Context, token, name string, X [][]float64) ([][]float64, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	if err := s.validateBatch(X); err != nil {
		return nil, err
	}

	m, err := s.getModel(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.est.Transform(X)
}

// InverseTransform maps projected rows back to the feature space of the
// named model.
func (s *ProjectionService) InverseTransform(ctx context.Context, token, name string, Z [][]float64) ([][]float64, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	if err := s.validateBatch(Z); err != nil {
		return nil, err
	}

	m, err := s.getModel(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.est.InverseTransform(Z)
}

// ReconstructionError reports the mean squared reconstruction error of X
// under the named model.
func (s *ProjectionService) ReconstructionError(ctx context.Context, token, name string, X [][]float64) (float64, error) {
	if err := s.authorize(ctx, token); err != nil {
		return 0, err
	}
	if err := s.validateBatch(X); err != nil {
		return 0, err
	}

	m, err := s.getModel(ctx, name)
	if err != nil {
		return 0, err
	}
	return m.est.ReconstructionError(X)
}

// Cumsum returns the cumulative explained-variance ratios of the named model.
func (s *ProjectionService) Cumsum(ctx context.Context, token, name string) ([]float64, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}

	m, err := s.getModel(ctx, name)
	if err != nil {
		return nil, err
	}
	return m.est.ExplainedVarianceCumsum()
}

// Describe returns the stored info for the named model.
func (s *ProjectionService) Describe(ctx context.Context, token, name string) (*ModelInfo, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}

	m, err := s.getModel(ctx, name)
	if err != nil {
		return nil, err
	}
	info := m.info
	return &info, nil
}

// List returns info for every stored model, in name order.
func (s *ProjectionService) List(ctx context.Context, token string) ([]ModelInfo, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}

	names, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	infos := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		m, err := s.getModel(ctx, name)
		if err != nil {
			// A snapshot deleted between List and Get is not an error.
			if errors.Is(err, ErrModelNotFound) {
				continue
			}
			return nil, err
		}
		infos = append(infos, m.info)
	}
	return infos, nil
}

// Delete removes the named model from the store and the cache.
func (s *ProjectionService) Delete(ctx context.Context, token, name string) error {
	if err := s.authorize(ctx, token); err != nil {
		return err
	}

	if _, err := s.store.Get(ctx, name); err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return fmt.Errorf("%w: %q", ErrModelNotFound, name)
		}
		return fmt.Errorf("store lookup failed: %w", err)
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	s.mu.Lock()
	delete(s.models, name)
	s.mu.Unlock()
	return nil
}

// HealthCheck returns service health together with the active session and
// stored model counts.
func (s *ProjectionService) HealthCheck(ctx context.Context) (bool, string, int, int) {
	names, err := s.store.List(ctx)
	if err != nil {
		return false, fmt.Sprintf("store error: %v", err), 0, 0
	}
	return true, "healthy", s.sessions.ActiveCount(), len(names)
}

// --- Internal helpers ---

// getModel returns the cached model, hydrating it from the store on a miss.
func (s *ProjectionService) getModel(ctx context.Context, name string) (*model, error) {
	s.mu.RLock()
	m, ok := s.models[name]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	snap, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
		}
		return nil, fmt.Errorf("store lookup failed: %w", err)
	}

	est, err := snap.Restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore model %q: %w", name, err)
	}

	m = &model{info: infoFromSnapshot(snap), est: est}

	s.mu.Lock()
	if cached, ok := s.models[name]; ok {
		m = cached
	} else {
		s.models[name] = m
	}
	s.mu.Unlock()
	return m, nil
}

func (s *ProjectionService) validateBatch(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidRequest)
	}
	if len(X) > s.cfg.MaxSamplesPerRequest {
		return fmt.Errorf("%w: %d rows exceed the per-request limit of %d",
			ErrInvalidRequest, len(X), s.cfg.MaxSamplesPerRequest)
	}
	return nil
}

func validateName(name string) error {
	if !modelNameRE.MatchString(name) {
		return fmt.Errorf("%w: invalid model name %q", ErrInvalidRequest, name)
	}
	return nil
}

func infoFromSnapshot(snap *store.Snapshot) ModelInfo {
	ratio := make([]float64, len(snap.Ratio))
	copy(ratio, snap.Ratio)
	return ModelInfo{
		Name:       snap.Name,
		CreatedAt:  snap.CreatedAt,
		Components: len(snap.Components),
		Features:   snap.NFeatures,
		Samples:    snap.NSamples,
		Ratio:      ratio,
	}
}

// Errors
var (
	ErrModelNotFound  = errors.New("model not found")
	ErrModelExists    = errors.New("model already exists")
	ErrInvalidRequest = errors.New("invalid request")
)
