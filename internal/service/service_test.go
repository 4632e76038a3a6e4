package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
)

const testAPIKey = "test-key"

// setupService returns a service over a fresh in-memory store together with
// a valid session token.
func setupService(t *testing.T, cfg Config) (*ProjectionService, string) {
	t.Helper()

	sessions, err := session.NewManager(session.Config{APIKeys: []string{testAPIKey}})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	svc, err := New(cfg, store.NewMemoryStore(), sessions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s, err := svc.Login(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return svc, s.Token
}

// trainingData returns rows with variance concentrated in the leading
// coordinates, so low truncation ranks stay meaningful.
func trainingData(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	scale := make([]float64, dim)
	s := 8.0
	for j := range scale {
		scale[j] = s
		s /= 2
	}
	for i := range X {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.NormFloat64() * scale[j]
		}
		X[i] = row
	}
	return X
}

// --- Construction tests ---

func TestNew_Validation(t *testing.T) {
	sessions, err := session.NewManager(session.Config{APIKeys: []string{testAPIKey}})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if _, err := New(Config{}, nil, sessions); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(Config{}, store.NewMemoryStore(), nil); err == nil {
		t.Error("expected error for nil session manager")
	}

	svc, err := New(Config{}, store.NewMemoryStore(), sessions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	def := DefaultConfig()
	if svc.cfg.MaxWorkers != def.MaxWorkers {
		t.Errorf("MaxWorkers = %d, want default %d", svc.cfg.MaxWorkers, def.MaxWorkers)
	}
	if svc.cfg.MaxSamplesPerRequest != def.MaxSamplesPerRequest {
		t.Errorf("MaxSamplesPerRequest = %d, want default %d", svc.cfg.MaxSamplesPerRequest, def.MaxSamplesPerRequest)
	}
}

// --- Session tests ---

func TestAuthorization(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(50, 4, 1)

	if _, err := svc.Fit(ctx, "no-such-token", "m", X, 2, false); !errors.Is(err, session.ErrInvalidSession) {
		t.Errorf("Fit with bad token: got %v, want ErrInvalidSession", err)
	}
	if _, err := svc.Transform(ctx, "no-such-token", "m", X); !errors.Is(err, session.ErrInvalidSession) {
		t.Errorf("Transform with bad token: got %v, want ErrInvalidSession", err)
	}

	if err := svc.RevokeSession(ctx, token); err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if _, err := svc.List(ctx, token); !errors.Is(err, session.ErrInvalidSession) {
		t.Errorf("List after revoke: got %v, want ErrInvalidSession", err)
	}
}

func TestRefreshSession(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()

	// A fresh session is not yet inside the refresh window.
	if _, err := svc.RefreshSession(ctx, token); !errors.Is(err, session.ErrNotRefreshable) {
		t.Errorf("RefreshSession: got %v, want ErrNotRefreshable", err)
	}
	if svc.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions = %d, want 1", svc.ActiveSessions())
	}
}

// --- Fit tests ---

func TestFit_CreatesModel(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(120, 6, 2)

	info, err := svc.Fit(ctx, token, "embeddings", X, 3, false)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if info.Name != "embeddings" {
		t.Errorf("Name = %q, want %q", info.Name, "embeddings")
	}
	if info.Components != 3 {
		t.Errorf("Components = %d, want 3", info.Components)
	}
	if info.Features != 6 || info.Samples != 120 {
		t.Errorf("dims = (%d, %d), want (6, 120)", info.Features, info.Samples)
	}
	if len(info.Ratio) != 3 {
		t.Errorf("len(Ratio) = %d, want 3", len(info.Ratio))
	}
	if info.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestFit_DuplicateName(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(80, 5, 3)

	if _, err := svc.Fit(ctx, token, "m", X, 2, false); err != nil {
		t.Fatalf("first Fit failed: %v", err)
	}
	if _, err := svc.Fit(ctx, token, "m", X, 2, false); !errors.Is(err, ErrModelExists) {
		t.Errorf("second Fit: got %v, want ErrModelExists", err)
	}

	// Refit replaces the stored model.
	info, err := svc.Fit(ctx, token, "m", X, 4, true)
	if err != nil {
		t.Fatalf("refit failed: %v", err)
	}
	if info.Components != 4 {
		t.Errorf("Components after refit = %d, want 4", info.Components)
	}
	got, err := svc.Describe(ctx, token, "m")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if got.Components != 4 {
		t.Errorf("Describe Components = %d, want 4", got.Components)
	}
}

func TestFit_Validation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSamplesPerRequest = 10
	svc, token := setupService(t, cfg)
	ctx := context.Background()
	ok := trainingData(8, 3, 4)

	tests := []struct {
		name       string
		modelName  string
		X          [][]float64
		components int
	}{
		{"empty name", "", ok, 2},
		{"path separator in name", "a/b", ok, 2},
		{"leading dot", ".hidden", ok, 2},
		{"no rows", "m", nil, 2},
		{"too many rows", "m", trainingData(11, 3, 4), 2},
		{"negative components", "m", ok, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Fit(ctx, token, tt.modelName, tt.X, tt.components, false)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("got %v, want ErrInvalidRequest", err)
			}
		})
	}
}

// --- Projection tests ---

func TestTransform_RoundTrip(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(100, 5, 5)

	// Full rank, so the projection is lossless up to round-off.
	if _, err := svc.Fit(ctx, token, "full", X, 0, false); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	Z, err := svc.Transform(ctx, token, "full", X)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	back, err := svc.InverseTransform(ctx, token, "full", Z)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	for i := range X {
		for j := range X[i] {
			if math.Abs(X[i][j]-back[i][j]) > 1e-8 {
				t.Fatalf("round trip mismatch at (%d, %d): %g vs %g", i, j, X[i][j], back[i][j])
			}
		}
	}

	mse, err := svc.ReconstructionError(ctx, token, "full", X)
	if err != nil {
		t.Fatalf("ReconstructionError failed: %v", err)
	}
	if mse > 1e-12 {
		t.Errorf("full-rank reconstruction error = %g, want ~0", mse)
	}
}

func TestTransform_UnknownModel(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()

	_, err := svc.Transform(ctx, token, "ghost", trainingData(5, 3, 6))
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("got %v, want ErrModelNotFound", err)
	}
}

func TestCumsum(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()

	if _, err := svc.Fit(ctx, token, "m", trainingData(90, 6, 7), 0, false); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	cum, err := svc.Cumsum(ctx, token, "m")
	if err != nil {
		t.Fatalf("Cumsum failed: %v", err)
	}
	if len(cum) != 6 {
		t.Fatalf("len(cum) = %d, want 6", len(cum))
	}
	for i := 1; i < len(cum); i++ {
		if cum[i] < cum[i-1] {
			t.Errorf("cumsum not nondecreasing at %d: %g < %g", i, cum[i], cum[i-1])
		}
	}
	if math.Abs(cum[len(cum)-1]-1.0) > 1e-9 {
		t.Errorf("full-rank cumsum ends at %g, want 1.0", cum[len(cum)-1])
	}
}

// --- Catalog tests ---

func TestListAndDelete(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(60, 4, 8)

	for _, name := range []string{"beta", "alpha"} {
		if _, err := svc.Fit(ctx, token, name, X, 2, false); err != nil {
			t.Fatalf("Fit %q failed: %v", name, err)
		}
	}

	infos, err := svc.List(ctx, token)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != "alpha" || infos[1].Name != "beta" {
		t.Fatalf("List = %v, want [alpha beta]", infos)
	}

	if err := svc.Delete(ctx, token, "alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Describe(ctx, token, "alpha"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Describe after delete: got %v, want ErrModelNotFound", err)
	}
	if err := svc.Delete(ctx, token, "alpha"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("second Delete: got %v, want ErrModelNotFound", err)
	}

	infos, err = svc.List(ctx, token)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "beta" {
		t.Fatalf("List after delete = %v, want [beta]", infos)
	}
}

// --- Persistence tests ---

func TestModelHydration(t *testing.T) {
	st := store.NewMemoryStore()
	sessions, err := session.NewManager(session.Config{APIKeys: []string{testAPIKey}})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	first, err := New(DefaultConfig(), st, sessions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()
	s, err := first.Login(ctx, testAPIKey)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	token := s.Token

	X := trainingData(70, 5, 9)
	if _, err := first.Fit(ctx, token, "shared", X, 3, false); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	want, err := first.Transform(ctx, token, "shared", X[:5])
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	// A second service over the same store sees the model without refitting.
	second, err := New(DefaultConfig(), st, sessions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := second.Transform(ctx, token, "shared", X[:5])
	if err != nil {
		t.Fatalf("Transform on hydrated model failed: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if want[i][j] != got[i][j] {
				t.Fatalf("hydrated projection differs at (%d, %d): %g vs %g", i, j, want[i][j], got[i][j])
			}
		}
	}
}

func TestHealthCheck(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()

	healthy, msg, nSessions, nModels := svc.HealthCheck(ctx)
	if !healthy {
		t.Fatalf("unhealthy: %s", msg)
	}
	if nSessions != 1 || nModels != 0 {
		t.Errorf("counts = (%d, %d), want (1, 0)", nSessions, nModels)
	}

	if _, err := svc.Fit(ctx, token, "m", trainingData(40, 3, 10), 2, false); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, _, _, nModels = svc.HealthCheck(ctx)
	if nModels != 1 {
		t.Errorf("models after fit = %d, want 1", nModels)
	}
}

// --- Concurrency tests ---

func TestConcurrentOperations(t *testing.T) {
	svc, token := setupService(t, DefaultConfig())
	ctx := context.Background()
	X := trainingData(80, 4, 11)

	if _, err := svc.Fit(ctx, token, "m", X, 2, false); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := svc.Transform(ctx, token, "m", X[:10]); err != nil {
					errs[g] = err
					return
				}
			}
		}(g)
	}
	wg.Wait()
	for g, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d: %v", g, err)
		}
	}
}
