package secure

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/opaque/principal/pkg/pca"
)

// fitTestModel fits a small model on seeded anisotropic data and returns it
// with the data it was fitted on.
func fitTestModel(t testing.TB, n, dim, k int) (*pca.PCA, [][]float64) {
	t.Helper()

	rng := rand.New(rand.NewSource(7))
	scale := 8.0
	scales := make([]float64, dim)
	for j := range scales {
		scales[j] = scale
		scale /= 2
	}

	X := make([][]float64, n)
	for i := range X {
		X[i] = make([]float64, dim)
		for j := range X[i] {
			X[i][j] = rng.NormFloat64()*scales[j] + float64(j)
		}
	}

	est, err := pca.New(k)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", k, err)
	}
	if err := est.Fit(X); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return est, X
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	pkBytes, err := engine.PublicKeyBytes()
	if err != nil {
		t.Fatalf("PublicKeyBytes failed: %v", err)
	}
	if len(pkBytes) == 0 {
		t.Error("expected non-empty public key")
	}
	t.Logf("Public key size: %d bytes", len(pkBytes))
	t.Logf("Slots per ciphertext: %d", engine.Params().MaxSlots())
}

func TestEncryptDecryptVector(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	original := []float64{1.5, -2.3, 0.0, 4.7, -0.001, 3.14159, -8.25, 0.5}

	ct, err := engine.EncryptVector(original)
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	decrypted, err := engine.DecryptVector(ct, len(original))
	if err != nil {
		t.Fatalf("DecryptVector failed: %v", err)
	}

	for i := range original {
		if math.Abs(decrypted[i]-original[i]) > 1e-4 {
			t.Errorf("slot %d: got %f, want %f", i, decrypted[i], original[i])
		}
	}
}

func TestDotProduct(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	dim := 16
	x := make([]float64, dim)
	w := make([]float64, dim)
	var want float64
	for i := 0; i < dim; i++ {
		x[i] = rng.NormFloat64()
		w[i] = rng.NormFloat64()
		want += x[i] * w[i]
	}

	encX, err := engine.EncryptVector(x)
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	ct, err := engine.DotProduct(encX, w)
	if err != nil {
		t.Fatalf("DotProduct failed: %v", err)
	}

	got, err := engine.DecryptScalar(ct)
	if err != nil {
		t.Fatalf("DecryptScalar failed: %v", err)
	}
	if math.Abs(got-want) > 1e-4 {
		t.Errorf("dot product: got %f, want %f", got, want)
	}
}

func TestProject_MatchesPlaintext(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	model, X := fitTestModel(t, 30, 8, 3)
	x := X[4]

	want, err := model.TransformVector(x)
	if err != nil {
		t.Fatalf("TransformVector failed: %v", err)
	}

	encX, err := engine.EncryptVector(x)
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	cts, err := engine.Project(encX, model)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(cts) != len(want) {
		t.Fatalf("expected %d coordinates, got %d", len(want), len(cts))
	}

	for k, ct := range cts {
		got, err := engine.DecryptScalar(ct)
		if err != nil {
			t.Fatalf("DecryptScalar failed for component %d: %v", k, err)
		}
		if math.Abs(got-want[k]) > 1e-4 {
			t.Errorf("component %d: got %f, want %f", k, got, want[k])
		}
	}
}

func TestProject_NotFitted(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	encX, err := engine.EncryptVector([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	unfitted, err := pca.New(2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := engine.Project(encX, unfitted); err == nil {
		t.Error("expected error projecting with an unfitted model")
	}
}

func TestProjectAndEncrypt(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	model, X := fitTestModel(t, 30, 8, 3)
	x := X[11]

	want, err := model.TransformVector(x)
	if err != nil {
		t.Fatalf("TransformVector failed: %v", err)
	}

	ct, err := engine.ProjectAndEncrypt(x, model)
	if err != nil {
		t.Fatalf("ProjectAndEncrypt failed: %v", err)
	}

	got, err := engine.DecryptVector(ct, len(want))
	if err != nil {
		t.Fatalf("DecryptVector failed: %v", err)
	}
	for k := range want {
		if math.Abs(got[k]-want[k]) > 1e-4 {
			t.Errorf("coordinate %d: got %f, want %f", k, got[k], want[k])
		}
	}
}

func TestSerializeCiphertextRoundTrip(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	original := []float64{2.5, -1.25, 9.0}
	ct, err := engine.EncryptVector(original)
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	data, err := engine.SerializeCiphertext(ct)
	if err != nil {
		t.Fatalf("SerializeCiphertext failed: %v", err)
	}
	t.Logf("Ciphertext size: %d bytes", len(data))

	restored, err := engine.DeserializeCiphertext(data)
	if err != nil {
		t.Fatalf("DeserializeCiphertext failed: %v", err)
	}

	decrypted, err := engine.DecryptVector(restored, len(original))
	if err != nil {
		t.Fatalf("DecryptVector failed: %v", err)
	}
	for i := range original {
		if math.Abs(decrypted[i]-original[i]) > 1e-4 {
			t.Errorf("slot %d: got %f, want %f", i, decrypted[i], original[i])
		}
	}
}

func TestBasisCache(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	model, _ := fitTestModel(t, 30, 8, 3)
	rows := model.ComponentRows()
	mean := model.Mean()

	cache := NewBasisCache()
	if !cache.IsStale(time.Minute) {
		t.Error("empty cache should be stale")
	}
	if cache.Version() != 0 {
		t.Errorf("expected version 0, got %d", cache.Version())
	}

	params := engine.Params()
	if err := cache.LoadBasis(rows, mean, engine.Encoder(), params, params.MaxLevel()); err != nil {
		t.Fatalf("LoadBasis failed: %v", err)
	}

	if cache.Size() != len(rows) {
		t.Errorf("expected %d rows, got %d", len(rows), cache.Size())
	}
	if cache.Version() != 1 {
		t.Errorf("expected version 1, got %d", cache.Version())
	}
	if cache.IsStale(time.Minute) {
		t.Error("freshly loaded cache should not be stale")
	}
	if cache.NeedsRefresh(rows) {
		t.Error("cache should not need a refresh for the rows it holds")
	}

	for i := range rows {
		if _, ok := cache.Get(i); !ok {
			t.Errorf("row %d missing from cache", i)
		}
		offset, ok := cache.Offset(i)
		if !ok {
			t.Errorf("offset %d missing from cache", i)
		}
		var want float64
		for j := range mean {
			want += mean[j] * rows[i][j]
		}
		if math.Abs(offset-want) > 1e-12 {
			t.Errorf("offset %d: got %f, want %f", i, offset, want)
		}
	}
	if _, ok := cache.Get(len(rows)); ok {
		t.Error("expected miss past the last row")
	}

	all, err := cache.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != len(rows) {
		t.Errorf("GetAll returned %d rows, want %d", len(all), len(rows))
	}

	// A refit perturbs the basis
	perturbed := model.ComponentRows()
	perturbed[1][0] += 0.001
	if !cache.NeedsRefresh(perturbed) {
		t.Error("cache should need a refresh after the basis changed")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("expected empty cache after Clear, got %d rows", cache.Size())
	}
	if _, err := cache.GetAll(); err == nil {
		t.Error("expected error from GetAll on an empty cache")
	}
}

func TestEnginePool_Project(t *testing.T) {
	pool, err := NewEnginePool(2)
	if err != nil {
		t.Fatalf("NewEnginePool failed: %v", err)
	}
	if pool.Size() != 2 {
		t.Errorf("expected pool size 2, got %d", pool.Size())
	}

	model, X := fitTestModel(t, 30, 8, 3)
	x := X[19]

	want, err := model.TransformVector(x)
	if err != nil {
		t.Fatalf("TransformVector failed: %v", err)
	}

	params := pool.Params()
	cache := NewBasisCache()
	if err := cache.LoadBasis(model.ComponentRows(), model.Mean(), pool.Primary().Encoder(), params, params.MaxLevel()); err != nil {
		t.Fatalf("LoadBasis failed: %v", err)
	}

	encX, err := pool.EncryptVector(x)
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}

	cts, err := pool.Project(encX, cache)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if len(cts) != len(want) {
		t.Fatalf("expected %d coordinates, got %d", len(want), len(cts))
	}

	for k, ct := range cts {
		got, err := pool.DecryptScalar(ct)
		if err != nil {
			t.Fatalf("DecryptScalar failed for component %d: %v", k, err)
		}
		if math.Abs(got-want[k]) > 1e-4 {
			t.Errorf("component %d: got %f, want %f", k, got, want[k])
		}
	}
}

func TestEnginePool_EmptyCache(t *testing.T) {
	pool, err := NewEnginePool(1)
	if err != nil {
		t.Fatalf("NewEnginePool failed: %v", err)
	}

	encX, err := pool.EncryptVector([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("EncryptVector failed: %v", err)
	}
	if _, err := pool.Project(encX, NewBasisCache()); err == nil {
		t.Error("expected error projecting against an empty cache")
	}
}

func BenchmarkEncryptVector(b *testing.B) {
	engine, err := NewEngine()
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	vector := make([]float64, 128)
	for i := range vector {
		vector[i] = rng.NormFloat64()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.EncryptVector(vector); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDotProduct(b *testing.B) {
	engine, err := NewEngine()
	if err != nil {
		b.Fatalf("NewEngine failed: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	x := make([]float64, 128)
	w := make([]float64, 128)
	for i := range x {
		x[i] = rng.NormFloat64()
		w[i] = rng.NormFloat64()
	}

	encX, err := engine.EncryptVector(x)
	if err != nil {
		b.Fatalf("EncryptVector failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.DotProduct(encX, w); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPoolProject(b *testing.B) {
	pool, err := NewEnginePool(4)
	if err != nil {
		b.Fatalf("NewEnginePool failed: %v", err)
	}

	model, X := fitTestModel(b, 64, 32, 8)

	params := pool.Params()
	cache := NewBasisCache()
	if err := cache.LoadBasis(model.ComponentRows(), model.Mean(), pool.Primary().Encoder(), params, params.MaxLevel()); err != nil {
		b.Fatalf("LoadBasis failed: %v", err)
	}

	encX, err := pool.EncryptVector(X[0])
	if err != nil {
		b.Fatalf("EncryptVector failed: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pool.Project(encX, cache); err != nil {
			b.Fatal(err)
		}
	}
}
