package grpcserver

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/opaque/principal/api/wire"
	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const testAPIKey = "grpc-test-key"

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	sessions, err := session.NewManager(session.Config{APIKeys: []string{testAPIKey}})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	svc, err := service.New(service.DefaultConfig(), store.NewMemoryStore(), sessions)
	if err != nil {
		t.Fatalf("failed to create projection service: %v", err)
	}
	return New(svc)
}

func loginSession(t *testing.T, srv *Server) string {
	t.Helper()
	resp, err := srv.Login(context.Background(), &wire.LoginRequest{APIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return resp.Token
}

func testRows(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	for i := range X {
		row := make([]float64, dim)
		scale := 8.0
		for j := range row {
			row[j] = rng.NormFloat64() * scale
			scale /= 2
		}
		X[i] = row
	}
	return X
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil error", want)
	}
	s, ok := status.FromError(err)
	if !ok || s.Code() != want {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestLogin(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := srv.Login(context.Background(), &wire.LoginRequest{APIKey: testAPIKey})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.ExpiresAt.IsZero() {
		t.Error("expected expiry timestamp")
	}
}

func TestLogin_EmptyKey(t *testing.T) {
	srv := setupTestServer(t)
	_, err := srv.Login(context.Background(), &wire.LoginRequest{})
	wantCode(t, err, codes.InvalidArgument)
}

func TestLogin_WrongKey(t *testing.T) {
	srv := setupTestServer(t)
	_, err := srv.Login(context.Background(), &wire.LoginRequest{APIKey: "wrong"})
	wantCode(t, err, codes.Unauthenticated)
}

func TestRefresh_FreshSession(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)

	_, err := srv.Refresh(context.Background(), &wire.RefreshRequest{Token: token})
	wantCode(t, err, codes.FailedPrecondition)
}

func TestFitTransformRoundTrip(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)
	ctx := context.Background()
	X := testRows(100, 5, 42)

	fit, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: X})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if fit.Model.Components != 5 {
		t.Errorf("Components = %d, want full rank 5", fit.Model.Components)
	}

	proj, err := srv.Transform(ctx, &wire.TransformRequest{Token: token, Name: "m", Rows: X[:10]})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(proj.Rows) != 10 || len(proj.Rows[0]) != 5 {
		t.Fatalf("projection shape = %dx%d, want 10x5", len(proj.Rows), len(proj.Rows[0]))
	}

	back, err := srv.InverseTransform(ctx, &wire.TransformRequest{Token: token, Name: "m", Rows: proj.Rows})
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	for i := range back.Rows {
		for j := range back.Rows[i] {
			if math.Abs(back.Rows[i][j]-X[i][j]) > 1e-8 {
				t.Fatalf("round trip mismatch at (%d, %d)", i, j)
			}
		}
	}

	mse, err := srv.ReconstructionError(ctx, &wire.TransformRequest{Token: token, Name: "m", Rows: X})
	if err != nil {
		t.Fatalf("ReconstructionError failed: %v", err)
	}
	if mse.Value > 1e-12 {
		t.Errorf("full-rank mse = %g, want ~0", mse.Value)
	}
}

func TestFit_DuplicateName(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)
	ctx := context.Background()
	X := testRows(60, 4, 1)

	if _, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: X, Components: 2}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: X, Components: 2})
	wantCode(t, err, codes.AlreadyExists)

	if _, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: X, Components: 3, Refit: true}); err != nil {
		t.Fatalf("refit failed: %v", err)
	}
}

func TestFit_BadComponents(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)

	// More components than min(samples, features).
	_, err := srv.Fit(context.Background(), &wire.FitRequest{
		Token: token, Name: "m", Rows: testRows(20, 4, 2), Components: 9,
	})
	wantCode(t, err, codes.InvalidArgument)
}

func TestTransform_UnknownModel(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)

	_, err := srv.Transform(context.Background(), &wire.TransformRequest{
		Token: token, Name: "ghost", Rows: testRows(3, 4, 3),
	})
	wantCode(t, err, codes.NotFound)
}

func TestDescribeCumsumListDelete(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)
	ctx := context.Background()

	if _, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: testRows(80, 6, 4), Components: 3}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	info, err := srv.Describe(ctx, &wire.DescribeRequest{Token: token, Name: "m"})
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if info.Components != 3 || info.Features != 6 || info.Samples != 80 {
		t.Errorf("info = %+v", info)
	}

	cum, err := srv.Cumsum(ctx, &wire.CumsumRequest{Token: token, Name: "m"})
	if err != nil {
		t.Fatalf("Cumsum failed: %v", err)
	}
	if len(cum.Values) != 3 {
		t.Errorf("len(cumsum) = %d, want 3", len(cum.Values))
	}

	list, err := srv.List(ctx, &wire.ListRequest{Token: token})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list.Models) != 1 || list.Models[0].Name != "m" {
		t.Errorf("List = %+v", list.Models)
	}

	if _, err := srv.Delete(ctx, &wire.DeleteRequest{Token: token, Name: "m"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, err = srv.Delete(ctx, &wire.DeleteRequest{Token: token, Name: "m"})
	wantCode(t, err, codes.NotFound)
}

// fakeTransformStream collects chunks sent by TransformStream.
type fakeTransformStream struct {
	grpc.ServerStream
	ctx    context.Context
	chunks []*wire.RowChunk
}

func (f *fakeTransformStream) Context() context.Context { return f.ctx }

func (f *fakeTransformStream) Send(c *wire.RowChunk) error {
	f.chunks = append(f.chunks, c)
	return nil
}

func TestTransformStream(t *testing.T) {
	srv := setupTestServer(t)
	token := loginSession(t, srv)
	ctx := context.Background()
	X := testRows(30, 4, 5)

	if _, err := srv.Fit(ctx, &wire.FitRequest{Token: token, Name: "m", Rows: X, Components: 2}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want, err := srv.Transform(ctx, &wire.TransformRequest{Token: token, Name: "m", Rows: X})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	stream := &fakeTransformStream{ctx: ctx}
	if err := srv.TransformStream(&wire.TransformRequest{Token: token, Name: "m", Rows: X}, stream); err != nil {
		t.Fatalf("TransformStream failed: %v", err)
	}
	if len(stream.chunks) != len(X) {
		t.Fatalf("got %d chunks, want %d", len(stream.chunks), len(X))
	}
	for i, c := range stream.chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		for j := range c.Row {
			if c.Row[j] != want.Rows[i][j] {
				t.Fatalf("chunk %d differs from batch transform at %d", i, j)
			}
		}
	}
}

func TestInvalidSession_AllRPCs(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	bad := "bad-session-token"
	rows := testRows(3, 4, 6)

	tests := []struct {
		name string
		call func() error
	}{
		{"Fit", func() error {
			_, err := srv.Fit(ctx, &wire.FitRequest{Token: bad, Name: "m", Rows: rows})
			return err
		}},
		{"Transform", func() error {
			_, err := srv.Transform(ctx, &wire.TransformRequest{Token: bad, Name: "m", Rows: rows})
			return err
		}},
		{"Cumsum", func() error {
			_, err := srv.Cumsum(ctx, &wire.CumsumRequest{Token: bad, Name: "m"})
			return err
		}},
		{"Describe", func() error {
			_, err := srv.Describe(ctx, &wire.DescribeRequest{Token: bad, Name: "m"})
			return err
		}},
		{"List", func() error {
			_, err := srv.List(ctx, &wire.ListRequest{Token: bad})
			return err
		}},
		{"Delete", func() error {
			_, err := srv.Delete(ctx, &wire.DeleteRequest{Token: bad, Name: "m"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), codes.Unauthenticated)
		})
	}
}

func TestEmptyToken_AllRPCs(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()
	rows := testRows(3, 4, 7)

	tests := []struct {
		name string
		call func() error
	}{
		{"Refresh", func() error {
			_, err := srv.Refresh(ctx, &wire.RefreshRequest{})
			return err
		}},
		{"Fit", func() error {
			_, err := srv.Fit(ctx, &wire.FitRequest{Name: "m", Rows: rows})
			return err
		}},
		{"Transform", func() error {
			_, err := srv.Transform(ctx, &wire.TransformRequest{Name: "m", Rows: rows})
			return err
		}},
		{"InverseTransform", func() error {
			_, err := srv.InverseTransform(ctx, &wire.TransformRequest{Name: "m", Rows: rows})
			return err
		}},
		{"Cumsum", func() error {
			_, err := srv.Cumsum(ctx, &wire.CumsumRequest{Name: "m"})
			return err
		}},
		{"Describe", func() error {
			_, err := srv.Describe(ctx, &wire.DescribeRequest{Name: "m"})
			return err
		}},
		{"List", func() error {
			_, err := srv.List(ctx, &wire.ListRequest{})
			return err
		}},
		{"Delete", func() error {
			_, err := srv.Delete(ctx, &wire.DeleteRequest{Name: "m"})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), codes.InvalidArgument)
		})
	}
}
