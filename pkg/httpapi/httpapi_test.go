package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opaque/principal/internal/service"
	"github.com/opaque/principal/internal/session"
	"github.com/opaque/principal/internal/store"
)

const testAPIKey = "http-test-key"

// testServer holds a configured Server and session token for tests.
type testServer struct {
	srv   *Server
	token string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	sessions, err := session.NewManager(session.Config{APIKeys: []string{testAPIKey}})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	svc, err := service.New(service.DefaultConfig(), store.NewMemoryStore(), sessions)
	if err != nil {
		t.Fatalf("failed to create projection service: %v", err)
	}

	sess, err := svc.Login(context.Background(), testAPIKey)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}

	return &testServer{srv: New(DefaultConfig(), svc), token: sess.Token}
}

func (ts *testServer) doRequest(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + ts.token}
}

func httpRows(n, dim int, seed int64) [][]float64 {
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

func (ts *testServer) fitModel(t *testing.T, name string, rows [][]float64, components int) {
	t.Helper()
	rr := ts.doRequest(t, "POST", "/api/v1/models/"+name+"/fit", FitRequest{Rows: rows, Components: components}, ts.auth())
	if rr.Code != http.StatusCreated {
		t.Fatalf("fit failed: %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.doRequest(t, "GET", "/health", nil, nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected status=healthy, got %q", resp["status"])
	}
}

func TestHandleLogin(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.doRequest(t, "POST", "/api/v1/auth/login", LoginRequest{APIKey: testAPIKey}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected non-empty token")
	}
	if resp.ExpiresAt.IsZero() {
		t.Error("expected expiry timestamp")
	}
}

func TestHandleLogin_WrongKey(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.doRequest(t, "POST", "/api/v1/auth/login", LoginRequest{APIKey: "wrong"}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestHandleLogin_EmptyKey(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.doRequest(t, "POST", "/api/v1/auth/login", LoginRequest{}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHandleRefresh_OutsideWindow(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.doRequest(t, "POST", "/api/v1/auth/refresh", RefreshRequest{Token: ts.token}, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleFit(t *testing.T) {
	ts := setupTestServer(t)
	X := httpRows(100, 5, 42)

	rr := ts.doRequest(t, "POST", "/api/v1/models/embeddings/fit", FitRequest{Rows: X, Components: 2}, ts.auth())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ModelResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "embeddings" || resp.Components != 2 || resp.Features != 5 || resp.Samples != 100 {
		t.Errorf("unexpected model response: %+v", resp)
	}

	// Same name again conflicts.
	rr = ts.doRequest(t, "POST", "/api/v1/models/embeddings/fit", FitRequest{Rows: X, Components: 2}, ts.auth())
	if rr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rr.Code)
	}

	// Refit replaces.
	rr = ts.doRequest(t, "POST", "/api/v1/models/embeddings/fit", FitRequest{Rows: X, Components: 3, Refit: true}, ts.auth())
	if rr.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleFit_BadBody(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/models/m/fit", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rr := httptest.NewRecorder()
	ts.srv.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHandleTransform(t *testing.T) {
	ts := setupTestServer(t)
	X := httpRows(80, 4, 7)
	ts.fitModel(t, "m", X, 2)

	rr := ts.doRequest(t, "POST", "/api/v1/models/m/transform", RowsRequest{Rows: X[:10]}, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp RowsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Rows) != 10 || len(resp.Rows[0]) != 2 {
		t.Errorf("projection shape = %dx%d, want 10x2", len(resp.Rows), len(resp.Rows[0]))
	}

	// Inverse accepts the projected rows back.
	rr = ts.doRequest(t, "POST", "/api/v1/models/m/inverse", RowsRequest{Rows: resp.Rows}, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("inverse failed: %d: %s", rr.Code, rr.Body.String())
	}
	var back RowsResponse
	if err := json.NewDecoder(rr.Body).Decode(&back); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(back.Rows) != 10 || len(back.Rows[0]) != 4 {
		t.Errorf("reconstruction shape = %dx%d, want 10x4", len(back.Rows), len(back.Rows[0]))
	}
}

func TestHandleTransform_UnknownModel(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.doRequest(t, "POST", "/api/v1/models/ghost/transform", RowsRequest{Rows: httpRows(3, 4, 8)}, ts.auth())
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestHandleReconstructionError(t *testing.T) {
	ts := setupTestServer(t)
	X := httpRows(60, 4, 9)
	ts.fitModel(t, "m", X, 0)

	rr := ts.doRequest(t, "POST", "/api/v1/models/m/error", RowsRequest{Rows: X}, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ReconstructionErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MSE > 1e-12 {
		t.Errorf("full-rank mse = %g, want ~0", resp.MSE)
	}
}

func TestHandleCumsumDescribeListDelete(t *testing.T) {
	ts := setupTestServer(t)
	ts.fitModel(t, "m", httpRows(90, 6, 10), 3)

	rr := ts.doRequest(t, "GET", "/api/v1/models/m/cumsum", nil, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("cumsum failed: %d", rr.Code)
	}
	var cum CumsumResponse
	if err := json.NewDecoder(rr.Body).Decode(&cum); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(cum.Values) != 3 {
		t.Errorf("len(cumsum) = %d, want 3", len(cum.Values))
	}

	rr = ts.doRequest(t, "GET", "/api/v1/models/m", nil, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("describe failed: %d", rr.Code)
	}

	rr = ts.doRequest(t, "GET", "/api/v1/models", nil, ts.auth())
	if rr.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rr.Code)
	}
	var list ListResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Models) != 1 || list.Models[0].Name != "m" {
		t.Errorf("list = %+v", list.Models)
	}

	rr = ts.doRequest(t, "DELETE", "/api/v1/models/m", nil, ts.auth())
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete failed: %d", rr.Code)
	}
	rr = ts.doRequest(t, "GET", "/api/v1/models/m", nil, ts.auth())
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := setupTestServer(t)
	rows := RowsRequest{Rows: httpRows(3, 4, 11)}

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
	}{
		{"no header", "POST", "/api/v1/models/m/transform", rows, nil},
		{"malformed header", "POST", "/api/v1/models/m/transform", rows, map[string]string{"Authorization": "Token abc"}},
		{"unknown token", "GET", "/api/v1/models", nil, map[string]string{"Authorization": "Bearer nope"}},
		{"fit", "POST", "/api/v1/models/m/fit", FitRequest{Rows: rows.Rows}, nil},
		{"describe", "GET", "/api/v1/models/m", nil, nil},
		{"delete", "DELETE", "/api/v1/models/m", nil, nil},
		{"cumsum", "GET", "/api/v1/models/m/cumsum", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.doRequest(t, tt.method, tt.path, tt.body, tt.headers)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}
