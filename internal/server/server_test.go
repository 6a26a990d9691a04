package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	_ "github.com/HerbHall/textlens/api/swagger"
)

type routeFunc func(mux *http.ServeMux)

func (f routeFunc) RegisterRoutes(mux *http.ServeMux) { f(mux) }

func newTestServer(ready ReadinessChecker) *Server {
	return New("127.0.0.1:0", zap.NewNop(), ready, Options{})
}

func TestHandleHealthz(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "alive" {
		t.Errorf("status = %q, want %q", body["status"], "alive")
	}
}

func TestHandleReadyz_Healthy(t *testing.T) {
	ready := ReadinessChecker(func(_ context.Context) error {
		return nil
	})
	srv := newTestServer(ready)

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ready" {
		t.Errorf("status = %q, want %q", body["status"], "ready")
	}
}

func TestHandleReadyz_Unhealthy(t *testing.T) {
	ready := ReadinessChecker(func(_ context.Context) error {
		return errors.New("database unreachable")
	})
	srv := newTestServer(ready)

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "not ready" {
		t.Errorf("status = %q, want %q", body["status"], "not ready")
	}
	if !strings.Contains(body["error"], "database unreachable") {
		t.Errorf("error = %q, want it to contain %q", body["error"], "database unreachable")
	}
}

func TestHandleReadyz_NilChecker(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/api/v1/health", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want %q", body["status"], "ok")
	}
	if body["service"] != "textlens" {
		t.Errorf("service = %v, want %q", body["service"], "textlens")
	}
	if body["version"] == nil {
		t.Error("expected version field in response")
	}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected prometheus Go runtime metrics in /metrics output")
	}
}

func TestMiddlewareChain_Integration(t *testing.T) {
	srv := newTestServer(nil)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	req.RemoteAddr = "127.0.0.1:40000"
	w := httptest.NewRecorder()

	// Use the full handler (with middleware chain) instead of just the mux.
	srv.httpServer.Handler.ServeHTTP(w, req)

	// Check that middleware headers are present.
	if v := w.Header().Get("X-Textlens-Version"); v == "" {
		t.Error("expected X-Textlens-Version header from middleware")
	}
	if v := w.Header().Get("X-Request-ID"); v == "" {
		t.Error("expected X-Request-ID header from middleware")
	}
	if v := w.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
	if v := w.Header().Get("X-Frame-Options"); v != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", v, "DENY")
	}
}

func TestExtraRoutes_Mounted(t *testing.T) {
	routes := routeFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("POST /api/v1/process", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	srv := New("127.0.0.1:0", zap.NewNop(), nil, Options{}, routes)

	req := httptest.NewRequest("POST", "/api/v1/process", http.NoBody)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestServer_RemoteAccess(t *testing.T) {
	tests := []struct {
		name        string
		allowRemote bool
		want        int
	}{
		{"loopback only", false, http.StatusForbidden},
		{"remote allowed", true, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := New("127.0.0.1:0", zap.NewNop(), nil, Options{AllowRemote: tc.allowRemote})

			req := httptest.NewRequest("GET", "/api/v1/health", http.NoBody)
			req.RemoteAddr = "192.168.1.50:5555"
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestServer_RateLimitsProcessOnly(t *testing.T) {
	routes := routeFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("POST /api/v1/process", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	srv := New("127.0.0.1:0", zap.NewNop(), nil,
		Options{RateLimit: RateLimitConfig{RPS: 0.001, Burst: 1}}, routes)

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, http.NoBody)
		req.RemoteAddr = "127.0.0.1:40001"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	if got := send("POST", "/api/v1/process"); got != http.StatusAccepted {
		t.Fatalf("first process: status = %d", got)
	}
	if got := send("POST", "/api/v1/process"); got != http.StatusTooManyRequests {
		t.Fatalf("second process: status = %d, want 429", got)
	}
	for i := 0; i < 5; i++ {
		if got := send("GET", "/healthz"); got != http.StatusOK {
			t.Fatalf("healthz %d: status = %d", i, got)
		}
	}
}

func TestServer_SwaggerDevMode(t *testing.T) {
	get := func(srv *Server, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, http.NoBody)
		req.RemoteAddr = "127.0.0.1:40000"
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w
	}

	off := New("127.0.0.1:0", zap.NewNop(), nil, Options{})
	if w := get(off, "/swagger/doc.json"); w.Code != http.StatusNotFound {
		t.Errorf("dev mode off: status = %d, want 404", w.Code)
	}

	on := New("127.0.0.1:0", zap.NewNop(), nil, Options{DevMode: true})
	w := get(on, "/swagger/doc.json")
	if w.Code != http.StatusOK {
		t.Fatalf("doc.json status = %d, want 200", w.Code)
	}
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json: %v", err)
	}
	if _, ok := doc.Paths["/process"]; !ok {
		t.Error("doc.json does not describe /process")
	}

	w = get(on, "/swagger/index.html")
	if w.Code != http.StatusOK {
		t.Fatalf("index.html status = %d, want 200", w.Code)
	}
	if csp := w.Header().Get("Content-Security-Policy"); csp != swaggerCSP {
		t.Errorf("CSP = %q, want the Swagger UI policy", csp)
	}
}
