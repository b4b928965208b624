package http

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"zemini/internal/auth"
)

func TestIdentityMiddlewareResolvesSessions(t *testing.T) {
	tokens := auth.NewTokenIssuer(testSecret, time.Hour)
	token, _, err := tokens.Issue(auth.Principal{UserID: uuid.New(), Email: "user@example.com", Name: "User"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var seen auth.Identity
	next := newIdentityMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name      string
		prepare   func(r *http.Request)
		wantEmail string
	}{
		{"no credentials", func(r *http.Request) {}, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token}) }, "user@example.com"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "user@example.com"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, "user@example.com"},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") }, ""},
		{"basic auth", func(r *http.Request) { r.SetBasicAuth("user", "pass") }, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()

			next.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("identity middleware must never reject, got %d", rec.Code)
			}
			if seen.Email() != tc.wantEmail {
				t.Fatalf("expected email %q, got %q", tc.wantEmail, seen.Email())
			}
			if tc.wantEmail == "" && !seen.IsGuest() {
				t.Fatal("expected guest identity")
			}
		})
	}
}

func TestIdentityFromContextDefaultsToGuest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !IdentityFromContext(req.Context()).IsGuest() {
		t.Fatal("expected guest identity without middleware")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := newSecurityHeadersMiddleware("production")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected nosniff header")
	}
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("expected HSTS outside development")
	}

	handler = newSecurityHeadersMiddleware("development")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("expected no HSTS in development")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !containsAll(body, "zemini_http_requests_total") {
		t.Fatal("expected request counter in metrics output")
	}
}

func TestMediaServedForLocalStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "avatars"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "avatars", "a.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := testConfig()
	cfg.CloudinaryURL = ""
	cfg.MediaDir = dir
	tokens := auth.NewTokenIssuer(testSecret, time.Hour)
	router := NewRouter(cfg, newTestActions(&providerStub{}, tokens), tokens, nil, discardLogger())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/avatars/a.png", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Fatalf("expected media file, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/avatars/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected directory listing to be refused, got %d", rec.Code)
	}
}

func containsAll(body string, needles ...string) bool {
	for _, needle := range needles {
		if !strings.Contains(body, needle) {
			return false
		}
	}
	return true
}
