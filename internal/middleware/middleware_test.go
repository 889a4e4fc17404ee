package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/screengrab/backend/internal/auth"
	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/metrics"
	"github.com/screengrab/backend/internal/models"
)

type stubVerifier struct {
	valid map[string]models.Identity
}

func (s stubVerifier) Verify(token string) (models.Identity, bool) {
	id, ok := s.valid[token]
	return id, ok
}

func TestAuthenticate(t *testing.T) {
	olive := models.Identity{UserID: "u1", Email: "olive@example.com"}
	verifier := stubVerifier{valid: map[string]models.Identity{"good": olive}}

	tests := []struct {
		name   string
		setup  func(*http.Request)
		expect models.Identity
	}{
		{name: "no token", setup: func(*http.Request) {}},
		{name: "cookie", setup: func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "good"})
		}, expect: olive},
		{name: "bearer", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer good")
		}, expect: olive},
		{name: "invalid token", setup: func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer forged")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.Identity
			handler := Authenticate(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = auth.IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Fatalf("expected request to continue, got status %d", rec.Code)
			}
			if got != tt.expect {
				t.Fatalf("expected identity %+v got %+v", tt.expect, got)
			}
		})
	}
}

func TestRequestLoggerRecordsRoute(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/videos/{id}", func(w http.ResponseWriter, r *http.Request) {
		if logging.RequestIDFromContext(r.Context()) == "" {
			t.Error("expected request id on context")
		}
		w.WriteHeader(http.StatusGone)
	})

	handler := RequestLogger(logger)(mux)
	counter := metrics.RequestsTotal.WithLabelValues(http.MethodGet, "GET /api/videos/{id}", "410")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/videos/abc", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), models.Identity{UserID: "u1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("expected status %d got %d", http.StatusGone, rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}

	out := logs.String()
	if !strings.Contains(out, `"route":"GET /api/videos/{id}"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("unexpected log output %s", out)
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
}
