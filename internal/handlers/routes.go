package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screengrab/backend/internal/identity"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Videos         VideoService
	Users          UserStore
	Tokens         TokenIssuer
	Identity       identity.Provider
	RequestLimiter RateLimiter

	AppURL         string
	SecureCookies  bool
	MaxUploadBytes int64
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{
		Users:         deps.Users,
		Tokens:        deps.Tokens,
		Provider:      deps.Identity,
		AppURL:        deps.AppURL,
		SecureCookies: deps.SecureCookies,
	}
	videos := VideoHandler{
		Videos:         deps.Videos,
		AppURL:         deps.AppURL,
		MaxUploadBytes: deps.MaxUploadBytes,
		RequestLimiter: deps.RequestLimiter,
	}

	mux.HandleFunc("GET /health", health.Handle)
	mux.HandleFunc("GET /api/health", health.Handle)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/auth/google", auth.GoogleLogin)
	mux.HandleFunc("GET /api/auth/google/callback", auth.GoogleCallback)
	mux.HandleFunc("GET /api/auth/me", auth.Me)
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)

	mux.HandleFunc("GET /api/user/videos", videos.ListMine)

	mux.HandleFunc("POST /api/videos/prepare-upload", videos.PrepareUpload)
	mux.HandleFunc("PUT /api/videos/{id}/upload", videos.Upload)
	mux.HandleFunc("POST /api/videos/{id}/finalize", videos.Finalize)
	mux.HandleFunc("GET /api/videos/{id}", videos.Get)
	mux.HandleFunc("GET /api/videos/{id}/stream", videos.Stream)
	mux.HandleFunc("GET /api/videos/{id}/download", videos.Download)
	mux.HandleFunc("POST /api/videos/{id}/request", videos.RequestAccess)
	mux.HandleFunc("POST /api/videos/{id}/reupload", videos.Reupload)
	mux.HandleFunc("DELETE /api/videos/{id}", videos.Delete)
}
