package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/screengrab/backend/internal/auth"
	"github.com/screengrab/backend/internal/identity"
	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/models"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// AuthHandler implements the Google login flow and session endpoints.
type AuthHandler struct {
	Users         UserStore
	Tokens        TokenIssuer
	Provider      identity.Provider
	AppURL        string
	SecureCookies bool
	NowFunc       func() time.Time
}

// GoogleLogin handles GET /api/auth/google by redirecting to the consent page.
func (h AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Provider == nil {
		logging.FromContext(ctx).Error("identity provider unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.Provider.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback.
func (h AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Provider == nil || h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasProvider", h.Provider != nil, "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		h.redirectError(w, r, "auth_failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("oauth callback without code")
		h.redirectError(w, r, "no_code")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		logger.Warn("oauth state mismatch")
		h.redirectError(w, r, "auth_failed")
		return
	}
	h.clearStateCookie(w)

	profile, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		logger.Warn("oauth exchange failed", "error", err)
		h.redirectError(w, r, "auth_failed")
		return
	}

	user, err := h.Users.UpsertByExternalID(ctx, models.User{
		ID:         uuid.NewString(),
		Email:      profile.Email,
		Name:       profile.Name,
		ExternalID: profile.ExternalID,
		CreatedAt:  h.now(),
	})
	if err != nil {
		logger.Error("failed to store user", "error", err)
		h.redirectError(w, r, "auth_failed")
		return
	}

	token, err := h.Tokens.Issue(models.Identity{UserID: user.ID, Email: user.Email, Name: user.Name})
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		h.redirectError(w, r, "auth_failed")
		return
	}

	auth.SetSessionCookie(w, token, h.SecureCookies)
	logger.Info("user signed in", "userId", user.ID)

	http.Redirect(w, r, h.AppURL+"/dashboard.html?token="+url.QueryEscape(token), http.StatusFound)
}

// Me handles GET /api/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := auth.IdentityFromContext(ctx)
	if caller.Anonymous() {
		respondError(ctx, w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"user": caller})
}

// Logout handles POST /api/auth/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.SecureCookies)
	respondJSON(r.Context(), w, http.StatusOK, map[string]bool{"success": true})
}

func (h AuthHandler) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.AppURL+"/?error="+url.QueryEscape(reason), http.StatusFound)
}

func (h AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}
