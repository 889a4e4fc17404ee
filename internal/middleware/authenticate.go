package middleware

import (
	"net/http"

	"github.com/screengrab/backend/internal/auth"
	"github.com/screengrab/backend/internal/models"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (models.Identity, bool)
}

// Authenticate resolves the caller from the session cookie or bearer token and stores
// the identity on the request context. Requests without a valid token continue
// anonymously; handlers decide whether that is acceptable.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			token := auth.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := verifier.Verify(token)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}
