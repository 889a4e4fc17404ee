package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/screengrab/backend/internal/models"
)

// TokenTTL is the fixed validity of every issued session token.
const TokenTTL = 30 * 24 * time.Hour

const (
	issuer  = "screengrab"
	keyInfo = "screengrab session token v1"
)

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("auth: signing secret is required")

// Claims is the payload carried by a session token.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed session tokens.
type TokenManager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenManager derives an HMAC key from secret and returns a manager issuing HS256 tokens.
func NewTokenManager(secret string) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	return &TokenManager{
		key: key,
		ttl: TokenTTL,
		now: time.Now,
	}, nil
}

// WithNowFunc overrides the clock, primarily for tests.
func (m *TokenManager) WithNowFunc(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// Issue signs a token embedding the identity.
func (m *TokenManager) Issue(identity models.Identity) (string, error) {
	if identity.Anonymous() {
		return "", errors.New("auth: cannot issue token for anonymous identity")
	}

	now := m.now().UTC()
	claims := Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Name:   identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the identity embedded in a valid token. Any malformed, tampered or
// expired token yields false.
func (m *TokenManager) Verify(token string) (models.Identity, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Identity{}, false
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return models.Identity{}, false
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return models.Identity{}, false
	}

	return models.Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, true
}
