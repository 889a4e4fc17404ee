package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/screengrab/backend/internal/auth"
	"github.com/screengrab/backend/internal/config"
	"github.com/screengrab/backend/internal/db"
	"github.com/screengrab/backend/internal/handlers"
	"github.com/screengrab/backend/internal/identity"
	"github.com/screengrab/backend/internal/middleware"
	"github.com/screengrab/backend/internal/notify"
	"github.com/screengrab/backend/internal/repositories"
	"github.com/screengrab/backend/internal/storage"
	"github.com/screengrab/backend/internal/videos"
)

var (
	_ videos.VideoStore        = (*repositories.PostgresVideoRepository)(nil)
	_ videos.RequestStore      = (*repositories.PostgresRequestRepository)(nil)
	_ videos.UserStore         = (*repositories.PostgresUserRepository)(nil)
	_ videos.BlobStore         = (*storage.S3Storage)(nil)
	_ videos.Notifier          = (*notify.Notifier)(nil)
	_ handlers.UserStore       = (*repositories.PostgresUserRepository)(nil)
	_ handlers.TokenIssuer     = (*auth.TokenManager)(nil)
	_ handlers.RateLimiter     = (*middleware.KeyedRateLimiter)(nil)
	_ middleware.TokenVerifier = (*auth.TokenManager)(nil)
	_ identity.Provider        = (*identity.GoogleProvider)(nil)
)

const googleCallbackPath = "/api/auth/google/callback"

type dependencies struct {
	handlers handlers.Dependencies
	videos   *videos.Service
	tokens   *auth.TokenManager
}

// buildDependencies wires together concrete implementations used by the HTTP handlers
// and the sweeper.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (dependencies, error) {
	tokens, err := auth.NewTokenManager(cfg.Session.Secret)
	if err != nil {
		return dependencies{}, err
	}

	blobs, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return dependencies{}, err
	}

	sender, err := emailSender(ctx, cfg.Email)
	if err != nil {
		return dependencies{}, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	svc, err := videos.NewService(videos.ServiceConfig{
		Videos:    repositories.NewPostgresVideoRepository(pool),
		Requests:  repositories.NewPostgresRequestRepository(pool),
		Users:     users,
		Blobs:     blobs,
		Notifier:  notify.NewNotifier(sender, cfg.Email.From, cfg.AppURL),
		Retention: cfg.Lifecycle.RetentionWindow,
	})
	if err != nil {
		return dependencies{}, err
	}

	var provider identity.Provider
	if cfg.Google.ClientID != "" {
		provider = identity.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.AppURL+googleCallbackPath)
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set, sign-in is disabled")
	}

	return dependencies{
		handlers: handlers.Dependencies{
			Videos:         svc,
			Users:          users,
			Tokens:         tokens,
			Identity:       provider,
			RequestLimiter: middleware.NewRateLimiter(cfg.RateLimit),
			AppURL:         cfg.AppURL,
			SecureCookies:  cfg.Session.CookieSecure,
			MaxUploadBytes: cfg.MaxUploadBytes,
		},
		videos: svc,
		tokens: tokens,
	}, nil
}

// emailSender picks the delivery backend. A nil sender means emails are logged and dropped.
func emailSender(ctx context.Context, cfg config.EmailConfig) (notify.Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "resend":
		if cfg.ResendAPIKey == "" {
			slog.Warn("RESEND_API_KEY not set, emails will not be delivered")
			return nil, nil
		}
		return notify.NewResendSender(cfg.ResendURL, cfg.ResendAPIKey), nil
	case "ses":
		sender, err := notify.NewSESSender(ctx, notify.SESConfig{
			Region:          cfg.SESRegion,
			Endpoint:        cfg.SESEndpoint,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
