package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/screengrab/backend/internal/db"
	"github.com/screengrab/backend/internal/handlers"
	"github.com/screengrab/backend/internal/httpserver"
	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/middleware"
	"github.com/screengrab/backend/internal/videos"
)

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiration sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.AppPort, newHTTPHandler(deps, logger), cfg.HTTPWriteTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort)
		return srv.Run(gctx)
	})
	if interval := cfg.Lifecycle.SweepInterval; interval > 0 {
		g.Go(func() error {
			runSweeper(gctx, deps.videos, interval)
			return nil
		})
	} else {
		logger.Info("in-process sweeper disabled")
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// newHTTPHandler builds the middleware chain. RequestLogger must sit directly on the mux
// so it can read the matched route; Authenticate runs first so the log line carries the user.
func newHTTPHandler(deps dependencies, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps.handlers)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger)(handler)
	handler = middleware.Authenticate(deps.tokens)(handler)
	handler = cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	return handler
}

type sweepRunner interface {
	Sweep(ctx context.Context) (videos.SweepResult, error)
}

// runSweeper runs one pass immediately and then on every tick until ctx is cancelled.
// A failed pass is logged and retried on the next tick.
func runSweeper(ctx context.Context, svc sweepRunner, interval time.Duration) {
	ctx = logging.With(ctx, "component", "sweeper")
	logger := logging.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := svc.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
