package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/screengrab/backend/internal/config"
)

// runtime carries what every subcommand needs once flags and environment are parsed.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
}

// Run bootstraps the ScreenGrab backend and dispatches to the requested subcommand.
func Run(ctx context.Context, args []string) error {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "screengrab",
		Short:         "ScreenGrab video sharing backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				cfg.LogLevel = level
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "override SCREENGRAB_LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newSweepCommand(rt),
	)
	return root
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level = strings.TrimSpace(level); level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: lvl})), nil
}
