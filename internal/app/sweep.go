package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/screengrab/backend/internal/db"
)

func newSweepCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiration pass: flag lapsed videos and purge those past retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := rt.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			pool, err := db.Connect(ctx, rt.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			deps, err := buildDependencies(ctx, pool, rt.cfg)
			if err != nil {
				return err
			}

			result, err := deps.videos.Sweep(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d purged=%d blob_failures=%d row_failures=%d\n",
				result.Expired, result.Purged, result.BlobFailures, result.RowFailures)
			return err
		},
	}
}
