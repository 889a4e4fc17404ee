package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/metrics"
)

// SweepResult reports what one sweep pass changed.
type SweepResult struct {
	Expired      int64
	Purged       int
	Skipped      int
	BlobFailures int
	RowFailures  int
}

// Sweep flags every video whose window has passed, then purges expired videos older than
// the retention window. Running it again with the same clock changes nothing.
func (s *Service) Sweep(ctx context.Context) (result SweepResult, err error) {
	ctx, span := logging.StartSpan(ctx, "videos.sweep")
	defer func() { span.EndErr(err) }()

	start := time.Now()
	now := s.now()
	logger := logging.FromContext(ctx)

	expired, err := s.videos.ExpireDue(ctx, now)
	if err != nil {
		return result, fmt.Errorf("expire due videos: %w", err)
	}
	result.Expired = expired

	cutoff := now.Add(-s.retention)
	purgeable, err := s.videos.ListPurgeable(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("list purgeable videos: %w", err)
	}

	var rowErrs []error
	for _, video := range purgeable {
		// The row goes first and only while it still qualifies, so a reupload that lands
		// after the listing keeps both the row and its bytes.
		removed, err := s.videos.PurgeExpired(ctx, video.ID, cutoff)
		if err != nil {
			result.RowFailures++
			rowErrs = append(rowErrs, fmt.Errorf("purge video %s: %w", video.ID, err))
			continue
		}
		if !removed {
			result.Skipped++
			logger.Info("video renewed before purge, skipping", slog.String("video_id", video.ID))
			continue
		}
		result.Purged++

		if err := s.blobs.Delete(ctx, video.StorageKey); err != nil {
			result.BlobFailures++
			logger.Warn("failed to delete expired video bytes",
				slog.String("video_id", video.ID),
				slog.String("storage_key", video.StorageKey),
				slog.Any("error", err),
			)
		}
	}

	metrics.RecordSweep(int(result.Expired), result.Purged, result.BlobFailures, time.Since(start).Seconds())
	logger.Info("sweep completed",
		slog.Int64("expired", result.Expired),
		slog.Int("purged", result.Purged),
		slog.Int("skipped", result.Skipped),
		slog.Int("blob_failures", result.BlobFailures),
		slog.Int("row_failures", result.RowFailures),
	)

	return result, errors.Join(rowErrs...)
}
