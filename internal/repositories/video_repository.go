package repositories

import (
	"context"
	"time"

	"github.com/screengrab/backend/internal/models"
)

// VideoRepository exposes data access for shared videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Video, error)
	MarkExpired(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
	Renew(ctx context.Context, id, expirationType string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	ListPurgeable(ctx context.Context, cutoff time.Time) ([]models.Video, error)
	PurgeExpired(ctx context.Context, id string, cutoff time.Time) (bool, error)
}
