package repositories

import (
	"context"

	"github.com/screengrab/backend/internal/models"
)

// RequestRepository defines the data access contract for video requests.
type RequestRepository interface {
	Create(ctx context.Context, request models.VideoRequest) error
	ListPending(ctx context.Context, videoID string) ([]models.VideoRequest, error)
	MarkFulfilled(ctx context.Context, ids []string) (int64, error)
}
