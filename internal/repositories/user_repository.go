package repositories

import (
	"context"

	"github.com/screengrab/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	UpsertByExternalID(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}
