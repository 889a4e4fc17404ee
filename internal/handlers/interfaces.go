package handlers

import (
	"context"
	"io"

	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/storage"
	"github.com/screengrab/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	UpsertByExternalID(ctx context.Context, user models.User) (models.User, error)
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(identity models.Identity) (string, error)
}

// VideoService captures the video lifecycle used by the video handlers.
type VideoService interface {
	BeginUpload(ctx context.Context, caller models.Identity, filename, policy string) (videos.UploadTicket, error)
	CommitBytes(ctx context.Context, caller models.Identity, videoID string, body io.Reader) (int64, error)
	Finalize(ctx context.Context, caller models.Identity, in videos.FinalizeInput) (models.Video, error)
	Get(ctx context.Context, videoID string) (models.Video, error)
	Stream(ctx context.Context, videoID string) (models.Video, storage.Object, error)
	Download(ctx context.Context, videoID string) (models.Video, storage.Object, error)
	ListForOwner(ctx context.Context, caller models.Identity) ([]models.Video, error)
	Reupload(ctx context.Context, caller models.Identity, videoID, policy string) (videos.ReuploadResult, error)
	Delete(ctx context.Context, caller models.Identity, videoID string) error
	RequestAccess(ctx context.Context, videoID, requesterEmail string) (models.VideoRequest, error)
}

var _ VideoService = (*videos.Service)(nil)
