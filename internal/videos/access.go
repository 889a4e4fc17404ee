package videos

import (
	"context"
	"errors"
	"fmt"

	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/repositories"
)

// Decision is the outcome of an ownership check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

// RequireIdentity rejects anonymous callers.
func RequireIdentity(caller models.Identity) error {
	if caller.Anonymous() {
		return ErrUnauthorized
	}
	return nil
}

// Authorize allows only the owner of a found video. A missing video and a video owned
// by someone else both produce Denied so callers cannot tell them apart.
func Authorize(video models.Video, found bool, callerID string) Decision {
	if !found || callerID == "" || video.UserID != callerID {
		return Denied
	}
	return Allowed
}

// loadOwned fetches a video the caller is allowed to mutate.
func (s *Service) loadOwned(ctx context.Context, caller models.Identity, videoID string) (models.Video, error) {
	if err := RequireIdentity(caller); err != nil {
		return models.Video{}, err
	}

	video, err := s.videos.FindByID(ctx, videoID)
	found := err == nil
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return models.Video{}, fmt.Errorf("load video: %w", err)
	}

	if Authorize(video, found, caller.UserID) == Denied {
		return models.Video{}, ErrNotFound
	}

	return video, nil
}
