package videos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/notify"
	"github.com/screengrab/backend/internal/repositories"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestAccess records that a viewer wants a video shared again and emails the owner.
// It works for active and expired videos alike. When the owner cannot be notified the
// error is returned but the recorded request is kept.
func (s *Service) RequestAccess(ctx context.Context, videoID, requesterEmail string) (models.VideoRequest, error) {
	requesterEmail = strings.TrimSpace(requesterEmail)
	if requesterEmail != "" {
		if err := validate.Var(requesterEmail, "email"); err != nil {
			return models.VideoRequest{}, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
		}
	}

	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.VideoRequest{}, ErrNotFound
		}
		return models.VideoRequest{}, fmt.Errorf("load video: %w", err)
	}

	owner, err := s.users.FindByID(ctx, video.UserID)
	if err != nil {
		return models.VideoRequest{}, fmt.Errorf("load video owner: %w", err)
	}

	request := models.VideoRequest{
		ID:          ulid.Make().String(),
		VideoID:     video.ID,
		RequestedAt: s.now(),
	}
	if requesterEmail != "" {
		request.RequesterEmail = &requesterEmail
	}

	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.VideoRequest{}, ErrNotFound
		}
		return models.VideoRequest{}, fmt.Errorf("record request: %w", err)
	}

	logger := logging.FromContext(ctx).With(
		slog.String("video_id", video.ID),
		slog.String("request_id", request.ID),
	)
	logger.Info("video requested", slog.Bool("anonymous", request.RequesterEmail == nil))

	err = s.notifier.NotifyOwnerRequest(ctx, notify.OwnerRequest{
		OwnerEmail:     owner.Email,
		OwnerName:      owner.Name,
		VideoID:        video.ID,
		Filename:       video.Filename,
		RequesterEmail: requesterEmail,
	})
	if err != nil {
		return request, fmt.Errorf("notify owner: %w", err)
	}

	return request, nil
}

// FanoutResult counts what a re-upload did to pending requests.
type FanoutResult struct {
	Fulfilled int
	Notified  int
	Failed    int
}

// reuploadFanout marks every pending request fulfilled, then emails each requester that
// left an address. Email failures are logged and counted; they never fail the re-upload.
// A crash between the two steps leaves requests fulfilled without an email.
func (s *Service) reuploadFanout(ctx context.Context, video models.Video) (FanoutResult, error) {
	pending, err := s.requests.ListPending(ctx, video.ID)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("load pending requests: %w", err)
	}
	if len(pending) == 0 {
		return FanoutResult{}, nil
	}

	ids := make([]string, 0, len(pending))
	for _, req := range pending {
		ids = append(ids, req.ID)
	}

	if _, err := s.requests.MarkFulfilled(ctx, ids); err != nil {
		return FanoutResult{}, fmt.Errorf("fulfil requests: %w", err)
	}

	result := FanoutResult{Fulfilled: len(pending)}
	ctx, span := logging.StartSpan(ctx, "videos.reupload_fanout", slog.String("video_id", video.ID))
	defer span.End()
	logger := logging.FromContext(ctx)

	for _, req := range pending {
		if req.RequesterEmail == nil || strings.TrimSpace(*req.RequesterEmail) == "" {
			continue
		}
		if err := s.notifier.NotifyVideoAvailable(ctx, *req.RequesterEmail, video.ID, video.Filename); err != nil {
			result.Failed++
			logger.Warn("failed to notify requester",
				slog.String("request_id", req.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.Notified++
	}

	return result, nil
}
