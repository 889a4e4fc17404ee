package videos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/metrics"
	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/notify"
	"github.com/screengrab/backend/internal/repositories"
	"github.com/screengrab/backend/internal/storage"
)

const (
	// DefaultContentType is stored when the uploaded bytes are not recognised as video.
	DefaultContentType = "video/webm"

	sniffLength = 3072
)

// VideoStore persists video rows.
type VideoStore interface {
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

// RequestStore persists viewer requests for expired videos.
type RequestStore interface {
	Create(ctx context.Context, request models.VideoRequest) error
	ListPending(ctx context.Context, videoID string) ([]models.VideoRequest, error)
	MarkFulfilled(ctx context.Context, ids []string) (int64, error)
}

// UserStore resolves video owners.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// BlobStore holds video bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// Notifier sends the emails of the request workflow.
type Notifier interface {
	NotifyOwnerRequest(ctx context.Context, req notify.OwnerRequest) error
	NotifyVideoAvailable(ctx context.Context, to, videoID, filename string) error
}

// ServiceConfig wires the collaborators of a Service.
type ServiceConfig struct {
	Videos    VideoStore
	Requests  RequestStore
	Users     UserStore
	Blobs     BlobStore
	Notifier  Notifier
	Retention time.Duration
}

// Service implements the video lifecycle: upload, finalize, read, re-upload, delete and sweep.
type Service struct {
	videos    VideoStore
	requests  RequestStore
	users     UserStore
	blobs     BlobStore
	notifier  Notifier
	retention time.Duration

	NowFunc func() time.Time
	NewID   func() (string, error)
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Videos == nil:
		return nil, errors.New("videos: video store is required")
	case cfg.Requests == nil:
		return nil, errors.New("videos: request store is required")
	case cfg.Users == nil:
		return nil, errors.New("videos: user store is required")
	case cfg.Blobs == nil:
		return nil, errors.New("videos: blob store is required")
	case cfg.Notifier == nil:
		return nil, errors.New("videos: notifier is required")
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Service{
		videos:    cfg.Videos,
		requests:  cfg.Requests,
		users:     cfg.Users,
		blobs:     cfg.Blobs,
		notifier:  cfg.Notifier,
		retention: retention,
		NowFunc:   time.Now,
		NewID:     NewVideoID,
	}, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc == nil {
		return time.Now().UTC()
	}
	return s.NowFunc().UTC()
}

// UploadTicket identifies where a new recording's bytes go.
type UploadTicket struct {
	VideoID        string
	StorageKey     string
	ExpirationType string
}

// BeginUpload reserves a fresh video id for the caller. Nothing is persisted.
func (s *Service) BeginUpload(ctx context.Context, caller models.Identity, filename, policy string) (UploadTicket, error) {
	if err := RequireIdentity(caller); err != nil {
		return UploadTicket{}, err
	}
	if strings.TrimSpace(filename) == "" {
		return UploadTicket{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}

	id, err := s.NewID()
	if err != nil {
		return UploadTicket{}, err
	}

	logging.FromContext(ctx).Info("upload prepared",
		slog.String("video_id", id),
		slog.String("user_id", caller.UserID),
	)

	return UploadTicket{
		VideoID:        id,
		StorageKey:     StorageKey(caller.UserID, id),
		ExpirationType: PolicyOrDefault(policy),
	}, nil
}

// CommitBytes stores the uploaded bytes under the caller's key for videoID, replacing
// any previous upload. It returns the number of bytes written.
func (s *Service) CommitBytes(ctx context.Context, caller models.Identity, videoID string, body io.Reader) (int64, error) {
	if err := RequireIdentity(caller); err != nil {
		return 0, err
	}
	if strings.TrimSpace(videoID) == "" || body == nil {
		return 0, fmt.Errorf("%w: video id and body are required", ErrInvalidInput)
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: upload body is empty", ErrInvalidInput)
	}
	head = head[:n]

	contentType := DefaultContentType
	if detected := mimetype.Detect(head); strings.HasPrefix(detected.String(), "video/") {
		contentType = detected.String()
	}

	counter := &countingReader{r: io.MultiReader(bytes.NewReader(head), body)}
	key := StorageKey(caller.UserID, videoID)

	if err := s.blobs.Put(ctx, key, counter, contentType); err != nil {
		metrics.RecordUpload(contentType, metrics.StatusFailure, counter.n)
		return 0, fmt.Errorf("store video bytes: %w", err)
	}

	metrics.RecordUpload(contentType, metrics.StatusSuccess, counter.n)
	logging.FromContext(ctx).Info("video bytes stored",
		slog.String("video_id", videoID),
		slog.String("content_type", contentType),
		slog.Int64("bytes", counter.n),
	)

	return counter.n, nil
}

// FinalizeInput carries the metadata reported by the client after upload.
type FinalizeInput struct {
	VideoID         string
	Filename        string
	SizeBytes       int64
	DurationSeconds int64
	ExpirationType  string
}

// Finalize records an uploaded video and starts its share window. No prior BeginUpload
// is required for the id.
func (s *Service) Finalize(ctx context.Context, caller models.Identity, in FinalizeInput) (models.Video, error) {
	if err := RequireIdentity(caller); err != nil {
		return models.Video{}, err
	}
	if strings.TrimSpace(in.VideoID) == "" || strings.TrimSpace(in.Filename) == "" {
		return models.Video{}, fmt.Errorf("%w: video id and filename are required", ErrInvalidInput)
	}
	if in.SizeBytes < 0 || in.DurationSeconds < 0 {
		return models.Video{}, fmt.Errorf("%w: size and duration must not be negative", ErrInvalidInput)
	}

	now := s.now()
	policy := PolicyOrDefault(in.ExpirationType)
	video := models.Video{
		ID:              in.VideoID,
		UserID:          caller.UserID,
		Filename:        in.Filename,
		StorageKey:      StorageKey(caller.UserID, in.VideoID),
		SizeBytes:       in.SizeBytes,
		DurationSeconds: in.DurationSeconds,
		ExpirationType:  policy,
		ExpiresAt:       now.Add(ExpirationDuration(policy)),
		CreatedAt:       now,
	}

	if err := s.videos.Create(ctx, video); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			if _, ownErr := s.loadOwned(ctx, caller, in.VideoID); ownErr != nil {
				return models.Video{}, ownErr
			}
			return models.Video{}, ErrConflict
		case errors.Is(err, repositories.ErrNotFound):
			return models.Video{}, ErrUnauthorized
		default:
			return models.Video{}, fmt.Errorf("create video: %w", err)
		}
	}

	logging.FromContext(ctx).Info("video finalized",
		slog.String("video_id", video.ID),
		slog.String("user_id", video.UserID),
		slog.String("expiration_type", policy),
		slog.Time("expires_at", video.ExpiresAt),
	)

	return video, nil
}

// Get returns a video, persisting the expired flag when its window has passed.
func (s *Service) Get(ctx context.Context, videoID string) (models.Video, error) {
	video, err := s.videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("load video: %w", err)
	}

	if IsExpired(video, s.now()) && !video.IsExpired {
		if err := s.videos.MarkExpired(ctx, video.ID); err != nil {
			return models.Video{}, fmt.Errorf("flag expired video: %w", err)
		}
		video.IsExpired = true
		logging.FromContext(ctx).Info("video expired on read", slog.String("video_id", video.ID))
	}

	return video, nil
}

// Stream opens an active video's bytes and counts one view. Callers must close the object body.
func (s *Service) Stream(ctx context.Context, videoID string) (models.Video, storage.Object, error) {
	video, obj, err := s.openActive(ctx, videoID)
	if err != nil {
		return models.Video{}, storage.Object{}, err
	}

	if err := s.videos.IncrementViews(ctx, video.ID); err != nil {
		obj.Body.Close()
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, storage.Object{}, ErrNotFound
		}
		return models.Video{}, storage.Object{}, fmt.Errorf("count view: %w", err)
	}
	video.ViewCount++
	metrics.RecordStream()

	return video, obj, nil
}

// Download opens an active video's bytes without counting a view.
func (s *Service) Download(ctx context.Context, videoID string) (models.Video, storage.Object, error) {
	return s.openActive(ctx, videoID)
}

func (s *Service) openActive(ctx context.Context, videoID string) (models.Video, storage.Object, error) {
	video, err := s.Get(ctx, videoID)
	if err != nil {
		return models.Video{}, storage.Object{}, err
	}
	if video.IsExpired {
		return models.Video{}, storage.Object{}, ErrGone
	}

	obj, err := s.blobs.Get(ctx, video.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return models.Video{}, storage.Object{}, ErrBlobMissing
		}
		return models.Video{}, storage.Object{}, fmt.Errorf("open video bytes: %w", err)
	}

	if obj.ContentType == "" {
		obj.ContentType = DefaultContentType
	}
	if obj.Size <= 0 {
		obj.Size = video.SizeBytes
	}

	return video, obj, nil
}

// ListForOwner returns the caller's videos newest first. The expired flag reflects the
// current time but is not persisted.
func (s *Service) ListForOwner(ctx context.Context, caller models.Identity) ([]models.Video, error) {
	if err := RequireIdentity(caller); err != nil {
		return nil, err
	}

	list, err := s.videos.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	now := s.now()
	for i := range list {
		list[i].IsExpired = IsExpired(list[i], now)
	}

	return list, nil
}

// ReuploadResult summarises a re-upload.
type ReuploadResult struct {
	Video  models.Video
	Fanout FanoutResult
}

// Reupload restarts an owned video's share window and tells pending requesters it is back.
func (s *Service) Reupload(ctx context.Context, caller models.Identity, videoID, policy string) (ReuploadResult, error) {
	video, err := s.loadOwned(ctx, caller, videoID)
	if err != nil {
		return ReuploadResult{}, err
	}

	now := s.now()
	policy = PolicyOrDefault(policy)
	expiresAt := now.Add(ExpirationDuration(policy))

	if err := s.videos.Renew(ctx, video.ID, policy, expiresAt); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ReuploadResult{}, ErrNotFound
		}
		return ReuploadResult{}, fmt.Errorf("renew video: %w", err)
	}

	video.ExpirationType = policy
	video.ExpiresAt = expiresAt
	video.IsExpired = false

	fanout, err := s.reuploadFanout(ctx, video)
	if err != nil {
		return ReuploadResult{Video: video}, err
	}

	logging.FromContext(ctx).Info("video reuploaded",
		slog.String("video_id", video.ID),
		slog.String("expiration_type", policy),
		slog.Int("fulfilled", fanout.Fulfilled),
		slog.Int("notified", fanout.Notified),
	)

	return ReuploadResult{Video: video, Fanout: fanout}, nil
}

// Delete removes an owned video. A blob that cannot be deleted is logged and left behind.
func (s *Service) Delete(ctx context.Context, caller models.Identity, videoID string) error {
	video, err := s.loadOwned(ctx, caller, videoID)
	if err != nil {
		return err
	}

	logger := logging.FromContext(ctx).With(slog.String("video_id", video.ID))

	if err := s.blobs.Delete(ctx, video.StorageKey); err != nil {
		logger.Warn("failed to delete video bytes", slog.String("storage_key", video.StorageKey), slog.Any("error", err))
	}

	if err := s.videos.Delete(ctx, video.ID); err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	logger.Info("video deleted")
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
