package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/screengrab/backend/internal/auth"
	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/notify"
	"github.com/screengrab/backend/internal/storage"
	"github.com/screengrab/backend/internal/videos"
)

// VideoHandler provides endpoints for uploading, sharing and managing videos.
type VideoHandler struct {
	Videos         VideoService
	AppURL         string
	MaxUploadBytes int64
	RequestLimiter RateLimiter
}

type videoResponse struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Filename        string `json:"filename"`
	StorageKey      string `json:"r2_key"`
	SizeBytes       int64  `json:"size_bytes"`
	DurationSeconds int64  `json:"duration_seconds"`
	ExpirationType  string `json:"expiration_type"`
	ExpiresAt       int64  `json:"expires_at"`
	IsExpired       bool   `json:"is_expired"`
	CreatedAt       int64  `json:"created_at"`
	ViewCount       int64  `json:"view_count"`
}

func newVideoResponse(v models.Video) videoResponse {
	return videoResponse{
		ID:              v.ID,
		UserID:          v.UserID,
		Filename:        v.Filename,
		StorageKey:      v.StorageKey,
		SizeBytes:       v.SizeBytes,
		DurationSeconds: v.DurationSeconds,
		ExpirationType:  v.ExpirationType,
		ExpiresAt:       v.ExpiresAt.UnixMilli(),
		IsExpired:       v.IsExpired,
		CreatedAt:       v.CreatedAt.UnixMilli(),
		ViewCount:       v.ViewCount,
	}
}

type prepareUploadRequest struct {
	Filename       string `json:"filename" validate:"required,max=512"`
	ExpirationType string `json:"expirationType" validate:"max=32"`
}

type finalizeRequest struct {
	Filename        string `json:"filename" validate:"required,max=512"`
	SizeBytes       int64  `json:"sizeBytes" validate:"gte=0"`
	DurationSeconds int64  `json:"durationSeconds" validate:"gte=0"`
	ExpirationType  string `json:"expirationType" validate:"max=32"`
}

type accessRequest struct {
	RequesterEmail string `json:"requesterEmail" validate:"omitempty,email"`
}

type reuploadRequest struct {
	ExpirationType string `json:"expirationType" validate:"max=32"`
}

func (h VideoHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.Videos == nil {
		logging.FromContext(r.Context()).Error("video service unavailable")
		respondError(r.Context(), w, http.StatusInternalServerError, "video service unavailable")
		return false
	}
	return true
}

// PrepareUpload handles POST /api/videos/prepare-upload.
func (h VideoHandler) PrepareUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	caller := auth.IdentityFromContext(ctx)
	if err := videos.RequireIdentity(caller); err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	var req prepareUploadRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ticket, err := h.Videos.BeginUpload(ctx, caller, req.Filename, req.ExpirationType)
	if err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{
		"videoId":        ticket.VideoID,
		"uploadUrl":      "/api/videos/" + ticket.VideoID + "/upload",
		"expirationType": ticket.ExpirationType,
		"r2Key":          ticket.StorageKey,
	})
}

// Upload handles PUT /api/videos/{id}/upload with the raw recording as the body.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	caller := auth.IdentityFromContext(ctx)
	if err := videos.RequireIdentity(caller); err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	videoID := r.PathValue("id")
	body := io.Reader(r.Body)
	if h.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	if _, err := h.Videos.CommitBytes(ctx, caller, videoID, body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "Video exceeds the upload limit")
			return
		}
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "videoId": videoID})
}

// Finalize handles POST /api/videos/{id}/finalize.
func (h VideoHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	caller := auth.IdentityFromContext(ctx)
	if err := videos.RequireIdentity(caller); err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	var req finalizeRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, validationMessage(err))
		return
	}

	video, err := h.Videos.Finalize(ctx, caller, videos.FinalizeInput{
		VideoID:         r.PathValue("id"),
		Filename:        req.Filename,
		SizeBytes:       req.SizeBytes,
		DurationSeconds: req.DurationSeconds,
		ExpirationType:  req.ExpirationType,
	})
	if err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success":  true,
		"videoId":  video.ID,
		"shareUrl": notify.ShareURL(h.AppURL, video.ID),
	})
}

// Get handles GET /api/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	video, err := h.Videos.Get(ctx, r.PathValue("id"))
	if err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"video": newVideoResponse(video)})
}

// Stream handles GET /api/videos/{id}/stream.
func (h VideoHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	video, obj, err := h.Videos.Stream(r.Context(), r.PathValue("id"))
	if err != nil {
		respondVideoError(r.Context(), w, err)
		return
	}

	h.writeObject(w, r, video, obj, false)
}

// Download handles GET /api/videos/{id}/download.
func (h VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.available(w, r) {
		return
	}

	video, obj, err := h.Videos.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		respondVideoError(r.Context(), w, err)
		return
	}

	h.writeObject(w, r, video, obj, true)
}

func (h VideoHandler) writeObject(w http.ResponseWriter, r *http.Request, video models.Video, obj storage.Object, attachment bool) {
	defer obj.Body.Close()

	header := w.Header()
	header.Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if attachment {
		header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": video.Filename}))
	} else {
		header.Set("Cache-Control", "public, max-age=3600")
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, obj.Body); err != nil {
		logging.FromContext(r.Context()).Warn("video transfer interrupted", "videoId", video.ID, "error", err)
	}
}

// RequestAccess handles POST /api/videos/{id}/request. Anyone may ask the owner to share
// a video again; an email address is optional.
func (h VideoHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	if !allowRequest(h.RequestLimiter, r, "video-request") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	var req accessRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if _, err := h.Videos.RequestAccess(ctx, r.PathValue("id"), req.RequesterEmail); err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "message": "Request sent to video owner"})
}

// Reupload handles POST /api/videos/{id}/reupload.
func (h VideoHandler) Reupload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	var req reuploadRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, validationMessage(err))
		return
	}

	result, err := h.Videos.Reupload(ctx, auth.IdentityFromContext(ctx), r.PathValue("id"), req.ExpirationType)
	if err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"success":  true,
		"shareUrl": notify.ShareURL(h.AppURL, result.Video.ID),
	})
}

// Delete handles DELETE /api/videos/{id}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	if err := h.Videos.Delete(ctx, auth.IdentityFromContext(ctx), r.PathValue("id")); err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

// ListMine handles GET /api/user/videos.
func (h VideoHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}

	list, err := h.Videos.ListForOwner(ctx, auth.IdentityFromContext(ctx))
	if err != nil {
		respondVideoError(ctx, w, err)
		return
	}

	out := make([]videoResponse, 0, len(list))
	for _, v := range list {
		out = append(out, newVideoResponse(v))
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": out})
}
