package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/videos"
)

const maxJSONBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// videoErrorStatus maps lifecycle errors onto HTTP statuses. Every handler goes through it
// so a foreign video and a missing one always render the same response.
func videoErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, videos.ErrUnauthorized):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, videos.ErrNotFound):
		return http.StatusNotFound, "Video not found"
	case errors.Is(err, videos.ErrBlobMissing):
		return http.StatusNotFound, "Video file not found"
	case errors.Is(err, videos.ErrGone):
		return http.StatusGone, "Video expired"
	case errors.Is(err, videos.ErrConflict):
		return http.StatusConflict, "Video already exists"
	case errors.Is(err, videos.ErrInvalidInput):
		return http.StatusBadRequest, strings.TrimPrefix(err.Error(), videos.ErrInvalidInput.Error()+": ")
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondVideoError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := videoErrorStatus(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(ctx).Error("video operation failed", "error", err)
	}
	respondError(ctx, w, status, message)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return "invalid email address"
		default:
			return fe.Field() + " is invalid"
		}
	}
	return "invalid request body"
}
