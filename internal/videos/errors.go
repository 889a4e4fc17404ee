package videos

import "errors"

var (
	// ErrUnauthorized indicates the operation requires a signed-in caller.
	ErrUnauthorized = errors.New("authentication required")
	// ErrNotFound indicates the video does not exist or is not visible to the caller.
	ErrNotFound = errors.New("video not found")
	// ErrGone indicates the video exists but its share link has expired.
	ErrGone = errors.New("video has expired")
	// ErrBlobMissing indicates the video row exists but its bytes are not in the blob store.
	ErrBlobMissing = errors.New("video file not found")
	// ErrInvalidInput indicates the caller supplied malformed or missing fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates the video id has already been finalized.
	ErrConflict = errors.New("video already exists")
)
