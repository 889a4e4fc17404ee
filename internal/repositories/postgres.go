package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	crdbpgx "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/screengrab/backend/internal/db"
	"github.com/screengrab/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// UpsertByExternalID inserts a user on first login and refreshes email and name on later
// logins. The returned user carries the stored id and creation time.
func (r *PostgresUserRepository) UpsertByExternalID(ctx context.Context, user models.User) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        INSERT INTO users (id, email, name, external_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (external_id)
        DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
        RETURNING id, email, name, external_id, created_at
    `, user.ID, user.Email, user.Name, user.ExternalID, user.CreatedAt.UTC())

	var stored models.User
	if err := row.Scan(&stored.ID, &stored.Email, &stored.Name, &stored.ExternalID, &stored.CreatedAt); err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()

	return stored, nil
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, name, external_id, created_at
        FROM users
        WHERE id = $1
    `, id)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.ExternalID, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by id: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()

	return user, nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, user_id, filename, storage_key, size_bytes, duration_seconds,
            expiration_type, expires_at, is_expired, created_at, view_count`

// Create stores a finalized video row.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (`+videoColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, video.ID, video.UserID, video.Filename, video.StorageKey, video.SizeBytes, video.DurationSeconds,
		video.ExpirationType, video.ExpiresAt.UTC(), video.IsExpired, video.CreatedAt.UTC(), video.ViewCount)
	if err != nil {
		return insertError("insert video", err)
	}

	return nil
}

// FindByID loads a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// ListByOwner returns the owner's videos newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, userID string) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query owner videos: %w", err)
	}

	return collectVideos(rows)
}

// MarkExpired sets the expired flag. Flagging an already expired or missing video is a no-op.
func (r *PostgresVideoRepository) MarkExpired(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `UPDATE videos SET is_expired = TRUE WHERE id = $1 AND NOT is_expired`, id); err != nil {
		return fmt.Errorf("mark video expired: %w", err)
	}

	return nil
}

// IncrementViews bumps the view counter by one.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment video views: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Renew clears the expired flag and stores a freshly computed expiration.
func (r *PostgresVideoRepository) Renew(ctx context.Context, id, expirationType string, expiresAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET expires_at = $2, is_expired = FALSE, expiration_type = $3
        WHERE id = $1
    `, id, expiresAt.UTC(), expirationType)
	if err != nil {
		return fmt.Errorf("renew video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a video together with its access requests. Deleting a missing video is a no-op.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM video_requests WHERE video_id = $1`, id); err != nil {
			return fmt.Errorf("delete video requests: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete video row: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	return nil
}

// PurgeExpired deletes a video and its access requests only if the row is still expired
// and its expiration is older than the cutoff. It reports whether the row was removed.
func (r *PostgresVideoRepository) PurgeExpired(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var removed bool
	err = crdbpgx.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		removed = false
		tag, err := tx.Exec(ctx, `
            DELETE FROM videos
            WHERE id = $1 AND is_expired AND expires_at < $2
        `, id, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("delete video row: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM video_requests WHERE video_id = $1`, id); err != nil {
			return fmt.Errorf("delete video requests: %w", err)
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("purge video: %w", err)
	}

	return removed, nil
}

// ExpireDue flags every video whose expiration has passed and returns how many rows changed.
func (r *PostgresVideoRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET is_expired = TRUE
        WHERE expires_at <= $1 AND NOT is_expired
    `, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire due videos: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListPurgeable returns expired videos whose expiration is older than the cutoff.
func (r *PostgresVideoRepository) ListPurgeable(ctx context.Context, cutoff time.Time) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE expires_at < $1 AND is_expired
        ORDER BY expires_at
    `, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("query purgeable videos: %w", err)
	}

	return collectVideos(rows)
}

// PostgresRequestRepository persists viewer requests for expired videos.
type PostgresRequestRepository struct {
	pool db.Pool
}

// NewPostgresRequestRepository constructs a request repository backed by PostgreSQL.
func NewPostgresRequestRepository(pool db.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{pool: pool}
}

// Create stores a new request.
func (r *PostgresRequestRepository) Create(ctx context.Context, request models.VideoRequest) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO video_requests (id, video_id, requester_email, requested_at, fulfilled)
        VALUES ($1, $2, $3, $4, $5)
    `, request.ID, request.VideoID, request.RequesterEmail, request.RequestedAt.UTC(), request.Fulfilled)
	if err != nil {
		return insertError("insert video request", err)
	}

	return nil
}

// ListPending returns unfulfilled requests for a video, oldest first.
func (r *PostgresRequestRepository) ListPending(ctx context.Context, videoID string) ([]models.VideoRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, video_id, requester_email, requested_at, fulfilled
        FROM video_requests
        WHERE video_id = $1 AND NOT fulfilled
        ORDER BY requested_at
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query pending requests: %w", err)
	}
	defer rows.Close()

	var requests []models.VideoRequest
	for rows.Next() {
		var (
			req   models.VideoRequest
			email sql.NullString
		)
		if err := rows.Scan(&req.ID, &req.VideoID, &email, &req.RequestedAt, &req.Fulfilled); err != nil {
			return nil, fmt.Errorf("scan video request: %w", err)
		}
		if email.Valid {
			value := email.String
			req.RequesterEmail = &value
		}
		req.RequestedAt = req.RequestedAt.UTC()
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video requests: %w", err)
	}

	return requests, nil
}

// MarkFulfilled flags the given requests as fulfilled in one statement.
func (r *PostgresRequestRepository) MarkFulfilled(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE video_requests SET fulfilled = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("mark requests fulfilled: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	if err := row.Scan(&video.ID, &video.UserID, &video.Filename, &video.StorageKey, &video.SizeBytes,
		&video.DurationSeconds, &video.ExpirationType, &video.ExpiresAt, &video.IsExpired, &video.CreatedAt,
		&video.ViewCount); err != nil {
		return models.Video{}, err
	}
	video.ExpiresAt = video.ExpiresAt.UTC()
	video.CreatedAt = video.CreatedAt.UTC()
	return video, nil
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	defer rows.Close()

	var list []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		list = append(list, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return list, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ RequestRepository = (*PostgresRequestRepository)(nil)
