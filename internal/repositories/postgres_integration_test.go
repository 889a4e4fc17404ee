package repositories

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/screengrab/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_UpsertAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	first, err := repo.UpsertByExternalID(ctx, models.User{
		ID:         uuid.NewString(),
		Email:      "alice@example.com",
		Name:       "Alice",
		ExternalID: "google-123",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	second, err := repo.UpsertByExternalID(ctx, models.User{
		ID:         uuid.NewString(),
		Email:      "alice@new.example.com",
		Name:       "Alice B",
		ExternalID: "google-123",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert returning user: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected stable id %s across logins, got %s", first.ID, second.ID)
	}
	if second.Email != "alice@new.example.com" || second.Name != "Alice B" {
		t.Fatalf("expected refreshed profile, got %+v", second)
	}

	fetched, err := repo.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Email != second.Email {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresVideoRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestUser(t, NewPostgresUserRepository(testPool), "owner@example.com")
	repo := NewPostgresVideoRepository(testPool)

	now := time.Now().UTC().Truncate(time.Millisecond)
	video := newTestVideo(owner.ID, "vid-one", now, now.Add(24*time.Hour))

	if err := repo.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}
	if err := repo.Create(ctx, video); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}

	orphan := newTestVideo(uuid.NewString(), "vid-orphan", now, now.Add(time.Hour))
	if err := repo.Create(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}

	if err := repo.IncrementViews(ctx, video.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if err := repo.IncrementViews(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound incrementing missing video, got %v", err)
	}

	if err := repo.MarkExpired(ctx, video.ID); err != nil {
		t.Fatalf("mark expired: %v", err)
	}

	loaded, err := repo.FindByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("find video: %v", err)
	}
	if !loaded.IsExpired || loaded.ViewCount != 1 {
		t.Fatalf("expected expired video with one view, got %+v", loaded)
	}
	if !timesClose(loaded.ExpiresAt, video.ExpiresAt, time.Millisecond) {
		t.Fatalf("expected expires_at %v, got %v", video.ExpiresAt, loaded.ExpiresAt)
	}

	renewed := now.Add(7 * 24 * time.Hour)
	if err := repo.Renew(ctx, video.ID, "1week", renewed); err != nil {
		t.Fatalf("renew video: %v", err)
	}

	loaded, err = repo.FindByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("find renewed video: %v", err)
	}
	if loaded.IsExpired || loaded.ExpirationType != "1week" || !timesClose(loaded.ExpiresAt, renewed, time.Millisecond) {
		t.Fatalf("unexpected renewed video: %+v", loaded)
	}

	if err := repo.Renew(ctx, "missing", "24h", renewed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound renewing missing video, got %v", err)
	}
}

func TestPostgresVideoRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	owner := createTestUser(t, users, "owner@example.com")
	other := createTestUser(t, users, "other@example.com")
	repo := NewPostgresVideoRepository(testPool)

	base := time.Now().UTC().Add(-time.Hour)
	older := newTestVideo(owner.ID, "older", base, base.Add(24*time.Hour))
	newer := newTestVideo(owner.ID, "newer", base.Add(10*time.Minute), base.Add(24*time.Hour))
	foreign := newTestVideo(other.ID, "foreign", base.Add(20*time.Minute), base.Add(24*time.Hour))

	for _, v := range []models.Video{older, newer, foreign} {
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("create video %s: %v", v.ID, err)
		}
	}

	list, err := repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestPostgresVideoRepository_ExpireAndPurge(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestUser(t, NewPostgresUserRepository(testPool), "owner@example.com")
	repo := NewPostgresVideoRepository(testPool)
	requests := NewPostgresRequestRepository(testPool)

	now := time.Now().UTC()
	fresh := newTestVideo(owner.ID, "fresh", now, now.Add(time.Hour))
	recent := newTestVideo(owner.ID, "recent", now.Add(-48*time.Hour), now.Add(-24*time.Hour))
	stale := newTestVideo(owner.ID, "stale", now.Add(-20*24*time.Hour), now.Add(-10*24*time.Hour))

	for _, v := range []models.Video{fresh, recent, stale} {
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("create video %s: %v", v.ID, err)
		}
	}

	if err := requests.Create(ctx, newTestRequest(stale.ID, nil, now)); err != nil {
		t.Fatalf("create request: %v", err)
	}

	count, err := repo.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("expire due: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 videos expired, got %d", count)
	}

	count, err = repo.ExpireDue(ctx, now)
	if err != nil {
		t.Fatalf("expire due again: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected second pass to be a no-op, got %d", count)
	}

	purgeable, err := repo.ListPurgeable(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("list purgeable: %v", err)
	}
	if len(purgeable) != 1 || purgeable[0].ID != stale.ID {
		t.Fatalf("expected only the stale video to be purgeable, got %+v", purgeable)
	}

	if err := repo.Delete(ctx, stale.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if err := repo.Delete(ctx, stale.ID); err != nil {
		t.Fatalf("expected repeated delete to be a no-op, got %v", err)
	}

	if _, err := repo.FindByID(ctx, stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	pending, err := requests.ListPending(ctx, stale.ID)
	if err != nil {
		t.Fatalf("list pending after delete: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected requests to be removed with the video, got %d", len(pending))
	}
}

func TestPostgresVideoRepository_PurgeExpiredRechecksRow(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestUser(t, NewPostgresUserRepository(testPool), "owner@example.com")
	repo := NewPostgresVideoRepository(testPool)
	requests := NewPostgresRequestRepository(testPool)

	now := time.Now().UTC()
	cutoff := now.Add(-7 * 24 * time.Hour)
	renewed := newTestVideo(owner.ID, "renewed", now.Add(-20*24*time.Hour), now.Add(-10*24*time.Hour))
	stale := newTestVideo(owner.ID, "stale", now.Add(-20*24*time.Hour), now.Add(-10*24*time.Hour))
	for _, v := range []models.Video{renewed, stale} {
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("create video %s: %v", v.ID, err)
		}
	}
	if err := requests.Create(ctx, newTestRequest(stale.ID, nil, now)); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := repo.ExpireDue(ctx, now); err != nil {
		t.Fatalf("expire due: %v", err)
	}

	if err := repo.Renew(ctx, renewed.ID, "1week", now.Add(7*24*time.Hour)); err != nil {
		t.Fatalf("renew video: %v", err)
	}

	removed, err := repo.PurgeExpired(ctx, renewed.ID, cutoff)
	if err != nil {
		t.Fatalf("purge renewed video: %v", err)
	}
	if removed {
		t.Fatal("expected renewed video to survive the purge")
	}
	if _, err := repo.FindByID(ctx, renewed.ID); err != nil {
		t.Fatalf("expected renewed video to remain, got %v", err)
	}

	removed, err = repo.PurgeExpired(ctx, stale.ID, cutoff)
	if err != nil {
		t.Fatalf("purge stale video: %v", err)
	}
	if !removed {
		t.Fatal("expected stale video to be purged")
	}
	if _, err := repo.FindByID(ctx, stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
	pending, err := requests.ListPending(ctx, stale.ID)
	if err != nil {
		t.Fatalf("list pending after purge: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected requests to be removed with the video, got %d", len(pending))
	}

	removed, err = repo.PurgeExpired(ctx, stale.ID, cutoff)
	if err != nil || removed {
		t.Fatalf("expected repeated purge to be a no-op, got removed=%v err=%v", removed, err)
	}
}

func TestPostgresRequestRepository_PendingAndFulfilled(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	owner := createTestUser(t, NewPostgresUserRepository(testPool), "owner@example.com")
	videos := NewPostgresVideoRepository(testPool)
	repo := NewPostgresRequestRepository(testPool)

	now := time.Now().UTC()
	video := newTestVideo(owner.ID, "requested", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if err := videos.Create(ctx, video); err != nil {
		t.Fatalf("create video: %v", err)
	}

	email := "viewer@example.com"
	named := newTestRequest(video.ID, &email, now.Add(-time.Minute))
	anonymous := newTestRequest(video.ID, nil, now)

	for _, r := range []models.VideoRequest{named, anonymous} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}

	if err := repo.Create(ctx, newTestRequest("missing", nil, now)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for request on missing video, got %v", err)
	}

	pending, err := repo.ListPending(ctx, video.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(pending))
	}
	if pending[0].RequesterEmail == nil || *pending[0].RequesterEmail != email {
		t.Fatalf("expected first request to carry %s, got %+v", email, pending[0].RequesterEmail)
	}
	if pending[1].RequesterEmail != nil {
		t.Fatalf("expected anonymous request to have nil email")
	}

	marked, err := repo.MarkFulfilled(ctx, []string{pending[0].ID, pending[1].ID})
	if err != nil {
		t.Fatalf("mark fulfilled: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 requests marked, got %d", marked)
	}

	pending, err = repo.ListPending(ctx, video.ID)
	if err != nil {
		t.Fatalf("list pending after fulfil: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending requests, got %d", len(pending))
	}

	if marked, err := repo.MarkFulfilled(ctx, nil); err != nil || marked != 0 {
		t.Fatalf("expected empty mark to be a no-op, got %d, %v", marked, err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE video_requests, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user, err := repo.UpsertByExternalID(context.Background(), models.User{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       "Test User",
		ExternalID: "ext-" + uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func newTestVideo(ownerID, id string, createdAt, expiresAt time.Time) models.Video {
	return models.Video{
		ID:              id,
		UserID:          ownerID,
		Filename:        id + ".webm",
		StorageKey:      "videos/" + ownerID + "/" + id + ".webm",
		SizeBytes:       1024,
		DurationSeconds: 12,
		ExpirationType:  "24h",
		ExpiresAt:       expiresAt,
		CreatedAt:       createdAt,
	}
}

func newTestRequest(videoID string, email *string, at time.Time) models.VideoRequest {
	return models.VideoRequest{
		ID:             ulid.Make().String(),
		VideoID:        videoID,
		RequesterEmail: email,
		RequestedAt:    at,
	}
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
