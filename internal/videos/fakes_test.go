package videos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/screengrab/backend/internal/models"
	"github.com/screengrab/backend/internal/notify"
	"github.com/screengrab/backend/internal/repositories"
	"github.com/screengrab/backend/internal/storage"
)

type fakeVideoStore struct {
	mu     sync.Mutex
	videos map[string]models.Video
	users  map[string]bool

	deleteErr   error
	purgeErr    error
	beforePurge func(id string)
	markCalls   int
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: map[string]models.Video{}, users: map[string]bool{}}
}

func (f *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.videos[video.ID]; ok {
		return repositories.ErrConflict
	}
	if !f.users[video.UserID] {
		return repositories.ErrNotFound
	}
	f.videos[video.ID] = video
	return nil
}

func (f *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	video, ok := f.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (f *fakeVideoStore) ListByOwner(_ context.Context, userID string) ([]models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.Video
	for _, v := range f.videos {
		if v.UserID == userID {
			list = append(list, v)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (f *fakeVideoStore) MarkExpired(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if v, ok := f.videos[id]; ok {
		v.IsExpired = true
		f.videos[id] = v
	}
	return nil
}

func (f *fakeVideoStore) IncrementViews(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	v.ViewCount++
	f.videos[id] = v
	return nil
}

func (f *fakeVideoStore) Renew(_ context.Context, id, expirationType string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	v.ExpirationType = expirationType
	v.ExpiresAt = expiresAt
	v.IsExpired = false
	f.videos[id] = v
	return nil
}

func (f *fakeVideoStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.videos, id)
	return nil
}

func (f *fakeVideoStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, v := range f.videos {
		if !v.IsExpired && !now.Before(v.ExpiresAt) {
			v.IsExpired = true
			f.videos[id] = v
			count++
		}
	}
	return count, nil
}

func (f *fakeVideoStore) ListPurgeable(_ context.Context, cutoff time.Time) ([]models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.Video
	for _, v := range f.videos {
		if v.IsExpired && v.ExpiresAt.Before(cutoff) {
			list = append(list, v)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeVideoStore) PurgeExpired(_ context.Context, id string, cutoff time.Time) (bool, error) {
	if f.beforePurge != nil {
		f.beforePurge(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return false, f.purgeErr
	}
	v, ok := f.videos[id]
	if !ok || !v.IsExpired || !v.ExpiresAt.Before(cutoff) {
		return false, nil
	}
	delete(f.videos, id)
	return true, nil
}

func (f *fakeVideoStore) get(t *testing.T, id string) models.Video {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.videos[id]
	require.True(t, ok, "video %s should exist", id)
	return v
}

func (f *fakeVideoStore) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.videos[id]
	return ok
}

// snapshot returns a copy of every row for state comparisons.
func (f *fakeVideoStore) snapshot() map[string]models.Video {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]models.Video, len(f.videos))
	for k, v := range f.videos {
		out[k] = v
	}
	return out
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests []models.VideoRequest
	videos   *fakeVideoStore
}

func (f *fakeRequestStore) Create(_ context.Context, request models.VideoRequest) error {
	if !f.videos.has(request.VideoID) {
		return repositories.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	return nil
}

func (f *fakeRequestStore) ListPending(_ context.Context, videoID string) ([]models.VideoRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VideoRequest
	for _, r := range f.requests {
		if r.VideoID == videoID && !r.Fulfilled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRequestStore) MarkFulfilled(_ context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var count int64
	for i := range f.requests {
		if wanted[f.requests[i].ID] {
			f.requests[i].Fulfilled = true
			count++
		}
	}
	return count, nil
}

func (f *fakeRequestStore) forVideo(videoID string) []models.VideoRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.VideoRequest
	for _, r := range f.requests {
		if r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out
}

type fakeUserStore struct {
	users map[string]models.User
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleteErr error
	deleted   []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) (storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: f.types[key],
	}, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

type ownerEmail struct {
	req notify.OwnerRequest
}

type availableEmail struct {
	to, videoID, filename string
}

type fakeNotifier struct {
	mu        sync.Mutex
	owner     []ownerEmail
	available []availableEmail

	ownerErr     error
	availableErr func(to string) error
}

func (f *fakeNotifier) NotifyOwnerRequest(_ context.Context, req notify.OwnerRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = append(f.owner, ownerEmail{req: req})
	return f.ownerErr
}

func (f *fakeNotifier) NotifyVideoAvailable(_ context.Context, to, videoID, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = append(f.available, availableEmail{to: to, videoID: videoID, filename: filename})
	if f.availableErr != nil {
		return f.availableErr(to)
	}
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      *Service
	videos   *fakeVideoStore
	requests *fakeRequestStore
	blobs    *fakeBlobStore
	notifier *fakeNotifier
	clock    *testClock

	owner    models.Identity
	stranger models.Identity
}

var errBoom = errors.New("boom")

func newHarness(t *testing.T) *harness {
	t.Helper()

	videos := newFakeVideoStore()
	requests := &fakeRequestStore{videos: videos}
	blobs := newFakeBlobStore()
	notifier := &fakeNotifier{}
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	owner := models.Identity{UserID: "user-owner", Email: "owner@example.com", Name: "Olive"}
	stranger := models.Identity{UserID: "user-stranger", Email: "stranger@example.com", Name: "Sam"}
	videos.users[owner.UserID] = true
	videos.users[stranger.UserID] = true

	users := &fakeUserStore{users: map[string]models.User{
		owner.UserID:    {ID: owner.UserID, Email: owner.Email, Name: owner.Name},
		stranger.UserID: {ID: stranger.UserID, Email: stranger.Email, Name: stranger.Name},
	}}

	svc, err := NewService(ServiceConfig{
		Videos:   videos,
		Requests: requests,
		Users:    users,
		Blobs:    blobs,
		Notifier: notifier,
	})
	require.NoError(t, err)
	svc.NowFunc = clock.Now

	return &harness{
		svc:      svc,
		videos:   videos,
		requests: requests,
		blobs:    blobs,
		notifier: notifier,
		clock:    clock,
		owner:    owner,
		stranger: stranger,
	}
}

// publish uploads bytes and finalizes a video owned by h.owner.
func (h *harness) publish(t *testing.T, policy string) models.Video {
	t.Helper()
	ctx := context.Background()

	ticket, err := h.svc.BeginUpload(ctx, h.owner, "clip.webm", policy)
	require.NoError(t, err)

	_, err = h.svc.CommitBytes(ctx, h.owner, ticket.VideoID, bytes.NewReader(webmHeader))
	require.NoError(t, err)

	video, err := h.svc.Finalize(ctx, h.owner, FinalizeInput{
		VideoID:         ticket.VideoID,
		Filename:        "clip.webm",
		SizeBytes:       int64(len(webmHeader)),
		DurationSeconds: 5,
		ExpirationType:  policy,
	})
	require.NoError(t, err)
	return video
}

// webmHeader is an EBML header declaring the webm doctype.
var webmHeader = []byte{
	0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01, 0x42, 0xF7, 0x81, 0x01, 0x42, 0xF2, 0x81,
	0x04, 0x42, 0xF3, 0x81, 0x08, 0x42, 0x82, 0x84, 0x77, 0x65, 0x62, 0x6D, 0x42, 0x87, 0x81, 0x04,
	0x42, 0x85, 0x81, 0x02,
}
