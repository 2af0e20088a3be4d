package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/connections"
	"github.com/hostvault/hostvault/internal/server/payloads"
	"github.com/hostvault/hostvault/internal/server/transit"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fixture struct {
	service *Service
	repo    *InMemoryRepository
	conns   *connections.Service
	blobs   *payloads.MemoryStore
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger := testLogger()
	conns := connections.NewService(connections.NewInMemoryRepository(), logger)
	blobs := payloads.NewMemoryStore()
	repo := NewInMemoryRepository()

	sender := transit.NewSender(conns, "local.example", logger,
		transit.WithScheme("http"), transit.WithRetryPolicy(0, time.Millisecond))

	return &fixture{
		service: NewService(repo, conns, blobs, sender, opts, logger),
		repo:    repo,
		conns:   conns,
		blobs:   blobs,
	}
}

func (f *fixture) connect(t *testing.T, identity string) {
	t.Helper()
	token := &auth.ClientAccessToken{
		ID:                 uuid.New(),
		AccessTokenHalfKey: cryptox.NewRandomSecret(cryptox.KeySize),
		SharedSecret:       cryptox.NewRandomSecret(cryptox.KeySize),
	}
	_, err := f.conns.Connect(context.Background(), identity, token)
	require.NoError(t, err)
}

func testPackage(t *testing.T) *transit.FilePackage {
	t.Helper()
	header := cryptox.NewRandomSecret(cryptox.KeySize)
	return &transit.FilePackage{
		FileID:        uuid.New(),
		TargetDriveID: uuid.New(),
		KeyHeader:     &header,
		Metadata:      []byte("encrypted-metadata"),
		Payload:       []byte("encrypted-payload"),
	}
}

// acceptingHost answers the transit endpoint with a fixed reason or code.
func acceptingHost(t *testing.T, reason transit.AcceptDataStreamReason, code int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code != 0 && code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transit.AcceptDataStreamResponse{Success: reason})
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")
	f.connect(t, "beta.example")

	pkg := testPackage(t)
	items, failed, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example", "beta.example", "stranger.example"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Len(t, failed, 1)
	assert.Error(t, failed["stranger.example"])

	// staged parts are shared between both items
	assert.Equal(t, items[0].PayloadKey, items[1].PayloadKey)
	staged, err := f.blobs.Get(ctx, items[0].PayloadKey)
	require.NoError(t, err)
	assert.Equal(t, pkg.Payload, staged)

	// each item carries its own recipient-bound header cipher
	assert.NotEqual(t, items[0].KeyHeaderCipher, items[1].KeyHeaderCipher)
}

func TestEnqueueCoalesces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")

	pkg := testPackage(t)
	_, _, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example"}, 1)
	require.NoError(t, err)
	_, _, err = f.service.Enqueue(ctx, pkg, []string{"alpha.example"}, 5)
	require.NoError(t, err)

	items, err := f.service.List(ctx, 0, 50)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Priority)
}

func TestDrainDelivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	identity := acceptingHost(t, transit.AcceptReasonSuccess, 0)
	f.connect(t, identity)

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{identity}, 0)
	require.NoError(t, err)

	results, err := f.service.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, transit.StatusDeliveredToInbox, results[0].Status)

	// item gone, staged blobs released
	_, err = f.service.GetItem(ctx, items[0].ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.blobs.Get(ctx, items[0].PayloadKey)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDrainReschedulesTransientFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{BackoffBase: time.Minute})
	f.connect(t, "127.0.0.1:1")

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{"127.0.0.1:1"}, 0)
	require.NoError(t, err)

	results, err := f.service.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].ShouldRetry)

	item, err := f.service.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, item.State)
	assert.Equal(t, 1, item.Attempts)
	assert.True(t, item.NextAttempt.After(time.Now().Add(30*time.Second)))
	assert.NotEmpty(t, item.LastFailure)

	// staged parts stay until the item resolves
	_, err = f.blobs.Get(ctx, item.PayloadKey)
	require.NoError(t, err)
}

func TestDrainMarksDeadAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{MaxAttempts: 1})
	f.connect(t, "127.0.0.1:1")

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{"127.0.0.1:1"}, 0)
	require.NoError(t, err)

	_, err = f.service.Drain(ctx)
	require.NoError(t, err)

	item, err := f.service.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StateDead, item.State)
}

func TestDrainPermanentFailureIsDead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	identity := acceptingHost(t, "", http.StatusForbidden)
	f.connect(t, identity)

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{identity}, 0)
	require.NoError(t, err)

	results, err := f.service.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, transit.StatusRecipientForbidden, results[0].Status)

	item, err := f.service.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StateDead, item.State)
	assert.Equal(t, 0, item.Attempts)
}

func TestBackoff(t *testing.T) {
	s := &Service{opts: Options{BackoffBase: 30 * time.Second, BackoffCap: 6 * time.Hour}.withDefaults()}

	assert.Equal(t, 30*time.Second, s.backoff(1))
	assert.Equal(t, time.Minute, s.backoff(2))
	assert.Equal(t, 8*time.Minute, s.backoff(5))
	assert.Equal(t, 6*time.Hour, s.backoff(11))
	assert.Equal(t, 6*time.Hour, s.backoff(100))
}

func TestRemoveReleasesBlobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")
	f.connect(t, "beta.example")

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example", "beta.example"}, 0)
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(ctx, items[0].ID))
	// the other item still references the staged parts
	_, err = f.blobs.Get(ctx, items[1].PayloadKey)
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(ctx, items[1].ID))
	_, err = f.blobs.Get(ctx, items[1].PayloadKey)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEnqueueStagesThumbnails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")

	pkg := testPackage(t)
	pkg.Thumbnails = [][]byte{[]byte("thumb-small"), []byte("thumb-large")}

	items, _, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].ThumbnailKeys, 2)

	for i, key := range items[0].ThumbnailKeys {
		staged, err := f.blobs.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, pkg.Thumbnails[i], staged)
	}

	loaded, err := f.service.loadPackage(ctx, items[0])
	require.NoError(t, err)
	assert.Equal(t, pkg.Thumbnails, loaded.Thumbnails)
}

func TestEnqueueReleasesBlobsWhenNothingQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	pkg := testPackage(t)
	pkg.Thumbnails = [][]byte{[]byte("thumb")}
	items, failed, err := f.service.Enqueue(ctx, pkg, []string{"stranger.example"}, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	require.Len(t, failed, 1)

	_, err = f.blobs.Get(ctx, outboundKey(pkg.FileID, transit.FilePartPayload))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.blobs.Get(ctx, outboundKey(pkg.FileID, transit.FilePartMetadata))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.blobs.Get(ctx, outboundThumbnailKey(pkg.FileID, 0))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestEnqueueKeepsBlobsReferencedByEarlierItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")

	pkg := testPackage(t)
	_, _, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example"}, 0)
	require.NoError(t, err)

	// same file again, this time every recipient fails the wrap
	items, _, err := f.service.Enqueue(ctx, pkg, []string{"stranger.example"}, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = f.blobs.Get(ctx, outboundKey(pkg.FileID, transit.FilePartPayload))
	require.NoError(t, err)
}

// faultyStore fails reads on demand while writes pass through.
type faultyStore struct {
	*payloads.MemoryStore
	getErr error
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestDrainReschedulesOnBlobReadFailure(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	conns := connections.NewService(connections.NewInMemoryRepository(), logger)
	blobs := &faultyStore{MemoryStore: payloads.NewMemoryStore()}
	repo := NewInMemoryRepository()
	sender := transit.NewSender(conns, "local.example", logger,
		transit.WithScheme("http"), transit.WithRetryPolicy(0, time.Millisecond))
	service := NewService(repo, conns, blobs, sender, Options{BackoffBase: time.Minute}, logger)

	token := &auth.ClientAccessToken{
		ID:                 uuid.New(),
		AccessTokenHalfKey: cryptox.NewRandomSecret(cryptox.KeySize),
		SharedSecret:       cryptox.NewRandomSecret(cryptox.KeySize),
	}
	_, err := conns.Connect(ctx, "alpha.example", token)
	require.NoError(t, err)

	pkg := testPackage(t)
	items, _, err := service.Enqueue(ctx, pkg, []string{"alpha.example"}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	blobs.getErr = errors.New("store unavailable")
	_, err = service.Drain(ctx)
	require.NoError(t, err)

	item, err := service.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, item.State)
	assert.Equal(t, 1, item.Attempts)
	assert.NotEmpty(t, item.LastFailure)

	// staged parts survive for the next attempt
	_, err = blobs.MemoryStore.Get(ctx, item.PayloadKey)
	require.NoError(t, err)
}

func TestDrainMarksDeadWhenBlobsMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	f.connect(t, "alpha.example")

	pkg := testPackage(t)
	items, _, err := f.service.Enqueue(ctx, pkg, []string{"alpha.example"}, 0)
	require.NoError(t, err)

	require.NoError(t, f.blobs.Delete(ctx, items[0].PayloadKey))

	_, err = f.service.Drain(ctx)
	require.NoError(t, err)

	item, err := f.service.GetItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StateDead, item.State)
}
