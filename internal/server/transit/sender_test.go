package transit

import (
	"context"
	"encoding/json"
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
	"github.com/hostvault/hostvault/internal/server/auth"
	"github.com/hostvault/hostvault/internal/server/connections"
)

func testPackage(t *testing.T) (*FilePackage, *cryptox.SensitiveBytes) {
	t.Helper()
	header := cryptox.NewRandomSecret(cryptox.KeySize)
	pkg := &FilePackage{
		FileID:        uuid.New(),
		TargetDriveID: uuid.New(),
		KeyHeader:     &header,
		Metadata:      []byte("encrypted-metadata"),
		Payload:       []byte("encrypted-payload"),
	}
	return pkg, &header
}

func connectRecipient(t *testing.T, conns *connections.Service, identity string) cryptox.SensitiveBytes {
	t.Helper()
	secret := cryptox.NewRandomSecret(cryptox.KeySize)
	token := &auth.ClientAccessToken{
		ID:                 uuid.New(),
		AccessTokenHalfKey: cryptox.NewRandomSecret(cryptox.KeySize),
		SharedSecret:       secret.Clone(),
	}
	_, err := conns.Connect(context.Background(), identity, token)
	require.NoError(t, err)
	return secret
}

// remoteHost plays the recipient side of the protocol for sender tests.
type remoteHost struct {
	t          *testing.T
	reason     AcceptDataStreamReason
	code       int
	received   *TransferInstructions
	thumbnails []string
	gotAuth    string
}

func (h *remoteHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.gotAuth = r.Header.Get(common.ClientAuthTokenHeaderName)

	if h.code != 0 && h.code != http.StatusOK {
		w.WriteHeader(h.code)
		return
	}

	require.NoError(h.t, r.ParseMultipartForm(1<<20))
	if raw := r.FormValue("instructions"); raw != "" {
		instructions, err := ParseInstructions([]byte(raw))
		require.NoError(h.t, err)
		h.received = instructions
	}
	h.thumbnails = r.MultipartForm.Value["thumbnail"]

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AcceptDataStreamResponse{Success: h.reason})
}

func startRemote(t *testing.T, h *remoteHost) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func newTestSender(t *testing.T) (*Sender, *connections.Service) {
	t.Helper()
	conns := connections.NewService(connections.NewInMemoryRepository(), testLogger())
	s := NewSender(conns, "local.example", testLogger())
	s.scheme = "http"
	s.retryBase = time.Millisecond
	return s, conns
}

func TestSender_Delivers(t *testing.T) {
	ctx := context.Background()
	s, conns := newTestSender(t)

	remote := &remoteHost{t: t, reason: AcceptReasonSuccess}
	identity := startRemote(t, remote)
	secret := connectRecipient(t, conns, identity)
	defer secret.Wipe()

	pkg, header := testPackage(t)
	results := s.Send(ctx, pkg, []string{identity})

	result := results[identity]
	require.True(t, result.Success)
	assert.Equal(t, StatusDeliveredToInbox, result.Status)
	assert.False(t, result.ShouldRetry)
	assert.NotEmpty(t, remote.gotAuth)

	require.NotNil(t, remote.received)
	assert.Equal(t, pkg.FileID, remote.received.FileID)
	assert.Equal(t, "local.example", remote.received.Sender)

	// the key header on the wire unwraps with the connection secret
	envelope, err := cryptox.UnmarshalEnvelope(remote.received.KeyHeaderCipher)
	require.NoError(t, err)
	unwrapped, err := cryptox.UnwrapKey(envelope, &secret)
	require.NoError(t, err)
	defer unwrapped.Wipe()
	assert.True(t, unwrapped.Equals(header))
}

func TestSender_RecipientsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s, conns := newTestSender(t)

	good := &remoteHost{t: t, reason: AcceptReasonSuccess}
	goodIdentity := startRemote(t, good)
	connectRecipient(t, conns, goodIdentity)

	quarantining := &remoteHost{t: t, reason: AcceptReasonQuarantined}
	quarantiningIdentity := startRemote(t, quarantining)
	connectRecipient(t, conns, quarantiningIdentity)

	downIdentity := "127.0.0.1:1"
	connectRecipient(t, conns, downIdentity)

	pkg, _ := testPackage(t)
	results := s.Send(ctx, pkg, []string{goodIdentity, quarantiningIdentity, downIdentity})
	require.Len(t, results, 3)

	assert.True(t, results[goodIdentity].Success)
	assert.Equal(t, StatusDeliveredToInbox, results[goodIdentity].Status)

	assert.False(t, results[quarantiningIdentity].Success)
	assert.Equal(t, StatusQuarantinedByRecipient, results[quarantiningIdentity].Status)
	assert.False(t, results[quarantiningIdentity].ShouldRetry)

	assert.False(t, results[downIdentity].Success)
	assert.Equal(t, StatusTransientFailure, results[downIdentity].Status)
	assert.True(t, results[downIdentity].ShouldRetry)
}

func TestSender_ForbiddenIsPermanent(t *testing.T) {
	ctx := context.Background()
	s, conns := newTestSender(t)

	remote := &remoteHost{t: t, code: http.StatusForbidden}
	identity := startRemote(t, remote)
	connectRecipient(t, conns, identity)

	pkg, _ := testPackage(t)
	results := s.Send(ctx, pkg, []string{identity})

	result := results[identity]
	assert.False(t, result.Success)
	assert.Equal(t, StatusRecipientForbidden, result.Status)
	assert.False(t, result.ShouldRetry)
}

func TestSender_NotConnected(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSender(t)

	pkg, _ := testPackage(t)
	results := s.Send(ctx, pkg, []string{"stranger.example"})

	result := results["stranger.example"]
	assert.False(t, result.Success)
	assert.Equal(t, StatusRecipientNotConnected, result.Status)
	assert.False(t, result.ShouldRetry)
}

func TestSender_StreamsEveryThumbnail(t *testing.T) {
	ctx := context.Background()
	s, conns := newTestSender(t)

	remote := &remoteHost{t: t, reason: AcceptReasonSuccess}
	identity := startRemote(t, remote)
	secret := connectRecipient(t, conns, identity)
	defer secret.Wipe()

	pkg, _ := testPackage(t)
	pkg.Thumbnails = [][]byte{[]byte("thumb-small"), []byte("thumb-large")}

	results := s.Send(ctx, pkg, []string{identity})
	require.True(t, results[identity].Success)

	require.Len(t, remote.thumbnails, 2)
	assert.Equal(t, "thumb-small", remote.thumbnails[0])
	assert.Equal(t, "thumb-large", remote.thumbnails[1])
}
