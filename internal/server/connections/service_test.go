package connections

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
	"github.com/hostvault/hostvault/internal/logging"
	"github.com/hostvault/hostvault/internal/server/auth"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testToken() *auth.ClientAccessToken {
	return &auth.ClientAccessToken{
		ID:                 uuid.New(),
		AccessTokenHalfKey: cryptox.NewRandomSecret(cryptox.KeySize),
		SharedSecret:       cryptox.NewRandomSecret(cryptox.KeySize),
	}
}

func TestConnect_AndCreateClientAuthToken(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), testLogger())
	ctx := context.Background()
	token := testToken()

	reg, err := svc.Connect(ctx, "alice.example.com", token)
	require.NoError(t, err)
	assert.True(t, reg.IsConnected())

	got, err := svc.GetConnectionRegistration(ctx, "alice.example.com")
	require.NoError(t, err)

	authToken, err := got.CreateClientAuthToken()
	require.NoError(t, err)
	defer authToken.Wipe()
	assert.Equal(t, token.ID, authToken.ID)
	assert.Equal(t, token.AccessTokenHalfKey.Bytes(), authToken.AccessTokenHalfKey.Bytes())

	secret := got.ICRSharedSecret()
	defer secret.Wipe()
	assert.Equal(t, token.SharedSecret.Bytes(), secret.Bytes())
}

func TestDisconnect_BlocksAuthTokenCreation(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), testLogger())
	ctx := context.Background()

	_, err := svc.Connect(ctx, "alice.example.com", testToken())
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(ctx, "alice.example.com"))

	reg, err := svc.GetConnectionRegistration(ctx, "alice.example.com")
	require.NoError(t, err)
	assert.False(t, reg.IsConnected())

	_, err = reg.CreateClientAuthToken()
	assert.Error(t, err)
}

func TestGetConnectionRegistration_Unknown(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), testLogger())

	_, err := svc.GetConnectionRegistration(context.Background(), "nobody.example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
