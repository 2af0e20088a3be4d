package grants

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
	"github.com/hostvault/hostvault/internal/server/drives"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setup(t *testing.T) (*Service, *drives.Service, cryptox.SensitiveBytes) {
	t.Helper()
	driveService := drives.NewService(drives.NewInMemoryRepository())
	svc := NewService(NewInMemoryRepository(), driveService, testLogger())
	masterKey := cryptox.NewRandomSecret(cryptox.KeySize)
	return svc, driveService, masterKey
}

func TestCreateGrant_WrapsStorageKeysUnderGrantKey(t *testing.T) {
	svc, driveService, masterKey := setup(t)
	ctx := context.Background()

	drive, err := driveService.CreateDrive(ctx, &masterKey, "documents")
	require.NoError(t, err)

	grant, err := svc.CreateGrant(ctx, &masterKey, GranteeIdentity, "alice.example.com",
		[]uuid.UUID{drive.ID}, PermissionRead)
	require.NoError(t, err)
	require.Len(t, grant.DriveGrants, 1)
	assert.False(t, grant.IsRevoked)

	// the storage key must unwrap through the grant key, not the master key
	grantKey, err := svc.UnwrapGrantKey(grant, &masterKey)
	require.NoError(t, err)
	defer grantKey.Wipe()

	env, err := cryptox.UnmarshalEnvelope(grant.DriveGrants[0].GrantKeyEncryptedStorageKey)
	require.NoError(t, err)

	storageKey, err := cryptox.UnwrapKey(env, &grantKey)
	require.NoError(t, err)
	defer storageKey.Wipe()

	_, err = cryptox.UnwrapKey(env, &masterKey)
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed,
		"storage key must not be wrapped directly under the master key")

	// and it must match the drive's actual storage key
	stored, err := driveService.GetDrive(ctx, drive.ID)
	require.NoError(t, err)
	direct, err := driveService.UnwrapStorageKey(stored, &masterKey)
	require.NoError(t, err)
	defer direct.Wipe()
	assert.Equal(t, direct.Bytes(), storageKey.Bytes())
}

func TestCreateGrant_RequiresMasterKey(t *testing.T) {
	svc, _, _ := setup(t)
	empty := cryptox.SensitiveBytes{}

	_, err := svc.CreateGrant(context.Background(), &empty, GranteeIdentity, "x", nil, PermissionRead)
	assert.ErrorIs(t, err, common.ErrMasterKeyRequired)
}

func TestCreateGrant_WrongMasterKey(t *testing.T) {
	svc, driveService, masterKey := setup(t)
	ctx := context.Background()

	drive, err := driveService.CreateDrive(ctx, &masterKey, "documents")
	require.NoError(t, err)

	wrong := cryptox.NewRandomSecret(cryptox.KeySize)
	_, err = svc.CreateGrant(ctx, &wrong, GranteeIdentity, "x", []uuid.UUID{drive.ID}, PermissionRead)
	assert.ErrorIs(t, err, common.ErrMasterKeyMismatch)
}

func TestCreateGrant_UnknownDrive(t *testing.T) {
	svc, _, masterKey := setup(t)

	_, err := svc.CreateGrant(context.Background(), &masterKey, GranteeIdentity, "x",
		[]uuid.UUID{uuid.New()}, PermissionRead)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRevoke_KeepsRecord(t *testing.T) {
	svc, _, masterKey := setup(t)
	ctx := context.Background()

	grant, err := svc.CreateGrant(ctx, &masterKey, GranteeApp, "photo-app", nil, PermissionAll)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, grant.ID))

	got, err := svc.GetGrant(ctx, grant.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRevoked)
	assert.True(t, got.Modified.After(got.Created) || got.Modified.Equal(got.Created))
}

func TestPermission_Has(t *testing.T) {
	assert.True(t, PermissionAll.Has(PermissionRead))
	assert.True(t, (PermissionRead | PermissionWrite).Has(PermissionWrite))
	assert.False(t, PermissionRead.Has(PermissionWrite))
	assert.True(t, PermissionRead.Has(PermissionNone))
}
