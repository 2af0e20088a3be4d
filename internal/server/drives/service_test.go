package drives

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
)

func TestCreateDrive_StorageKeyRoundTrip(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	masterKey := cryptox.NewRandomSecret(cryptox.KeySize)

	drive, err := svc.CreateDrive(context.Background(), &masterKey, "photos")
	require.NoError(t, err)
	assert.Equal(t, "photos", drive.Name)
	assert.NotEmpty(t, drive.MasterKeyEncryptedStorageKey)

	key, err := svc.UnwrapStorageKey(drive, &masterKey)
	require.NoError(t, err)
	defer key.Wipe()
	assert.Len(t, key.Bytes(), cryptox.KeySize)
}

func TestCreateDrive_RequiresMasterKey(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	empty := cryptox.SensitiveBytes{}

	_, err := svc.CreateDrive(context.Background(), &empty, "photos")
	assert.ErrorIs(t, err, common.ErrMasterKeyRequired)
}

func TestUnwrapStorageKey_WrongMasterKey(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	masterKey := cryptox.NewRandomSecret(cryptox.KeySize)
	wrong := cryptox.NewRandomSecret(cryptox.KeySize)

	drive, err := svc.CreateDrive(context.Background(), &masterKey, "photos")
	require.NoError(t, err)

	_, err = svc.UnwrapStorageKey(drive, &wrong)
	assert.ErrorIs(t, err, common.ErrMasterKeyMismatch)
}
