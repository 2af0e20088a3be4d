package transit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/cryptox"
)

func TestTransformKeyHeader(t *testing.T) {
	header := cryptox.NewRandomSecret(cryptox.KeySize)
	defer header.Wipe()
	icrSecret := cryptox.NewRandomSecret(cryptox.KeySize)
	defer icrSecret.Wipe()
	callerSecret := cryptox.NewRandomSecret(cryptox.KeySize)
	defer callerSecret.Wipe()

	envelope, err := cryptox.WrapKey(&header, &icrSecret)
	require.NoError(t, err)

	transformed, err := TransformKeyHeader(envelope.Marshal(), &icrSecret, &callerSecret)
	require.NoError(t, err)

	// the caller's secret now opens the header
	outEnvelope, err := cryptox.UnmarshalEnvelope(transformed)
	require.NoError(t, err)
	got, err := cryptox.UnwrapKey(outEnvelope, &callerSecret)
	require.NoError(t, err)
	defer got.Wipe()
	assert.True(t, got.Equals(&header))

	// the connection secret no longer does
	_, err = cryptox.UnwrapKey(outEnvelope, &icrSecret)
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed)
}

func TestTransformKeyHeader_WrongSecret(t *testing.T) {
	header := cryptox.NewRandomSecret(cryptox.KeySize)
	icrSecret := cryptox.NewRandomSecret(cryptox.KeySize)
	wrong := cryptox.NewRandomSecret(cryptox.KeySize)
	caller := cryptox.NewRandomSecret(cryptox.KeySize)

	envelope, err := cryptox.WrapKey(&header, &icrSecret)
	require.NoError(t, err)

	_, err = TransformKeyHeader(envelope.Marshal(), &wrong, &caller)
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed)
}

func TestTransformKeyHeader_Garbage(t *testing.T) {
	icrSecret := cryptox.NewRandomSecret(cryptox.KeySize)
	caller := cryptox.NewRandomSecret(cryptox.KeySize)

	_, err := TransformKeyHeader([]byte("short"), &icrSecret, &caller)
	assert.ErrorIs(t, err, common.ErrInvalidData)
}
