package cryptox

import (
	"testing"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKey_RoundTrip(t *testing.T) {
	payload := NewRandomSecret(KeySize)
	wrapping := NewRandomSecret(KeySize)

	env, err := WrapKey(&payload, &wrapping)
	require.NoError(t, err)
	assert.NotContains(t, string(env.Ciphertext), string(payload.Bytes()))

	got, err := UnwrapKey(env, &wrapping)
	require.NoError(t, err)
	assert.Equal(t, payload.Bytes(), got.Bytes())
}

func TestUnwrapKey_WrongKeyFails(t *testing.T) {
	payload := NewRandomSecret(KeySize)
	wrapping := NewRandomSecret(KeySize)
	wrong := NewRandomSecret(KeySize)

	env, err := WrapKey(&payload, &wrapping)
	require.NoError(t, err)

	got, err := UnwrapKey(env, &wrong)
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed)
	assert.True(t, got.IsEmpty())
}

func TestUnwrapKey_TamperedCiphertextFails(t *testing.T) {
	payload := NewRandomSecret(KeySize)
	wrapping := NewRandomSecret(KeySize)

	env, err := WrapKey(&payload, &wrapping)
	require.NoError(t, err)
	env.Ciphertext[0] ^= 0xff

	_, err = UnwrapKey(env, &wrapping)
	assert.ErrorIs(t, err, common.ErrKeyUnwrapFailed)
}

func TestEnvelope_MarshalRoundTrip(t *testing.T) {
	payload := NewRandomSecret(KeySize)
	wrapping := NewRandomSecret(KeySize)

	env, err := WrapKey(&payload, &wrapping)
	require.NoError(t, err)

	restored, err := UnmarshalEnvelope(env.Marshal())
	require.NoError(t, err)

	got, err := UnwrapKey(restored, &wrapping)
	require.NoError(t, err)
	assert.Equal(t, payload.Bytes(), got.Bytes())
}

func TestUnmarshalEnvelope_TooShort(t *testing.T) {
	_, err := UnmarshalEnvelope(make([]byte, nonceSize))
	assert.ErrorIs(t, err, common.ErrInvalidData)
}
