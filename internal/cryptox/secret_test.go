package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitiveBytes_WipeOverwrites(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	s := NewSensitiveBytes(raw)

	s.Wipe()

	assert.True(t, s.IsEmpty())
	// the original backing array must be zeroed, not just dereferenced
	assert.Equal(t, []byte{0, 0, 0, 0}, raw)
}

func TestSensitiveBytes_CloneIsIndependent(t *testing.T) {
	s := NewRandomSecret(KeySize)
	c := s.Clone()

	s.Wipe()

	assert.False(t, c.IsEmpty())
	assert.Len(t, c.Bytes(), KeySize)
}

func TestSplitSecret_HalvesRecombine(t *testing.T) {
	secret := NewRandomSecret(KeySize)
	keep := secret.Clone()

	serverHalf, clientHalf, err := SplitSecret(&secret)
	require.NoError(t, err)

	combined, err := serverHalf.Xor(&clientHalf)
	require.NoError(t, err)
	assert.Equal(t, keep.Bytes(), combined.Bytes())
}

func TestSplitSecret_SingleHalfRevealsNothing(t *testing.T) {
	secret := NewRandomSecret(KeySize)
	keep := secret.Clone()

	serverHalf, clientHalf, err := SplitSecret(&secret)
	require.NoError(t, err)

	// neither half equals the secret on its own
	assert.False(t, bytes.Equal(serverHalf.Bytes(), keep.Bytes()))
	assert.False(t, bytes.Equal(clientHalf.Bytes(), keep.Bytes()))
}

func TestXor_LengthMismatch(t *testing.T) {
	a := NewRandomSecret(16)
	b := NewRandomSecret(32)

	_, err := a.Xor(&b)
	assert.Error(t, err)
}

func TestEquals_ConstantTimeSemantics(t *testing.T) {
	a := NewSensitiveBytes([]byte("same-bytes-here!"))
	b := NewSensitiveBytes([]byte("same-bytes-here!"))
	c := NewSensitiveBytes([]byte("other-bytes-here"))

	assert.True(t, a.Equals(&b))
	assert.False(t, a.Equals(&c))
}
