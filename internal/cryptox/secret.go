// Package cryptox implements the key-wrapping primitives the capability
// hierarchy is built on: AES-GCM envelope encryption of keys, the two-party
// XOR half-key split, and wipeable secret buffers.
package cryptox

import (
	"crypto/subtle"

	"github.com/hostvault/hostvault/internal/common"
)

// SensitiveBytes owns a mutable secret buffer. It must not be copied by
// value; pass pointers. Call Wipe the moment the secret is no longer
// needed.
type SensitiveBytes struct {
	b []byte
}

// NewSensitiveBytes takes ownership of b. The caller must not use b
// afterwards.
func NewSensitiveBytes(b []byte) SensitiveBytes {
	return SensitiveBytes{b: b}
}

// NewRandomSecret returns a fresh random secret of the given size.
func NewRandomSecret(size int) SensitiveBytes {
	return SensitiveBytes{b: common.GenerateRandByteArray(size)}
}

// Bytes exposes the underlying buffer. The returned slice aliases the
// secret; it becomes invalid after Wipe.
func (s *SensitiveBytes) Bytes() []byte {
	return s.b
}

// Clone returns an independent copy the caller is responsible for wiping.
func (s *SensitiveBytes) Clone() SensitiveBytes {
	c := make([]byte, len(s.b))
	copy(c, s.b)
	return SensitiveBytes{b: c}
}

// Equals compares in constant time.
func (s *SensitiveBytes) Equals(other *SensitiveBytes) bool {
	if len(s.b) != len(other.b) {
		return false
	}
	return subtle.ConstantTimeCompare(s.b, other.b) == 1
}

func (s *SensitiveBytes) IsEmpty() bool {
	return len(s.b) == 0
}

// Wipe overwrites the buffer with zeros and drops the reference.
func (s *SensitiveBytes) Wipe() {
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}

// Xor returns s XOR other. Inputs must be the same length.
func (s *SensitiveBytes) Xor(other *SensitiveBytes) (SensitiveBytes, error) {
	if len(s.b) != len(other.b) {
		return SensitiveBytes{}, common.ErrInvalidData
	}
	out := make([]byte, len(s.b))
	for i := range s.b {
		out[i] = s.b[i] ^ other.b[i]
	}
	return SensitiveBytes{b: out}, nil
}

// SplitSecret splits secret into a server half and a client half such that
// serverHalf XOR clientHalf == secret. Either half alone is
// indistinguishable from random and recovers nothing.
func SplitSecret(secret *SensitiveBytes) (serverHalf, clientHalf SensitiveBytes, err error) {
	clientHalf = NewRandomSecret(len(secret.Bytes()))
	serverHalf, err = secret.Xor(&clientHalf)
	if err != nil {
		clientHalf.Wipe()
		return SensitiveBytes{}, SensitiveBytes{}, err
	}
	return serverHalf, clientHalf, nil
}
