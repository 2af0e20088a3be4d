package cryptox

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/hostvault/hostvault/internal/common"
)

// KeySize is the size of every symmetric key in the hierarchy (AES-256).
const KeySize = 32

const nonceSize = 12

// Envelope is a payload key encrypted under a wrapping key. It is safe to
// persist and to send over the wire; without the wrapping key it reveals
// nothing about the payload.
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
}

// WrapKey encrypts payloadKey under wrappingKey with AES-GCM using a fresh
// random nonce.
func WrapKey(payloadKey, wrappingKey *SensitiveBytes) (Envelope, error) {
	aesgcm, err := newGCM(wrappingKey)
	if err != nil {
		return Envelope{}, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aesgcm.Seal(nil, nonce, payloadKey.Bytes(), nil)

	return Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// UnwrapKey decrypts the envelope with wrappingKey. A wrong wrapping key
// fails the GCM tag check and returns ErrKeyUnwrapFailed; partial or garbage
// output is never produced. The caller owns the returned secret and must
// wipe it.
func UnwrapKey(envelope Envelope, wrappingKey *SensitiveBytes) (SensitiveBytes, error) {
	aesgcm, err := newGCM(wrappingKey)
	if err != nil {
		return SensitiveBytes{}, err
	}

	plaintext, err := aesgcm.Open(nil, envelope.Nonce, envelope.Ciphertext, nil)
	if err != nil {
		return SensitiveBytes{}, common.ErrKeyUnwrapFailed
	}

	return NewSensitiveBytes(plaintext), nil
}

func newGCM(key *SensitiveBytes) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, common.ErrKeyUnwrapFailed
	}
	return cipher.NewGCM(block)
}

// Marshal flattens the envelope to nonce||ciphertext for storage.
func (e Envelope) Marshal() []byte {
	out := make([]byte, 0, len(e.Nonce)+len(e.Ciphertext))
	out = append(out, e.Nonce...)
	out = append(out, e.Ciphertext...)
	return out
}

// UnmarshalEnvelope is the inverse of Marshal.
func UnmarshalEnvelope(b []byte) (Envelope, error) {
	if len(b) <= nonceSize {
		return Envelope{}, common.ErrInvalidData
	}
	nonce := make([]byte, nonceSize)
	copy(nonce, b[:nonceSize])
	ciphertext := make([]byte, len(b)-nonceSize)
	copy(ciphertext, b[nonceSize:])
	return Envelope{Nonce: nonce, Ciphertext: ciphertext}, nil
}
