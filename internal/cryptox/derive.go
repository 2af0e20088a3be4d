package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
)

// MakeVerifier hashes the master key so the host can check that a caller
// holds it without ever storing the key itself.
func MakeVerifier(masterKey *SensitiveBytes) []byte {
	hash := sha256.Sum256(masterKey.Bytes())
	return hash[:]
}

// DeriveMasterKey stretches the owner passphrase into the tenant master key
// with Argon2id. The salt is generated at provisioning and stored in clear.
func DeriveMasterKey(password []byte, salt []byte) SensitiveBytes {
	key := argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
	return NewSensitiveBytes(key)
}
