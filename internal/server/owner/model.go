// Package owner holds the single tenant owner's authentication material:
// the Argon2 salt the master key is derived with and a SHA-256 verifier of
// the derived key. The master key itself is never persisted.
package owner

import "time"

type Profile struct {
	Created           time.Time
	MasterKeySalt     []byte
	MasterKeyVerifier []byte
}
