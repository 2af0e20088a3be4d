// Package registrations mints and stores the redeemable credentials bound
// to an exchange grant. The access key is split with the XOR half-key
// scheme: the server keeps one half, the client's bearer token carries the
// other, and only the XOR of both reconstructs the key.
package registrations

import (
	"time"

	"github.com/google/uuid"
)

type AccessRegistration struct {
	ID       uuid.UUID
	GrantID  uuid.UUID
	Created  time.Time
	LastUsed time.Time

	// ClientHalfKeyEncryptedAccessKey is the server-held XOR half of the
	// access key. Combined with the client half it yields the access key;
	// alone it is indistinguishable from random.
	ClientHalfKeyEncryptedAccessKey []byte

	// Marshalled cryptox.Envelopes under the access key.
	AccessKeyEncryptedSharedSecret []byte
	AccessKeyEncryptedGrantKey     []byte

	IsRevoked bool
}
