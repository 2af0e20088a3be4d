// Package common defines shared constants and sentinel errors used across
// the host. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Client errors: malformed or unacceptable input. Never retried.
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidData  = errors.New("invalid data")
	ErrDuplicateID  = errors.New("duplicate id")

	// Authorization errors: fatal for the current request, checked before
	// any key material is unwrapped.
	ErrGrantRevoked      = errors.New("grant revoked")
	ErrAccessRevoked     = errors.New("access revoked")
	ErrMasterKeyRequired = errors.New("master key required")
	ErrMasterKeyMismatch = errors.New("master key mismatch")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDriveNotGranted   = errors.New("drive not granted")

	// ErrKeyUnwrapFailed is returned by the wrapping primitives when the
	// wrapping key is wrong. It is reported to remote callers uniformly as
	// ErrInvalidToken so the failing layer is never revealed.
	ErrKeyUnwrapFailed = errors.New("key unwrap failed")

	// Delivery errors.
	ErrDeliveryTransient = errors.New("transient delivery failure")
	ErrDeliveryPermanent = errors.New("permanent delivery failure")

	// Quarantine errors. The detailed reason stays local; remote senders
	// only see a non-success status.
	ErrTransferRejected = errors.New("transfer rejected")
	ErrTransferAborted  = errors.New("transfer aborted")
	ErrTransferUnknown  = errors.New("unknown transfer")
)
