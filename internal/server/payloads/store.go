// Package payloads stages encrypted file part blobs: outbound packages
// waiting in the transit outbox and inbound parts accumulating in
// quarantine. Everything stored here is ciphertext; the store never sees a
// key.
package payloads

import "context"

// Store is a flat blob store. Keys are slash-separated paths such as
// "transit/inbound/{transferId}/payload".
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object under the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
