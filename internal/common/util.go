package common

import "crypto/rand"

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// crypto/rand.Read never returns a partial read without an error, and an
// error here means the platform RNG is broken, so the failure is fatal.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
