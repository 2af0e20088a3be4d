// Package inbox stores transfers that arrived from remote hosts and passed
// the receiver's filters. An entry points at the staged blobs and carries
// the file's key header still wrapped under the sending connection's
// shared secret; the header is only ever re-encrypted on demand for an
// authorized caller.
package inbox

import (
	"time"

	"github.com/google/uuid"
)

type InboxEntry struct {
	ID            uuid.UUID
	FileID        uuid.UUID
	TargetDriveID uuid.UUID
	Sender        string
	Received      time.Time

	// KeyHeaderCipher is a marshalled cryptox.Envelope under the sender
	// connection's shared secret.
	KeyHeaderCipher []byte

	// Blob store keys of the staged parts. A file carries zero or more
	// thumbnails.
	PayloadKey    string
	MetadataKey   string
	ThumbnailKeys []string
}
