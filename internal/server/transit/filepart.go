// Package transit implements the host-to-host protocol for moving
// encrypted file data: the outbound multipart sender and the inbound
// receiver with its quarantine state machine.
package transit

import "strings"

// FilePart identifies one section of a multipart transfer.
type FilePart int

const (
	FilePartUnknown FilePart = iota
	FilePartInstructions
	FilePartMetadata
	FilePartPayload
	FilePartThumbnail
)

// filePartNames maps the wire name (Content-Disposition name, lower-cased)
// to the part. Unknown names are always rejected; there is no dynamic
// enum parsing.
var filePartNames = map[string]FilePart{
	"instructions": FilePartInstructions,
	"metadata":     FilePartMetadata,
	"payload":      FilePartPayload,
	"thumbnail":    FilePartThumbnail,
}

// ParseFilePart resolves a multipart section name case-insensitively.
// ok is false for anything not in the table.
func ParseFilePart(name string) (FilePart, bool) {
	part, ok := filePartNames[strings.ToLower(name)]
	return part, ok
}

func (p FilePart) String() string {
	switch p {
	case FilePartInstructions:
		return "instructions"
	case FilePartMetadata:
		return "metadata"
	case FilePartPayload:
		return "payload"
	case FilePartThumbnail:
		return "thumbnail"
	default:
		return "unknown"
	}
}

// IsRequired reports whether a transfer must contain this part exactly once.
func (p FilePart) IsRequired() bool {
	return p == FilePartInstructions || p == FilePartMetadata || p == FilePartPayload
}

var requiredParts = []FilePart{FilePartInstructions, FilePartMetadata, FilePartPayload}
