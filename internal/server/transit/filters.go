package transit

import (
	"bytes"
	"fmt"
)

// FilterVerdict is the outcome of inspecting a single inbound part.
type FilterVerdict int

const (
	VerdictAccept FilterVerdict = iota
	// VerdictAbort kills the whole transfer immediately. Used for parts
	// that are actively dangerous rather than merely malformed.
	VerdictAbort
)

// PartFilter inspects one part of an inbound stream before it is staged.
type PartFilter interface {
	Name() string
	Inspect(part FilePart, data []byte) (FilterVerdict, string)
}

// MaxSizeFilter aborts any part larger than the configured limit.
type MaxSizeFilter struct {
	Limit int64
}

func (f *MaxSizeFilter) Name() string { return "max_size" }

func (f *MaxSizeFilter) Inspect(part FilePart, data []byte) (FilterVerdict, string) {
	if f.Limit > 0 && int64(len(data)) > f.Limit {
		return VerdictAbort, fmt.Sprintf("part %s exceeds %d bytes", part, f.Limit)
	}
	return VerdictAccept, ""
}

// executable headers we refuse to accept as payloads
var executableMagic = [][]byte{
	{0x4d, 0x5a},             // PE
	{0x7f, 0x45, 0x4c, 0x46}, // ELF
	{0xfe, 0xed, 0xfa, 0xce}, // Mach-O 32
	{0xfe, 0xed, 0xfa, 0xcf}, // Mach-O 64
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64 LE
}

// ExecutableFilter aborts transfers whose payload starts with a known
// executable header. Payloads are ciphertext in normal operation, so a
// match means the sender shipped plaintext or something is off either way.
type ExecutableFilter struct{}

func (f *ExecutableFilter) Name() string { return "executable_magic" }

func (f *ExecutableFilter) Inspect(part FilePart, data []byte) (FilterVerdict, string) {
	if part != FilePartPayload && part != FilePartThumbnail {
		return VerdictAccept, ""
	}
	for _, magic := range executableMagic {
		if bytes.HasPrefix(data, magic) {
			return VerdictAbort, "payload carries executable header"
		}
	}
	return VerdictAccept, ""
}

// DefaultFilters returns the filter chain every receiver runs.
func DefaultFilters(maxPartSize int64) []PartFilter {
	return []PartFilter{
		&MaxSizeFilter{Limit: maxPartSize},
		&ExecutableFilter{},
	}
}
