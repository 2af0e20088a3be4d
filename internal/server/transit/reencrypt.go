package transit

import (
	"github.com/hostvault/hostvault/internal/cryptox"
)

// TransformKeyHeader re-encrypts a file key header from the host-to-host
// secret onto a caller's shared secret. The plaintext header exists only
// for the duration of the call and is wiped before returning, success or
// not. The host never interprets the header; it is opaque client material.
func TransformKeyHeader(headerCipher []byte, icrSecret, callerSecret *cryptox.SensitiveBytes) ([]byte, error) {
	envelope, err := cryptox.UnmarshalEnvelope(headerCipher)
	if err != nil {
		return nil, err
	}

	header, err := cryptox.UnwrapKey(envelope, icrSecret)
	if err != nil {
		return nil, err
	}
	defer header.Wipe()

	rewrapped, err := cryptox.WrapKey(&header, callerSecret)
	if err != nil {
		return nil, err
	}

	return rewrapped.Marshal(), nil
}
