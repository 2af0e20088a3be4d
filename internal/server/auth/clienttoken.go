package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/cryptox"
)

// ClientAccessToken is the bearer credential handed to a caller exactly once
// when an access registration is created. The server never stores it in this
// form; only the XOR counterpart of the half key is persisted.
type ClientAccessToken struct {
	ID                 uuid.UUID
	AccessTokenHalfKey cryptox.SensitiveBytes
	SharedSecret       cryptox.SensitiveBytes
}

// ToAuthToken returns the subset of the access token sent on every request.
func (t *ClientAccessToken) ToAuthToken() ClientAuthenticationToken {
	return ClientAuthenticationToken{
		ID:                 t.ID,
		AccessTokenHalfKey: t.AccessTokenHalfKey.Clone(),
	}
}

// Wipe destroys the secret halves of the token.
func (t *ClientAccessToken) Wipe() {
	t.AccessTokenHalfKey.Wipe()
	t.SharedSecret.Wipe()
}

// ClientAuthenticationToken identifies an access registration plus the
// client's half of the split access key. Wire format: "{id}|{base64(half)}".
type ClientAuthenticationToken struct {
	ID                 uuid.UUID
	AccessTokenHalfKey cryptox.SensitiveBytes
}

func (t *ClientAuthenticationToken) String() string {
	return fmt.Sprintf("%s|%s", t.ID, base64.StdEncoding.EncodeToString(t.AccessTokenHalfKey.Bytes()))
}

func (t *ClientAuthenticationToken) Wipe() {
	t.AccessTokenHalfKey.Wipe()
}

// TryParseAuthToken parses the wire format. Malformed input of any kind
// returns ok=false; it never panics and never returns a partial token.
func TryParseAuthToken(value string) (ClientAuthenticationToken, bool) {
	parts := strings.Split(value, "|")
	if len(parts) != 2 {
		return ClientAuthenticationToken{}, false
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return ClientAuthenticationToken{}, false
	}

	half, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(half) == 0 {
		return ClientAuthenticationToken{}, false
	}

	return ClientAuthenticationToken{
		ID:                 id,
		AccessTokenHalfKey: cryptox.NewSensitiveBytes(half),
	}, true
}
