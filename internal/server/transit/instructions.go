package transit

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var errMissingInstructionFields = errors.New("transfer instructions missing required fields")

// TransferInstructions travels as the "instructions" part of a transfer
// stream. KeyHeaderCipher is the file key header wrapped under the shared
// secret of the sender's connection registration; the recipient stores it
// as-is and re-encrypts on demand when a client asks for it.
type TransferInstructions struct {
	FileID          uuid.UUID `json:"file_id"`
	TargetDriveID   uuid.UUID `json:"target_drive_id"`
	Sender          string    `json:"sender"`
	KeyHeaderCipher []byte    `json:"key_header_cipher"`
}

func (i *TransferInstructions) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseInstructions decodes the instructions part. Unknown fields are
// tolerated so hosts running a newer revision can still talk to us.
func ParseInstructions(data []byte) (*TransferInstructions, error) {
	var i TransferInstructions
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, err
	}
	if i.FileID == uuid.Nil || i.TargetDriveID == uuid.Nil || i.Sender == "" {
		return nil, errMissingInstructionFields
	}
	return &i, nil
}
