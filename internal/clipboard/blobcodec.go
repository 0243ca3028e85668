package clipboard

import (
	"encoding/json"
	"fmt"

	"go.klb.dev/unisync/internal/security"
)

// encodeBlob/decodeBlob give EncryptedBlob a self-describing persisted form
// for Representation.InlineData.
func encodeBlob(b security.EncryptedBlob) ([]byte, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted blob: %w", err)
	}
	return out, nil
}

func decodeBlob(b []byte) (security.EncryptedBlob, error) {
	var blob security.EncryptedBlob
	if err := json.Unmarshal(b, &blob); err != nil {
		return security.EncryptedBlob{}, fmt.Errorf("unmarshal encrypted blob: %w", err)
	}
	return blob, nil
}
