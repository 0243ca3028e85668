package blobworker

import (
	"encoding/json"
	"fmt"

	"go.klb.dev/unisync/internal/security"
)

func encodeBlobForStorage(b security.EncryptedBlob) ([]byte, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted blob: %w", err)
	}
	return out, nil
}
