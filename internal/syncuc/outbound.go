package syncuc

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.klb.dev/unisync/internal/clipboard"
	"go.klb.dev/unisync/internal/security"
	"go.klb.dev/unisync/internal/ucid"
)

// PeerWriter is the outbound side of an open business stream.
type PeerWriter interface {
	io.Writer
}

// Outbound implements the text/plain clipboard sync use case: encode,
// encrypt, frame, send.
type Outbound struct {
	DeviceID   string
	DeviceName string
	Session    *security.Session
}

// Run syncs rep to peer over w if rep is a text/plain representation.
// Non-text representations are silently skipped: network sync is scoped
// to text/plain only.
func (o *Outbound) Run(w PeerWriter, rep clipboard.Representation) error {
	if rep.MIME != "text/plain" {
		return nil
	}
	if len(rep.InlineData) == 0 {
		return nil
	}

	now := time.Now()
	payload := ClipboardTextPayloadV1{Text: string(rep.InlineData), MIME: rep.MIME, TSMillis: now.UnixMilli()}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("syncuc: marshal payload: %w", err)
	}

	messageID := ucid.New()

	key, err := o.Session.GetMasterKey()
	if err != nil {
		return fmt.Errorf("syncuc: outbound: %w", err)
	}

	blob, err := security.Seal(key, plaintext, security.AADNetClipboard(messageID))
	if err != nil {
		return fmt.Errorf("syncuc: encrypt: %w", err)
	}

	msg := ClipboardMessage{
		MessageID:        messageID,
		OriginDeviceID:   o.DeviceID,
		OriginDeviceName: o.DeviceName,
		ContentHash:      rep.ContentHash,
		Timestamp:        now.UnixMilli(),
		Encrypted:        blob,
	}
	if err := WriteMessage(w, msg); err != nil {
		return fmt.Errorf("syncuc: send: %w", err)
	}
	return nil
}
