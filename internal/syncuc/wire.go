package syncuc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"go.klb.dev/unisync/internal/security"
)

// MaxMessageBytes bounds one business-protocol frame.
const MaxMessageBytes = 1 << 20

// ClipboardMessage is the wire envelope for a synced clipboard update.
type ClipboardMessage struct {
	MessageID        string                 `json:"message_id"`
	OriginDeviceID   string                 `json:"origin_device_id"`
	OriginDeviceName string                 `json:"origin_device_name"`
	ContentHash      string                 `json:"content_hash"`
	Timestamp        int64                  `json:"timestamp"`
	Encrypted        security.EncryptedBlob `json:"encrypted"`
}

// ClipboardTextPayloadV1 is the plaintext the envelope's ciphertext
// decrypts to. Only text/plain-family content is synced across the wire.
type ClipboardTextPayloadV1 struct {
	Text     string `json:"text"`
	MIME     string `json:"mime"`
	TSMillis int64  `json:"ts_ms"`
}

// WriteMessage length-prefixes and writes msg.
func WriteMessage(w io.Writer, msg ClipboardMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("syncuc: marshal message: %w", err)
	}
	if len(body) > MaxMessageBytes {
		return fmt.Errorf("syncuc: message too large (%d bytes)", len(body))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadMessage reads one length-prefixed ClipboardMessage.
func ReadMessage(r *bufio.Reader) (ClipboardMessage, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return ClipboardMessage{}, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxMessageBytes {
		return ClipboardMessage{}, fmt.Errorf("syncuc: message too large (%d bytes)", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return ClipboardMessage{}, err
	}
	var msg ClipboardMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return ClipboardMessage{}, fmt.Errorf("syncuc: decode message: %w", err)
	}
	return msg, nil
}
