package syncuc

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.klb.dev/unisync/internal/security"
)

// ClipboardWriter is the OS clipboard write port Inbound uses once a
// remote update has cleared echo-cancellation and decryption.
type ClipboardWriter interface {
	Write(text string) error
}

const (
	dedupWindow      = 2 * time.Second
	nextOriginTTL    = 100 * time.Millisecond
	dedupHistorySize = 32
)

// Inbound implements the receive side: echo-cancel, decrypt, decode,
// dedup, then write to the local clipboard behind an origin hint so the
// resulting local capture is recorded but not broadcast back out.
type Inbound struct {
	DeviceID string
	Session  *security.Session
	Tracker  *OriginTracker
	Writer   ClipboardWriter

	mu      sync.Mutex
	seen    []seenEntry
	writeMu sync.Mutex
}

type seenEntry struct {
	hash string
	at   time.Time
}

// Handle processes one inbound ClipboardMessage already read off the wire.
func (in *Inbound) Handle(msg ClipboardMessage) error {
	if msg.OriginDeviceID == in.DeviceID {
		return nil // echo of our own relayed update
	}

	in.writeMu.Lock()
	defer in.writeMu.Unlock()

	key, err := in.Session.GetMasterKey()
	if err != nil {
		return fmt.Errorf("syncuc: inbound locked: %w", err)
	}

	plaintext, err := security.Open(key, msg.Encrypted, security.AADNetClipboard(msg.MessageID))
	if err != nil {
		return fmt.Errorf("syncuc: inbound decrypt: %w", err)
	}

	var payload ClipboardTextPayloadV1
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return fmt.Errorf("syncuc: inbound decode: %w", err)
	}

	if !strings.HasPrefix(payload.MIME, "text/plain") {
		return fmt.Errorf("syncuc: dropped inbound message with mime %q", payload.MIME)
	}

	if in.recentlySeen(msg.ContentHash) {
		return nil
	}

	in.Tracker.SetNextOrigin(msg.OriginDeviceID, nextOriginTTL)
	if err := in.Writer.Write(payload.Text); err != nil {
		return fmt.Errorf("syncuc: write local clipboard: %w", err)
	}
	return nil
}

func (in *Inbound) recentlySeen(hash string) bool {
	now := time.Now()
	in.mu.Lock()
	defer in.mu.Unlock()

	kept := in.seen[:0]
	dup := false
	for _, e := range in.seen {
		if now.Sub(e.at) > dedupWindow {
			continue
		}
		if e.hash == hash {
			dup = true
		}
		kept = append(kept, e)
	}
	in.seen = kept
	if !dup {
		in.seen = append(in.seen, seenEntry{hash: hash, at: now})
		if len(in.seen) > dedupHistorySize {
			in.seen = in.seen[len(in.seen)-dedupHistorySize:]
		}
	}
	return dup
}
