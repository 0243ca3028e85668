package clipboard

import (
	"fmt"
	"time"

	"go.klb.dev/unisync/internal/security"
	"go.klb.dev/unisync/internal/ucid"
)

const (
	dedupWindow    = 2 * time.Second
	inlineMaxBytes = 4 * 1024
)

// Cache is the RepresentationCache port: an in-memory LRU bounded by entry
// count and total bytes, used to hand bytes to the blob worker without a
// spool round-trip when possible.
type Cache interface {
	Put(repID string, bytes []byte)
	Get(repID string) ([]byte, bool)
	Remove(repID string)
}

// Spool is the SpoolManager port: best-effort disk overflow for
// representation bytes awaiting blob materialization.
type Spool interface {
	Write(repID string, bytes []byte) error
	Read(repID string) ([]byte, bool, error)
	Delete(repID string)
}

// BlobEnqueuer hands a staged representation id to the blob worker. It
// blocks rather than drop when the worker's channel is full (back-pressure).
type BlobEnqueuer interface {
	Enqueue(eventID, repID string) error
}

// Capture implements the clipboard event pipeline's Capture contract.
type Capture struct {
	DeviceID string
	Events   EventRepository
	Session  *security.Session
	Cache    Cache
	Spool    Spool
	Blob     BlobEnqueuer
}

// CaptureResult is what a successful Capture hands back to callers (the
// outbound sync use case and the UI projection).
type CaptureResult struct {
	EventID string
	EntryID string
	Reps    []Representation
}

// Run executes the Capture contract end to end. A nil result with a nil
// error means the snapshot was a no-op (empty or a duplicate).
func (c *Capture) Run(snap ClipboardSnapshot) (*CaptureResult, error) {
	if len(snap.Reps) == 0 {
		return nil, nil
	}

	snapHash := SnapshotHash(snap.Reps)
	since := time.Now().Add(-dedupWindow)
	if _, found, err := c.Events.FindEventBySnapshotHashSince(snapHash, since); err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	} else if found {
		return nil, nil
	}

	eventID := ucid.New()
	entryID := ucid.New()
	capturedAt := snap.TSMillis
	if capturedAt == 0 {
		capturedAt = time.Now().UnixMilli()
	}

	reps := make([]Representation, 0, len(snap.Reps))
	staged := make([]string, 0, len(snap.Reps))
	for _, obs := range snap.Reps {
		rep := Representation{
			RepID:       obs.RepID,
			EventID:     eventID,
			FormatID:    obs.FormatID,
			MIME:        obs.MIME,
			SizeBytes:   int64(len(obs.Bytes)),
			ContentHash: ContentHash(obs.Bytes),
		}

		if len(obs.Bytes) <= inlineMaxBytes && c.Session.IsReady() {
			mk, err := c.Session.GetMasterKey()
			if err != nil {
				return nil, fmt.Errorf("capture: %w", err)
			}
			blob, err := security.Seal(mk, obs.Bytes, security.AADInline(eventID, rep.RepID))
			if err != nil {
				return nil, fmt.Errorf("capture: inline encrypt: %w", err)
			}
			encoded, err := encodeBlob(blob)
			if err != nil {
				return nil, fmt.Errorf("capture: encode inline blob: %w", err)
			}
			rep.InlineData = encoded
			rep.PayloadState = PayloadBlobReady
		} else {
			c.Cache.Put(rep.RepID, obs.Bytes)
			if err := c.Spool.Write(rep.RepID, obs.Bytes); err != nil {
				// best-effort: spool failure does not fail capture, the
				// cache copy is still available to the blob worker.
				_ = err
			}
			rep.PayloadState = PayloadStaged
			staged = append(staged, rep.RepID)
		}
		reps = append(reps, rep)
	}

	event := ClipboardEvent{
		EventID:      eventID,
		EntryID:      entryID,
		CapturedAtMS: capturedAt,
		DeviceID:     c.DeviceID,
		SnapshotHash: snapHash,
	}
	sel := BuildSelection(entryID, reps)

	if err := c.Events.InsertEvent(event, reps, sel); err != nil {
		for _, repID := range staged {
			c.Cache.Remove(repID)
			c.Spool.Delete(repID)
		}
		return nil, fmt.Errorf("insert event: %w", err)
	}

	for _, repID := range staged {
		if err := c.Blob.Enqueue(eventID, repID); err != nil {
			return nil, fmt.Errorf("enqueue blob work: %w", err)
		}
	}

	return &CaptureResult{EventID: eventID, EntryID: entryID, Reps: reps}, nil
}
