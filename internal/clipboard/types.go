// Package clipboard implements the clipboard event pipeline: normalizing an
// observed OS clipboard snapshot into persisted events, representations, and
// a selection, and projecting that history for display.
package clipboard

import "time"

// ObservedRepresentation is one format captured from the OS clipboard in a
// single snapshot, before normalization or persistence.
type ObservedRepresentation struct {
	RepID    string
	FormatID string
	MIME     string
	Bytes    []byte
}

// ClipboardSnapshot is what the Watcher hands to Capture.
type ClipboardSnapshot struct {
	TSMillis int64
	Reps     []ObservedRepresentation
}

// PayloadState is the lifecycle of a representation's bytes.
type PayloadState string

const (
	PayloadStaged     PayloadState = "Staged"
	PayloadProcessing PayloadState = "Processing"
	PayloadBlobReady  PayloadState = "BlobReady"
	PayloadFailed     PayloadState = "Failed"
)

// ClipboardEvent is one observed, deduplicated snapshot.
type ClipboardEvent struct {
	EventID      string
	EntryID      string
	CapturedAtMS int64
	DeviceID     string
	SnapshotHash string
}

// Representation is one persisted format belonging to an event. Exactly one
// of InlineData or BlobID is set once PayloadState is BlobReady.
type Representation struct {
	RepID        string
	EventID      string
	FormatID     string
	MIME         string
	SizeBytes    int64
	InlineData   []byte // encrypted EncryptedBlob bytes (JSON), or decrypted plaintext after the encrypting decorator runs
	BlobID       string
	PayloadState PayloadState
	LastError    string
	ContentHash  string
}

// Selection records, per entry, which representation plays which role.
type Selection struct {
	EntryID         string
	PrimaryRepID    string
	SecondaryRepIDs []string
	PreviewRepID    string
	PasteRepID      string
	PolicyVersion   int
}

// Blob is a content-addressed payload written by the blob worker.
type Blob struct {
	BlobID      string
	Locator     string
	SizeBytes   int64
	ContentHash string
}

// ThumbnailMetadata exists only for image-typed representations; produced by
// an external thumbnail producer, read-only to the core.
type ThumbnailMetadata struct {
	RepresentationID  string
	ThumbnailBlobID   string
	ThumbnailMIME     string
	OriginalWidth     int
	OriginalHeight    int
	OriginalSizeBytes int64
}

// EntryProjection is the paginated UI-facing view of one clipboard entry.
type EntryProjection struct {
	ID            string
	Preview       string
	HasDetail     bool
	SizeBytes     int64
	CapturedAt    time.Time
	ContentType   string
	ThumbnailURL  string
	IsEncrypted   bool
	IsFavorited   bool
	UpdatedAt     time.Time
	ActiveTime    time.Time
}

// EventRepository exclusively owns event rows and representation rows.
type EventRepository interface {
	InsertEvent(event ClipboardEvent, reps []Representation, sel Selection) error
	DeleteEventAndRepresentations(eventID string) error
	GetRepresentation(eventID, repID string) (Representation, error)
	FindEventBySnapshotHashSince(hash string, since time.Time) (ClipboardEvent, bool, error)
	// ListEvents returns events ordered by captured_at_ms descending, ties
	// broken by event_id ascending (lexicographic), for pagination.
	ListEvents(limit, offset int) ([]ClipboardEvent, error)
	ListRepresentations(eventID string) ([]Representation, error)
	ListOldEvents(before time.Time) ([]string, error)
}

// RepresentationRepository exposes the CAS operations used by the blob
// worker and the encrypting decorator.
type RepresentationRepository interface {
	GetRepresentation(eventID, repID string) (Representation, error)
	UpdateBlobID(eventID, repID, blobID string) error
	UpdateBlobIDIfNone(eventID, repID, blobID string) (bool, error)
	// UpdateProcessingResult performs a CAS on PayloadState: newState is
	// applied only if the current state is one of expectedStates.
	UpdateProcessingResult(eventID, repID string, expectedStates []PayloadState, blobID string, newState PayloadState, lastError string) (ProcessingResult, error)
}

// ProcessingResult is the outcome of a CAS attempt.
type ProcessingResult int

const (
	ProcessingUpdated ProcessingResult = iota
	ProcessingStateMismatch
	ProcessingNotFound
)

// SelectionRepository exclusively owns per-entry selection rows.
type SelectionRepository interface {
	GetSelection(entryID string) (Selection, error)
	DeleteSelection(entryID string) error
}

// BlobWriter/BlobStore: content-addressed, idempotent.
type BlobWriter interface {
	WriteIfAbsent(contentHash string, ciphertext []byte) (Blob, error)
}

type BlobStore interface {
	BlobWriter
	Read(blobID string) ([]byte, error)
	DecrefAndMaybeDelete(blobID string) error
}

// ThumbnailRepository is read-mostly from the core's perspective.
type ThumbnailRepository interface {
	GetByRepresentationID(repID string) (ThumbnailMetadata, bool, error)
	InsertThumbnail(t ThumbnailMetadata) error
}
