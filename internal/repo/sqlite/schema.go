// Package sqlite persists the clipboard event pipeline and trust store in
// a single SQLite database via database/sql and modernc.org/sqlite.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS clipboard_event (
	event_id       TEXT PRIMARY KEY,
	entry_id       TEXT NOT NULL,
	captured_at_ms INTEGER NOT NULL,
	device_id      TEXT NOT NULL,
	snapshot_hash  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clipboard_event_snapshot_hash ON clipboard_event(snapshot_hash);
CREATE INDEX IF NOT EXISTS idx_clipboard_event_captured_at ON clipboard_event(captured_at_ms);

CREATE TABLE IF NOT EXISTS clipboard_representation (
	rep_id        TEXT NOT NULL,
	event_id      TEXT NOT NULL REFERENCES clipboard_event(event_id) ON DELETE CASCADE,
	format_id     TEXT NOT NULL,
	mime          TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	inline_data   BLOB,
	blob_id       TEXT,
	payload_state TEXT NOT NULL,
	last_error    TEXT NOT NULL DEFAULT '',
	content_hash  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (event_id, rep_id)
);
CREATE INDEX IF NOT EXISTS idx_clipboard_representation_event ON clipboard_representation(event_id);
CREATE INDEX IF NOT EXISTS idx_clipboard_representation_content_hash ON clipboard_representation(content_hash);

CREATE TABLE IF NOT EXISTS clipboard_selection (
	entry_id          TEXT PRIMARY KEY,
	primary_rep_id    TEXT NOT NULL DEFAULT '',
	secondary_rep_ids TEXT NOT NULL DEFAULT '',
	preview_rep_id    TEXT NOT NULL DEFAULT '',
	paste_rep_id      TEXT NOT NULL DEFAULT '',
	policy_version    INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS clipboard_thumbnail (
	representation_id   TEXT PRIMARY KEY,
	thumbnail_blob_id   TEXT NOT NULL,
	thumbnail_mime      TEXT NOT NULL,
	original_width      INTEGER NOT NULL,
	original_height     INTEGER NOT NULL,
	original_size_bytes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS paired_device (
	peer_id              TEXT PRIMARY KEY,
	pairing_state        TEXT NOT NULL,
	identity_fingerprint TEXT NOT NULL,
	paired_at            INTEGER NOT NULL,
	last_seen_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS encryption_state (
	id    INTEGER PRIMARY KEY CHECK (id = 1),
	state TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS key_slot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	document   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	document TEXT NOT NULL
);
`

// Open opens (and creates if absent) the SQLite database at path and
// applies the schema. The connection pool is capped at one writer to
// avoid SQLITE_BUSY under the daemon's serialized write pattern.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return db, nil
}
