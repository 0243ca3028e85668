package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.klb.dev/unisync/internal/clipboard"
)

// EventRepository implements clipboard.EventRepository over a single
// SQLite database, owning both the event and representation tables inside
// one transaction per insert per the capture contract.
type EventRepository struct {
	DB *sql.DB
}

func (r *EventRepository) InsertEvent(event clipboard.ClipboardEvent, reps []clipboard.Representation, sel clipboard.Selection) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin insert event: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO clipboard_event (event_id, entry_id, captured_at_ms, device_id, snapshot_hash) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.EntryID, event.CapturedAtMS, event.DeviceID, event.SnapshotHash,
	); err != nil {
		return fmt.Errorf("sqlite: insert event: %w", err)
	}

	for _, rep := range reps {
		if _, err := tx.Exec(
			`INSERT INTO clipboard_representation
			 (rep_id, event_id, format_id, mime, size_bytes, inline_data, blob_id, payload_state, last_error, content_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RepID, rep.EventID, rep.FormatID, rep.MIME, rep.SizeBytes,
			nullableBytes(rep.InlineData), nullableString(rep.BlobID), string(rep.PayloadState), rep.LastError, rep.ContentHash,
		); err != nil {
			return fmt.Errorf("sqlite: insert representation %s: %w", rep.RepID, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO clipboard_selection (entry_id, primary_rep_id, secondary_rep_ids, preview_rep_id, paste_rep_id, policy_version)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entry_id) DO UPDATE SET primary_rep_id=excluded.primary_rep_id, secondary_rep_ids=excluded.secondary_rep_ids,
		   preview_rep_id=excluded.preview_rep_id, paste_rep_id=excluded.paste_rep_id, policy_version=excluded.policy_version`,
		sel.EntryID, sel.PrimaryRepID, strings.Join(sel.SecondaryRepIDs, ","), sel.PreviewRepID, sel.PasteRepID, sel.PolicyVersion,
	); err != nil {
		return fmt.Errorf("sqlite: upsert selection: %w", err)
	}

	return tx.Commit()
}

func (r *EventRepository) DeleteEventAndRepresentations(eventID string) error {
	_, err := r.DB.Exec(`DELETE FROM clipboard_event WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("sqlite: delete event %s: %w", eventID, err)
	}
	return nil
}

func (r *EventRepository) GetRepresentation(eventID, repID string) (clipboard.Representation, error) {
	return scanRepresentation(r.DB.QueryRow(
		`SELECT rep_id, event_id, format_id, mime, size_bytes, inline_data, blob_id, payload_state, last_error, content_hash
		 FROM clipboard_representation WHERE event_id = ? AND rep_id = ?`, eventID, repID))
}

func (r *EventRepository) FindEventBySnapshotHashSince(hash string, since time.Time) (clipboard.ClipboardEvent, bool, error) {
	row := r.DB.QueryRow(
		`SELECT event_id, entry_id, captured_at_ms, device_id, snapshot_hash FROM clipboard_event
		 WHERE snapshot_hash = ? AND captured_at_ms >= ? ORDER BY captured_at_ms DESC LIMIT 1`,
		hash, since.UnixMilli(),
	)
	var ev clipboard.ClipboardEvent
	if err := row.Scan(&ev.EventID, &ev.EntryID, &ev.CapturedAtMS, &ev.DeviceID, &ev.SnapshotHash); err != nil {
		if err == sql.ErrNoRows {
			return clipboard.ClipboardEvent{}, false, nil
		}
		return clipboard.ClipboardEvent{}, false, fmt.Errorf("sqlite: find by snapshot hash: %w", err)
	}
	return ev, true, nil
}

func (r *EventRepository) ListEvents(limit, offset int) ([]clipboard.ClipboardEvent, error) {
	rows, err := r.DB.Query(
		`SELECT event_id, entry_id, captured_at_ms, device_id, snapshot_hash FROM clipboard_event
		 ORDER BY captured_at_ms DESC, event_id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list events: %w", err)
	}
	defer rows.Close()

	var out []clipboard.ClipboardEvent
	for rows.Next() {
		var ev clipboard.ClipboardEvent
		if err := rows.Scan(&ev.EventID, &ev.EntryID, &ev.CapturedAtMS, &ev.DeviceID, &ev.SnapshotHash); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *EventRepository) ListRepresentations(eventID string) ([]clipboard.Representation, error) {
	rows, err := r.DB.Query(
		`SELECT rep_id, event_id, format_id, mime, size_bytes, inline_data, blob_id, payload_state, last_error, content_hash
		 FROM clipboard_representation WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list representations: %w", err)
	}
	defer rows.Close()

	var out []clipboard.Representation
	for rows.Next() {
		rep, err := scanRepresentationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *EventRepository) ListOldEvents(before time.Time) ([]string, error) {
	rows, err := r.DB.Query(`SELECT event_id FROM clipboard_event WHERE captured_at_ms < ?`, before.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list old events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepresentation(row rowScanner) (clipboard.Representation, error) {
	rep, err := scanRepresentationRow(row)
	if err == sql.ErrNoRows {
		return clipboard.Representation{}, fmt.Errorf("sqlite: representation not found")
	}
	return rep, err
}

func scanRepresentationRow(row rowScanner) (clipboard.Representation, error) {
	var rep clipboard.Representation
	var inline []byte
	var blobID sql.NullString
	var state string
	if err := row.Scan(&rep.RepID, &rep.EventID, &rep.FormatID, &rep.MIME, &rep.SizeBytes,
		&inline, &blobID, &state, &rep.LastError, &rep.ContentHash); err != nil {
		return clipboard.Representation{}, fmt.Errorf("sqlite: scan representation: %w", err)
	}
	rep.InlineData = inline
	rep.BlobID = blobID.String
	rep.PayloadState = clipboard.PayloadState(state)
	return rep, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
