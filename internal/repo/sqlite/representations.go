package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"go.klb.dev/unisync/internal/clipboard"
)

// RepresentationRepository implements clipboard.RepresentationRepository,
// the CAS-gated surface the blob worker and encrypting decorator use.
type RepresentationRepository struct {
	DB *sql.DB
}

func (r *RepresentationRepository) GetRepresentation(eventID, repID string) (clipboard.Representation, error) {
	return scanRepresentation(r.DB.QueryRow(
		`SELECT rep_id, event_id, format_id, mime, size_bytes, inline_data, blob_id, payload_state, last_error, content_hash
		 FROM clipboard_representation WHERE event_id = ? AND rep_id = ?`, eventID, repID))
}

func (r *RepresentationRepository) UpdateBlobID(eventID, repID, blobID string) error {
	_, err := r.DB.Exec(`UPDATE clipboard_representation SET blob_id = ? WHERE event_id = ? AND rep_id = ?`, blobID, eventID, repID)
	if err != nil {
		return fmt.Errorf("sqlite: update blob id: %w", err)
	}
	return nil
}

func (r *RepresentationRepository) UpdateBlobIDIfNone(eventID, repID, blobID string) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE clipboard_representation SET blob_id = ? WHERE event_id = ? AND rep_id = ? AND blob_id IS NULL`,
		blobID, eventID, repID)
	if err != nil {
		return false, fmt.Errorf("sqlite: update blob id if none: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateProcessingResult performs the CAS transition the blob worker needs:
// newState (and optionally blobID) is applied only if the row's current
// payload_state is one of expectedStates.
func (r *RepresentationRepository) UpdateProcessingResult(eventID, repID string, expectedStates []clipboard.PayloadState, blobID string, newState clipboard.PayloadState, lastError string) (clipboard.ProcessingResult, error) {
	placeholders := make([]string, len(expectedStates))
	args := make([]any, 0, len(expectedStates)+5)
	args = append(args, newState, lastError)
	if blobID != "" {
		args = append(args, blobID)
	}
	for i, st := range expectedStates {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, eventID, repID)

	setClause := "payload_state = ?, last_error = ?"
	if blobID != "" {
		setClause += ", blob_id = ?"
	}

	query := fmt.Sprintf(
		`UPDATE clipboard_representation SET %s WHERE payload_state IN (%s) AND event_id = ? AND rep_id = ?`,
		setClause, strings.Join(placeholders, ","))

	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return clipboard.ProcessingNotFound, fmt.Errorf("sqlite: cas processing result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return clipboard.ProcessingNotFound, err
	}
	if n > 0 {
		return clipboard.ProcessingUpdated, nil
	}

	if _, getErr := r.GetRepresentation(eventID, repID); getErr != nil {
		return clipboard.ProcessingNotFound, nil
	}
	return clipboard.ProcessingStateMismatch, nil
}

// SelectionRepository implements clipboard.SelectionRepository.
type SelectionRepository struct {
	DB *sql.DB
}

func (r *SelectionRepository) GetSelection(entryID string) (clipboard.Selection, error) {
	row := r.DB.QueryRow(
		`SELECT entry_id, primary_rep_id, secondary_rep_ids, preview_rep_id, paste_rep_id, policy_version
		 FROM clipboard_selection WHERE entry_id = ?`, entryID)

	var sel clipboard.Selection
	var secondary string
	if err := row.Scan(&sel.EntryID, &sel.PrimaryRepID, &secondary, &sel.PreviewRepID, &sel.PasteRepID, &sel.PolicyVersion); err != nil {
		if err == sql.ErrNoRows {
			return clipboard.Selection{}, fmt.Errorf("sqlite: selection not found for entry %s", entryID)
		}
		return clipboard.Selection{}, fmt.Errorf("sqlite: get selection: %w", err)
	}
	if secondary != "" {
		sel.SecondaryRepIDs = strings.Split(secondary, ",")
	}
	return sel, nil
}

func (r *SelectionRepository) DeleteSelection(entryID string) error {
	_, err := r.DB.Exec(`DELETE FROM clipboard_selection WHERE entry_id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("sqlite: delete selection: %w", err)
	}
	return nil
}

// ThumbnailRepository implements clipboard.ThumbnailRepository.
type ThumbnailRepository struct {
	DB *sql.DB
}

func (r *ThumbnailRepository) GetByRepresentationID(repID string) (clipboard.ThumbnailMetadata, bool, error) {
	row := r.DB.QueryRow(
		`SELECT representation_id, thumbnail_blob_id, thumbnail_mime, original_width, original_height, original_size_bytes
		 FROM clipboard_thumbnail WHERE representation_id = ?`, repID)

	var t clipboard.ThumbnailMetadata
	if err := row.Scan(&t.RepresentationID, &t.ThumbnailBlobID, &t.ThumbnailMIME, &t.OriginalWidth, &t.OriginalHeight, &t.OriginalSizeBytes); err != nil {
		if err == sql.ErrNoRows {
			return clipboard.ThumbnailMetadata{}, false, nil
		}
		return clipboard.ThumbnailMetadata{}, false, fmt.Errorf("sqlite: get thumbnail: %w", err)
	}
	return t, true, nil
}

func (r *ThumbnailRepository) InsertThumbnail(t clipboard.ThumbnailMetadata) error {
	_, err := r.DB.Exec(
		`INSERT INTO clipboard_thumbnail (representation_id, thumbnail_blob_id, thumbnail_mime, original_width, original_height, original_size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(representation_id) DO UPDATE SET thumbnail_blob_id=excluded.thumbnail_blob_id, thumbnail_mime=excluded.thumbnail_mime,
		   original_width=excluded.original_width, original_height=excluded.original_height, original_size_bytes=excluded.original_size_bytes`,
		t.RepresentationID, t.ThumbnailBlobID, t.ThumbnailMIME, t.OriginalWidth, t.OriginalHeight, t.OriginalSizeBytes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert thumbnail: %w", err)
	}
	return nil
}
