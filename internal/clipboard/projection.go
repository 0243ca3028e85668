package clipboard

import (
	"fmt"
	"log/slog"
	"time"

	"go.klb.dev/unisync/internal/ucerrors"
)

const maxProjectionLimit = 200

// Projector implements the List-projections contract.
type Projector struct {
	Events        EventRepository
	Selections    SelectionRepository
	Reps          RepresentationRepository // decorator-wrapped, decrypts inline data
	Thumbnails    ThumbnailRepository
}

// List returns a page of EntryProjection, most recent first.
func (p *Projector) List(limit, offset int) ([]EntryProjection, error) {
	if limit < 1 || limit > maxProjectionLimit {
		return nil, fmt.Errorf("%w: limit %d", ucerrors.ErrInvalidLimit, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ucerrors.ErrInvalidLimit, offset)
	}

	events, err := p.Events.ListEvents(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]EntryProjection, 0, len(events))
	for _, ev := range events {
		proj, err := p.project(ev)
		if err != nil {
			return nil, fmt.Errorf("project entry %s: %w", ev.EntryID, err)
		}
		out = append(out, proj)
	}
	return out, nil
}

func (p *Projector) project(ev ClipboardEvent) (EntryProjection, error) {
	sel, err := p.Selections.GetSelection(ev.EntryID)
	if err != nil {
		return EntryProjection{}, fmt.Errorf("missing selection: %w", err)
	}
	if sel.PreviewRepID == "" {
		return EntryProjection{}, fmt.Errorf("missing preview representation")
	}

	preview, err := p.Reps.GetRepresentation(ev.EventID, sel.PreviewRepID)
	if err != nil {
		return EntryProjection{}, fmt.Errorf("missing preview representation: %w", err)
	}

	capturedAt := time.UnixMilli(ev.CapturedAtMS)
	proj := EntryProjection{
		ID:          ev.EntryID,
		HasDetail:   preview.PayloadState != PayloadFailed,
		SizeBytes:   preview.SizeBytes,
		CapturedAt:  capturedAt,
		ContentType: preview.MIME,
		IsEncrypted: len(preview.InlineData) > 0 || preview.BlobID != "",
		UpdatedAt:   capturedAt,
		ActiveTime:  capturedAt,
	}
	if isPlainText(preview.MIME) {
		proj.Preview = string(preview.InlineData)
	} else {
		proj.Preview = fmt.Sprintf("[%s, %d bytes]", preview.MIME, preview.SizeBytes)
	}

	thumb, ok, err := p.Thumbnails.GetByRepresentationID(sel.PreviewRepID)
	if err != nil {
		slog.Warn("thumbnail lookup failed", "rep_id", sel.PreviewRepID, "err", err)
	} else if ok {
		proj.ThumbnailURL = thumb.ThumbnailBlobID
	}

	return proj, nil
}
