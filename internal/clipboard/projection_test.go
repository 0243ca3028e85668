package clipboard

import "testing"

type fakeSelectionRepository struct {
	sels map[string]Selection
}

func (f *fakeSelectionRepository) GetSelection(entryID string) (Selection, error) {
	return f.sels[entryID], nil
}
func (f *fakeSelectionRepository) DeleteSelection(entryID string) error {
	delete(f.sels, entryID)
	return nil
}

type fakeProjectionReps struct {
	byKey map[string]Representation
}

func (f *fakeProjectionReps) GetRepresentation(eventID, repID string) (Representation, error) {
	return f.byKey[eventID+"/"+repID], nil
}
func (f *fakeProjectionReps) UpdateBlobID(eventID, repID, blobID string) error { return nil }
func (f *fakeProjectionReps) UpdateBlobIDIfNone(eventID, repID, blobID string) (bool, error) {
	return true, nil
}
func (f *fakeProjectionReps) UpdateProcessingResult(eventID, repID string, expected []PayloadState, blobID string, newState PayloadState, lastError string) (ProcessingResult, error) {
	return ProcessingUpdated, nil
}

type fakeThumbnailRepository struct {
	byRepID map[string]ThumbnailMetadata
}

func (f *fakeThumbnailRepository) GetByRepresentationID(repID string) (ThumbnailMetadata, bool, error) {
	t, ok := f.byRepID[repID]
	return t, ok, nil
}
func (f *fakeThumbnailRepository) InsertThumbnail(t ThumbnailMetadata) error {
	if f.byRepID == nil {
		f.byRepID = map[string]ThumbnailMetadata{}
	}
	f.byRepID[t.RepresentationID] = t
	return nil
}

func TestProjectorListRendersPlainTextPreviewInline(t *testing.T) {
	events := newFakeEventRepository()
	events.events["evt-1"] = ClipboardEvent{EventID: "evt-1", EntryID: "entry-1", CapturedAtMS: 1000}

	sels := &fakeSelectionRepository{sels: map[string]Selection{
		"entry-1": {EntryID: "entry-1", PreviewRepID: "rep-1"},
	}}
	reps := &fakeProjectionReps{byKey: map[string]Representation{
		"evt-1/rep-1": {RepID: "rep-1", EventID: "evt-1", MIME: "text/plain", SizeBytes: 5, InlineData: []byte("hello")},
	}}
	thumbs := &fakeThumbnailRepository{}

	p := &Projector{Events: events, Selections: sels, Reps: reps, Thumbnails: thumbs}
	out, err := p.List(10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 projection, got %d", len(out))
	}
	if out[0].Preview != "hello" {
		t.Fatalf("Preview = %q, want plain text inlined", out[0].Preview)
	}
	if !out[0].IsEncrypted {
		t.Fatal("expected IsEncrypted true when InlineData is set")
	}
}

func TestProjectorListSummarizesNonTextPreview(t *testing.T) {
	events := newFakeEventRepository()
	events.events["evt-1"] = ClipboardEvent{EventID: "evt-1", EntryID: "entry-1", CapturedAtMS: 1000}

	sels := &fakeSelectionRepository{sels: map[string]Selection{
		"entry-1": {EntryID: "entry-1", PreviewRepID: "rep-1"},
	}}
	reps := &fakeProjectionReps{byKey: map[string]Representation{
		"evt-1/rep-1": {RepID: "rep-1", EventID: "evt-1", MIME: "image/png", SizeBytes: 2048, BlobID: "blob-1"},
	}}
	thumbs := &fakeThumbnailRepository{byRepID: map[string]ThumbnailMetadata{
		"rep-1": {RepresentationID: "rep-1", ThumbnailBlobID: "thumb-1"},
	}}

	p := &Projector{Events: events, Selections: sels, Reps: reps, Thumbnails: thumbs}
	out, err := p.List(10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if out[0].Preview != "[image/png, 2048 bytes]" {
		t.Fatalf("Preview = %q, want a non-text summary", out[0].Preview)
	}
	if out[0].ThumbnailURL != "thumb-1" {
		t.Fatalf("ThumbnailURL = %q, want thumb-1", out[0].ThumbnailURL)
	}
}

func TestProjectorListRejectsOutOfRangeLimit(t *testing.T) {
	p := &Projector{Events: newFakeEventRepository(), Selections: &fakeSelectionRepository{sels: map[string]Selection{}}, Reps: &fakeProjectionReps{}, Thumbnails: &fakeThumbnailRepository{}}

	if _, err := p.List(0, 0); err == nil {
		t.Fatal("expected an error for limit 0")
	}
	if _, err := p.List(maxProjectionLimit+1, 0); err == nil {
		t.Fatal("expected an error for a limit above the maximum")
	}
	if _, err := p.List(10, -1); err == nil {
		t.Fatal("expected an error for a negative offset")
	}
}

func TestProjectorListErrorsOnMissingSelection(t *testing.T) {
	events := newFakeEventRepository()
	events.events["evt-1"] = ClipboardEvent{EventID: "evt-1", EntryID: "entry-1", CapturedAtMS: 1000}

	p := &Projector{Events: events, Selections: &fakeSelectionRepository{sels: map[string]Selection{}}, Reps: &fakeProjectionReps{}, Thumbnails: &fakeThumbnailRepository{}}
	if _, err := p.List(10, 0); err == nil {
		t.Fatal("expected an error when the entry's selection has no preview representation")
	}
}
