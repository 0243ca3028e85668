package clipboard

import "testing"

func TestBuildSelectionPrefersPlainTextAsPreview(t *testing.T) {
	reps := []Representation{
		{RepID: "html", MIME: "text/html", SizeBytes: 100},
		{RepID: "plain", MIME: "text/plain", SizeBytes: 20},
	}
	sel := BuildSelection("entry-1", reps)

	if sel.PreviewRepID != "plain" {
		t.Fatalf("PreviewRepID = %q, want plain text representation", sel.PreviewRepID)
	}
	if sel.PrimaryRepID != "plain" {
		t.Fatalf("PrimaryRepID = %q, want plain text representation", sel.PrimaryRepID)
	}
	if len(sel.SecondaryRepIDs) != 1 || sel.SecondaryRepIDs[0] != "html" {
		t.Fatalf("SecondaryRepIDs = %v, want [html]", sel.SecondaryRepIDs)
	}
}

func TestBuildSelectionFallsBackToFirstNonEmptyWithoutPlainText(t *testing.T) {
	reps := []Representation{
		{RepID: "empty", MIME: "text/html", SizeBytes: 0},
		{RepID: "image", MIME: "image/png", SizeBytes: 512},
	}
	sel := BuildSelection("entry-1", reps)
	if sel.PreviewRepID != "image" {
		t.Fatalf("PreviewRepID = %q, want first non-empty representation", sel.PreviewRepID)
	}
}

func TestBuildSelectionPastePrefersRichestUnderLimit(t *testing.T) {
	reps := []Representation{
		{RepID: "plain", MIME: "text/plain", SizeBytes: 10},
		{RepID: "html", MIME: "text/html", SizeBytes: 10},
		{RepID: "png", MIME: "image/png", SizeBytes: 10},
	}
	sel := BuildSelection("entry-1", reps)
	if sel.PasteRepID != "png" {
		t.Fatalf("PasteRepID = %q, want the richest representation (png)", sel.PasteRepID)
	}
}

func TestBuildSelectionPasteSkipsRepresentationsOverSizeLimit(t *testing.T) {
	reps := []Representation{
		{RepID: "plain", MIME: "text/plain", SizeBytes: 10},
		{RepID: "png", MIME: "image/png", SizeBytes: maxPasteBytes + 1},
	}
	sel := BuildSelection("entry-1", reps)
	if sel.PasteRepID != "plain" {
		t.Fatalf("PasteRepID = %q, want plain text since png exceeds the paste size limit", sel.PasteRepID)
	}
}

func TestBuildSelectionPasteFallsBackToPreviewWhenAllOverLimit(t *testing.T) {
	reps := []Representation{
		{RepID: "plain", MIME: "text/plain", SizeBytes: maxPasteBytes + 1},
	}
	sel := BuildSelection("entry-1", reps)
	if sel.PasteRepID != sel.PreviewRepID {
		t.Fatalf("PasteRepID = %q, want it to fall back to PreviewRepID %q", sel.PasteRepID, sel.PreviewRepID)
	}
}

func TestRichnessRankOrdersKnownMIMEsAboveUnknownAboveText(t *testing.T) {
	if richnessRank("text/plain") >= richnessRank("application/unknown") {
		t.Fatal("expected plain text to rank below an unrecognized MIME type")
	}
	if richnessRank("application/unknown") >= richnessRank("image/gif") {
		t.Fatal("expected an unrecognized MIME type to rank below a listed rich format")
	}
	if richnessRank("image/png") <= richnessRank("image/jpeg") {
		t.Fatal("expected image/png to outrank image/jpeg per the richness ordering")
	}
}
