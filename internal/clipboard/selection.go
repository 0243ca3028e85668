package clipboard

import "strings"

const maxPasteBytes = 64 * 1024

// mimeRichness ranks MIME types from richest (most expressive) to plainest.
// Representations not listed are treated as richer than plain text but
// plainer than anything explicitly ranked, so that novel formats still beat
// plain text in the paste selection without out-ranking known rich formats.
var mimeRichness = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"text/html",
	"text/rtf",
	"application/octet-stream",
}

func richnessRank(mime string) int {
	for i, m := range mimeRichness {
		if strings.EqualFold(m, mime) {
			return len(mimeRichness) - i + 1 // higher is richer
		}
	}
	if isPlainText(mime) {
		return 0
	}
	return 1
}

func isPlainText(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "text/plain")
}

// BuildSelection applies the Selection Policy to a persisted event's
// representations.
func BuildSelection(entryID string, reps []Representation) Selection {
	preview := firstPlainText(reps)
	if preview == "" {
		preview = firstNonEmpty(reps)
	}

	var secondary []string
	for _, r := range reps {
		if r.RepID != preview {
			secondary = append(secondary, r.RepID)
		}
	}

	paste := richestUnderLimit(reps)
	if paste == "" {
		paste = preview
	}

	return Selection{
		EntryID:         entryID,
		PrimaryRepID:    preview,
		SecondaryRepIDs: secondary,
		PreviewRepID:    preview,
		PasteRepID:      paste,
		PolicyVersion:   1,
	}
}

func firstPlainText(reps []Representation) string {
	for _, r := range reps {
		if isPlainText(r.MIME) {
			return r.RepID
		}
	}
	return ""
}

func firstNonEmpty(reps []Representation) string {
	for _, r := range reps {
		if r.SizeBytes > 0 {
			return r.RepID
		}
	}
	return ""
}

func richestUnderLimit(reps []Representation) string {
	bestRank := -1
	best := ""
	for _, r := range reps {
		if r.SizeBytes > maxPasteBytes {
			continue
		}
		if rank := richnessRank(r.MIME); rank > bestRank {
			bestRank = rank
			best = r.RepID
		}
	}
	return best
}
