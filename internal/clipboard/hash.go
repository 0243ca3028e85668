package clipboard

import (
	"encoding/hex"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// ContentHash returns the hex-encoded 256-bit BLAKE3 digest of b, the
// content-addressing function used to name blobs and dedupe representations.
func ContentHash(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SnapshotHash hashes the concatenation of (format_id + content_hash) for
// every representation, in canonical ascending format_id order, so that
// identical multi-representation snapshots hash identically regardless of
// capture order.
func SnapshotHash(reps []ObservedRepresentation) string {
	sorted := make([]ObservedRepresentation, len(reps))
	copy(sorted, reps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FormatID < sorted[j].FormatID })

	var sb strings.Builder
	for _, r := range sorted {
		sb.WriteString(r.FormatID)
		sb.WriteString(ContentHash(r.Bytes))
	}
	return ContentHash([]byte(sb.String()))
}
