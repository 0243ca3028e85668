package syncuc

import (
	"testing"
	"time"
)

func TestOriginTrackerConsumeWithinTTL(t *testing.T) {
	tr := NewOriginTracker()
	tr.SetNextOrigin("peer-a", 50*time.Millisecond)

	got := tr.ConsumeOriginOrDefault("local")
	if got != "peer-a" {
		t.Fatalf("got %q, want peer-a", got)
	}

	// Second consume sees nothing armed.
	got = tr.ConsumeOriginOrDefault("local")
	if got != "local" {
		t.Fatalf("got %q, want local after consume", got)
	}
}

func TestOriginTrackerExpiresToDefault(t *testing.T) {
	tr := NewOriginTracker()
	tr.SetNextOrigin("peer-a", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	got := tr.ConsumeOriginOrDefault("local")
	if got != "local" {
		t.Fatalf("got %q, want local after expiry", got)
	}
}
