// Package syncuc implements the sync use cases that exchange clipboard
// text over the business protocol stream, with echo-cancellation so a
// peer's own relayed update does not bounce back to its local clipboard.
package syncuc

import (
	"sync"
	"time"
)

// OriginTracker is a TTL-bounded, one-shot "next origin" hint: Inbound
// sets it just before writing to the local clipboard on behalf of a
// remote peer, and the next local-clipboard-change observation consumes
// it (or the default origin if it expired or was never set) to tell that
// the change came from the network, so it is recorded but not broadcast
// again.
type OriginTracker struct {
	mu      sync.Mutex
	origin  string
	expires time.Time
	set     bool
}

// NewOriginTracker returns an empty tracker.
func NewOriginTracker() *OriginTracker { return &OriginTracker{} }

// SetNextOrigin arms the tracker with origin, valid until ttl elapses.
func (t *OriginTracker) SetNextOrigin(origin string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.origin = origin
	t.expires = time.Now().Add(ttl)
	t.set = true
}

// ConsumeOriginOrDefault returns the armed origin if still live, clearing
// it either way, or def if nothing was armed or it expired.
func (t *OriginTracker) ConsumeOriginOrDefault(def string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.set {
		return def
	}
	origin := t.origin
	expired := time.Now().After(t.expires)
	t.set = false
	t.origin = ""
	if expired {
		return def
	}
	return origin
}
