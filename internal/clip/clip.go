// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  — Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	clip_linux.go    — Linux via golang.design/x/clipboard, polling only
//	clip_other.go    — headless / container stub
package clip

// Item is one typed value read from or written to the OS clipboard, before
// it is assigned a rep id and format id by the watcher that feeds Capture.
type Item struct {
	MIME string
	Data []byte
}

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard contents as a slice of typed items.
	// Returns nil, nil if the clipboard is empty or contains only unsupported types.
	Read() ([]Item, error)

	// Write sets the clipboard contents to the provided items.
	Write(items []Item) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes. The channel is never closed. On platforms without native change
	// notification (Linux X11/Wayland) this is implemented via polling.
	// The caller should call Read() when it receives from the channel.
	Watch() <-chan struct{}

	// Close releases any resources held by the backend.
	Close()
}

// noopBackend is the no-op clipboard backend used for headless environments
// (containers, CI) and as the fallback when platform clipboard init fails.
// It never produces Watch events and silently discards writes.
type noopBackend struct {
	watchCh chan struct{}
}

func newNoopBackend() *noopBackend { return &noopBackend{watchCh: make(chan struct{})} }

func (b *noopBackend) Name() string              { return "headless (no-op)" }
func (b *noopBackend) Read() ([]Item, error)     { return nil, nil }
func (b *noopBackend) Write(_ []Item) error      { return nil }
func (b *noopBackend) Watch() <-chan struct{}    { return b.watchCh }
func (b *noopBackend) Close()                    {}
