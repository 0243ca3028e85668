package clipboard

import (
	"sync"
	"testing"

	"go.klb.dev/unisync/internal/security"
)

type fakeCaptureCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeCaptureCache() *fakeCaptureCache { return &fakeCaptureCache{m: map[string][]byte{}} }

func (c *fakeCaptureCache) Put(repID string, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[repID] = b
}
func (c *fakeCaptureCache) Get(repID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[repID]
	return b, ok
}
func (c *fakeCaptureCache) Remove(repID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, repID)
}

type fakeCaptureSpool struct {
	mu      sync.Mutex
	writes  map[string][]byte
	failing bool
}

func newFakeCaptureSpool() *fakeCaptureSpool { return &fakeCaptureSpool{writes: map[string][]byte{}} }

func (s *fakeCaptureSpool) Write(repID string, b []byte) error {
	if s.failing {
		return errFakeSpool
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes[repID] = b
	return nil
}
func (s *fakeCaptureSpool) Read(repID string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.writes[repID]
	return b, ok, nil
}
func (s *fakeCaptureSpool) Delete(repID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.writes, repID)
}

var errFakeSpool = &spoolError{"fake spool failure"}

type spoolError struct{ msg string }

func (e *spoolError) Error() string { return e.msg }

type fakeBlobEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	failNext bool
}

func (b *fakeBlobEnqueuer) Enqueue(eventID, repID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext {
		b.failNext = false
		return errFakeSpool
	}
	b.enqueued = append(b.enqueued, repID)
	return nil
}

func readyCaptureSession(t *testing.T) *security.Session {
	t.Helper()
	s := security.NewSession()
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(2 * i)
	}
	s.SetMasterKey(security.NewSecret32(raw))
	return s
}

func TestCaptureRunSmallPayloadGoesInline(t *testing.T) {
	events := newFakeEventRepository()
	blobs := &fakeBlobEnqueuer{}
	c := &Capture{
		DeviceID: "dev-1",
		Events:   events,
		Session:  readyCaptureSession(t),
		Cache:    newFakeCaptureCache(),
		Spool:    newFakeCaptureSpool(),
		Blob:     blobs,
	}

	snap := ClipboardSnapshot{Reps: []ObservedRepresentation{
		{RepID: "rep-1", FormatID: "text", MIME: "text/plain", Bytes: []byte("hello")},
	}}

	res, err := c.Run(snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res == nil {
		t.Fatal("expected a non-nil capture result")
	}
	if len(res.Reps) != 1 {
		t.Fatalf("expected 1 representation, got %d", len(res.Reps))
	}
	if res.Reps[0].PayloadState != PayloadBlobReady {
		t.Fatalf("PayloadState = %s, want BlobReady for a small inline payload", res.Reps[0].PayloadState)
	}
	if len(res.Reps[0].InlineData) == 0 {
		t.Fatal("expected InlineData to be populated for a small payload")
	}
	if len(blobs.enqueued) != 0 {
		t.Fatalf("expected no blob worker enqueue for an inline representation, got %v", blobs.enqueued)
	}
}

func TestCaptureRunLargePayloadGoesStagedAndEnqueued(t *testing.T) {
	events := newFakeEventRepository()
	blobs := &fakeBlobEnqueuer{}
	cache := newFakeCaptureCache()
	c := &Capture{
		DeviceID: "dev-1",
		Events:   events,
		Session:  readyCaptureSession(t),
		Cache:    cache,
		Spool:    newFakeCaptureSpool(),
		Blob:     blobs,
	}

	big := make([]byte, inlineMaxBytes+1)
	snap := ClipboardSnapshot{Reps: []ObservedRepresentation{
		{RepID: "rep-1", FormatID: "text", MIME: "text/plain", Bytes: big},
	}}

	res, err := c.Run(snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reps[0].PayloadState != PayloadStaged {
		t.Fatalf("PayloadState = %s, want Staged for an over-limit payload", res.Reps[0].PayloadState)
	}
	if _, ok := cache.Get("rep-1"); !ok {
		t.Fatal("expected the staged bytes to be cached for the blob worker")
	}
	if len(blobs.enqueued) != 1 || blobs.enqueued[0] != "rep-1" {
		t.Fatalf("enqueued = %v, want [rep-1]", blobs.enqueued)
	}
}

func TestCaptureRunEmptySnapshotIsNoop(t *testing.T) {
	c := &Capture{Events: newFakeEventRepository(), Session: readyCaptureSession(t), Cache: newFakeCaptureCache(), Spool: newFakeCaptureSpool(), Blob: &fakeBlobEnqueuer{}}
	res, err := c.Run(ClipboardSnapshot{})
	if err != nil || res != nil {
		t.Fatalf("expected nil, nil for an empty snapshot, got %v, %v", res, err)
	}
}

func TestCaptureRunDeduplicatesWithinWindow(t *testing.T) {
	events := newFakeEventRepository()
	c := &Capture{
		DeviceID: "dev-1",
		Events:   events,
		Session:  readyCaptureSession(t),
		Cache:    newFakeCaptureCache(),
		Spool:    newFakeCaptureSpool(),
		Blob:     &fakeBlobEnqueuer{},
	}

	snap := ClipboardSnapshot{Reps: []ObservedRepresentation{
		{RepID: "rep-1", FormatID: "text", MIME: "text/plain", Bytes: []byte("same content")},
	}}

	first, err := c.Run(snap)
	if err != nil || first == nil {
		t.Fatalf("expected the first capture to succeed, got %v, %v", first, err)
	}

	snap.Reps[0].RepID = "rep-2" // a fresh observation of identical bytes
	second, err := c.Run(snap)
	if err != nil {
		t.Fatalf("Run (dup): %v", err)
	}
	if second != nil {
		t.Fatalf("expected the duplicate snapshot to be a no-op, got %+v", second)
	}
}

func TestCaptureRunRollsBackCacheAndSpoolOnInsertFailure(t *testing.T) {
	events := newFakeEventRepository()
	events.insertErrs = []error{errFakeSpool}
	cache := newFakeCaptureCache()
	spool := newFakeCaptureSpool()
	c := &Capture{
		DeviceID: "dev-1",
		Events:   events,
		Session:  readyCaptureSession(t),
		Cache:    cache,
		Spool:    spool,
		Blob:     &fakeBlobEnqueuer{},
	}

	big := make([]byte, inlineMaxBytes+1)
	snap := ClipboardSnapshot{Reps: []ObservedRepresentation{
		{RepID: "rep-1", FormatID: "text", MIME: "text/plain", Bytes: big},
	}}

	_, err := c.Run(snap)
	if err == nil {
		t.Fatal("expected an error when the event insert fails")
	}
	if _, ok := cache.Get("rep-1"); ok {
		t.Fatal("expected the cache entry to be rolled back on insert failure")
	}
	if _, ok, _ := spool.Read("rep-1"); ok {
		t.Fatal("expected the spool entry to be rolled back on insert failure")
	}
}
