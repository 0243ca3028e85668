package blobworker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.klb.dev/unisync/internal/clipboard"
	"go.klb.dev/unisync/internal/repo/blobstore"
	"go.klb.dev/unisync/internal/security"
)

type fakeRep struct {
	eventID, repID string
	state          clipboard.PayloadState
	blobID         string
	lastError      string
}

type fakeReps struct {
	mu   sync.Mutex
	reps map[string]*fakeRep
}

func newFakeReps(items ...*fakeRep) *fakeReps {
	m := make(map[string]*fakeRep, len(items))
	for _, it := range items {
		m[it.eventID+"/"+it.repID] = it
	}
	return &fakeReps{reps: m}
}

func (f *fakeReps) GetRepresentation(eventID, repID string) (clipboard.Representation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reps[eventID+"/"+repID]
	if !ok {
		return clipboard.Representation{}, nil
	}
	return clipboard.Representation{RepID: r.repID, EventID: r.eventID, PayloadState: r.state, BlobID: r.blobID}, nil
}

func (f *fakeReps) UpdateBlobID(eventID, repID, blobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reps[eventID+"/"+repID].blobID = blobID
	return nil
}

func (f *fakeReps) UpdateBlobIDIfNone(eventID, repID, blobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reps[eventID+"/"+repID]
	if r.blobID != "" {
		return false, nil
	}
	r.blobID = blobID
	return true, nil
}

func (f *fakeReps) UpdateProcessingResult(eventID, repID string, expected []clipboard.PayloadState, blobID string, newState clipboard.PayloadState, lastError string) (clipboard.ProcessingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reps[eventID+"/"+repID]
	if !ok {
		return clipboard.ProcessingNotFound, nil
	}
	match := false
	for _, s := range expected {
		if r.state == s {
			match = true
			break
		}
	}
	if !match {
		return clipboard.ProcessingStateMismatch, nil
	}
	r.state = newState
	if blobID != "" {
		r.blobID = blobID
	}
	r.lastError = lastError
	return clipboard.ProcessingUpdated, nil
}

type fakeCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{m: map[string][]byte{}} }

func (c *fakeCache) Put(repID string, b []byte) { c.mu.Lock(); defer c.mu.Unlock(); c.m[repID] = b }
func (c *fakeCache) Get(repID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[repID]
	return b, ok
}
func (c *fakeCache) Remove(repID string) { c.mu.Lock(); defer c.mu.Unlock(); delete(c.m, repID) }

type fakeSpool struct{}

func (fakeSpool) Write(repID string, b []byte) error       { return nil }
func (fakeSpool) Read(repID string) ([]byte, bool, error)  { return nil, false, nil }
func (fakeSpool) Delete(repID string)                      {}

func readySession(t *testing.T) *security.Session {
	t.Helper()
	s := security.NewSession()
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i)
	}
	s.SetMasterKey(security.NewSecret32(raw))
	return s
}

func TestWorkerProcessMaterializesStagedRepresentation(t *testing.T) {
	rep := &fakeRep{eventID: "evt-1", repID: "rep-1", state: clipboard.PayloadStaged}
	reps := newFakeReps(rep)
	cache := newFakeCache()
	cache.Put("rep-1", []byte("hello world"))

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	w := New(reps, cache, fakeSpool{}, readySession(t), blobs, 4)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer cancel()

	if err := w.Enqueue("evt-1", "rep-1"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		reps.mu.Lock()
		state := rep.state
		blobID := rep.blobID
		reps.mu.Unlock()
		if state == clipboard.PayloadBlobReady && blobID != "" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("representation never reached BlobReady, last state=%s", rep.state)
}

func TestWorkerProcessSkipsWhenCASLost(t *testing.T) {
	rep := &fakeRep{eventID: "evt-1", repID: "rep-1", state: clipboard.PayloadBlobReady, blobID: "already-done"}
	reps := newFakeReps(rep)
	cache := newFakeCache()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	w := New(reps, cache, fakeSpool{}, readySession(t), blobs, 4)
	w.process(workItem{eventID: "evt-1", repID: "rep-1"})

	reps.mu.Lock()
	defer reps.mu.Unlock()
	if rep.blobID != "already-done" {
		t.Fatalf("expected the already-materialized rep left untouched, got blobID=%q", rep.blobID)
	}
}

func TestWorkerProcessRevertsToStagedOnCacheAndSpoolMiss(t *testing.T) {
	rep := &fakeRep{eventID: "evt-1", repID: "rep-missing", state: clipboard.PayloadStaged}
	reps := newFakeReps(rep)
	cache := newFakeCache()

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	w := New(reps, cache, fakeSpool{}, readySession(t), blobs, 4)
	w.process(workItem{eventID: "evt-1", repID: "rep-missing"})

	reps.mu.Lock()
	defer reps.mu.Unlock()
	if rep.state != clipboard.PayloadStaged {
		t.Fatalf("expected rep reverted to Staged on cache/spool miss, got %s", rep.state)
	}
	if rep.lastError == "" {
		t.Fatal("expected lastError to record the cache/spool miss")
	}
}
