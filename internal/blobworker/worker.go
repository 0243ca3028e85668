// Package blobworker drains staged representations, materializes their
// bytes as content-addressed encrypted blobs, and advances payload_state.
package blobworker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.klb.dev/unisync/internal/clipboard"
	"go.klb.dev/unisync/internal/security"
)

const defaultMaxAttempts = 3

type workItem struct {
	eventID string
	repID   string
}

// Worker implements the Blob Worker contract: a single serial consumer of a
// bounded channel of rep_ids.
type Worker struct {
	Reps        clipboard.RepresentationRepository
	Cache       clipboard.Cache
	Spool       clipboard.Spool
	Session     *security.Session
	Blobs       clipboard.BlobWriter
	MaxAttempts int
	QueueDepth  int

	queue chan workItem
}

// New constructs a Worker and its bounded channel. Enqueue blocks once the
// channel is full, providing the required back-pressure.
func New(reps clipboard.RepresentationRepository, cache clipboard.Cache, spool clipboard.Spool, session *security.Session, blobs clipboard.BlobWriter, queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Worker{
		Reps:        reps,
		Cache:       cache,
		Spool:       spool,
		Session:     session,
		Blobs:       blobs,
		MaxAttempts: defaultMaxAttempts,
		QueueDepth:  queueDepth,
		queue:       make(chan workItem, queueDepth),
	}
}

// Enqueue implements clipboard.BlobEnqueuer. It blocks rather than drop.
func (w *Worker) Enqueue(eventID, repID string) error {
	w.queue <- workItem{eventID: eventID, repID: repID}
	return nil
}

// Run drains the queue serially until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-w.queue:
			w.process(item)
		}
	}
}

func (w *Worker) process(item workItem) {
	result, err := w.Reps.UpdateProcessingResult(item.eventID, item.repID,
		[]clipboard.PayloadState{clipboard.PayloadStaged, clipboard.PayloadProcessing},
		"", clipboard.PayloadProcessing, "")
	if err != nil {
		slog.Warn("blob worker: CAS to Processing failed", "rep_id", item.repID, "err", err)
		return
	}
	if result != clipboard.ProcessingUpdated {
		return // lost the race or the rep no longer exists; not our job this run
	}

	bytes, ok := w.Cache.Get(item.repID)
	if !ok {
		var spoolErr error
		bytes, ok, spoolErr = w.Spool.Read(item.repID)
		if spoolErr != nil {
			slog.Warn("blob worker: spool read failed", "rep_id", item.repID, "err", spoolErr)
		}
	}
	if !ok {
		_, _ = w.Reps.UpdateProcessingResult(item.eventID, item.repID,
			[]clipboard.PayloadState{clipboard.PayloadProcessing},
			"", clipboard.PayloadStaged, "cache/spool miss")
		return
	}

	contentHash := clipboard.ContentHash(bytes)

	maxAttempts := w.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		blobID, err := w.materialize(contentHash, bytes)
		if err == nil {
			res, err := w.Reps.UpdateProcessingResult(item.eventID, item.repID,
				[]clipboard.PayloadState{clipboard.PayloadProcessing},
				blobID, clipboard.PayloadBlobReady, "")
			if err == nil && res == clipboard.ProcessingUpdated {
				w.Cache.Remove(item.repID)
				w.Spool.Delete(item.repID)
				return
			}
			lastErr = fmt.Errorf("finalize CAS: %w (result=%v)", err, res)
		} else {
			lastErr = err
		}
		if attempt < maxAttempts {
			time.Sleep(backoff(attempt))
		}
	}

	slog.Warn("blob worker: materialization failed, giving up", "rep_id", item.repID, "attempts", maxAttempts, "err", lastErr)
	_, _ = w.Reps.UpdateProcessingResult(item.eventID, item.repID,
		[]clipboard.PayloadState{clipboard.PayloadProcessing},
		"", clipboard.PayloadFailed, errString(lastErr))
}

func (w *Worker) materialize(contentHash string, plaintext []byte) (string, error) {
	mk, err := w.Session.GetMasterKey()
	if err != nil {
		return "", fmt.Errorf("blob worker: %w", err)
	}
	blob, err := security.Seal(mk, plaintext, security.AADBlob(contentHash))
	if err != nil {
		return "", fmt.Errorf("blob worker: encrypt: %w", err)
	}
	encoded, err := encodeBlobForStorage(blob)
	if err != nil {
		return "", fmt.Errorf("blob worker: encode: %w", err)
	}
	stored, err := w.Blobs.WriteIfAbsent(contentHash, encoded)
	if err != nil {
		return "", fmt.Errorf("blob worker: write: %w", err)
	}
	return stored.BlobID, nil
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
