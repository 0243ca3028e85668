// Package blobstore is the content-addressed, file-based implementation of
// clipboard.BlobStore: one file per content hash, refcounted so a blob
// shared by more than one representation survives until the last
// reference drops it.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/unisync/internal/clipboard"
)

// Store is a directory of content-addressed blob files plus an in-memory
// refcount table. Refcounts are not persisted: a restart treats every
// on-disk blob as having one outstanding reference, which only delays
// eventual garbage collection rather than risking a live blob's deletion.
type Store struct {
	dir string

	mu   sync.Mutex
	refs map[string]int
}

// New prepares dir (creating it if absent) as a blob store root.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("blobstore: create dir: %w", err)
	}
	return &Store{dir: dir, refs: make(map[string]int)}, nil
}

func (s *Store) pathFor(contentHash string) string {
	return filepath.Join(s.dir, contentHash+".blob")
}

// WriteIfAbsent writes ciphertext under contentHash if no blob with that
// hash already exists, otherwise it is a no-op that still bumps the
// refcount. Either way it returns the resulting Blob record.
func (s *Store) WriteIfAbsent(contentHash string, ciphertext []byte) (clipboard.Blob, error) {
	path := s.pathFor(contentHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return clipboard.Blob{}, fmt.Errorf("blobstore: stat %s: %w", contentHash, err)
		}
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, ciphertext, 0o600); err != nil {
			return clipboard.Blob{}, fmt.Errorf("blobstore: write %s: %w", contentHash, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return clipboard.Blob{}, fmt.Errorf("blobstore: finalize %s: %w", contentHash, err)
		}
	}

	s.refs[contentHash]++
	return clipboard.Blob{
		BlobID:      contentHash,
		Locator:     path,
		SizeBytes:   int64(len(ciphertext)),
		ContentHash: contentHash,
	}, nil
}

// Read returns the raw (still encrypted) bytes for blobID.
func (s *Store) Read(blobID string) ([]byte, error) {
	b, err := os.ReadFile(s.pathFor(blobID))
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", blobID, err)
	}
	return b, nil
}

// DecrefAndMaybeDelete drops one reference to blobID and removes the file
// once the refcount reaches zero.
func (s *Store) DecrefAndMaybeDelete(blobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs[blobID]--
	if s.refs[blobID] > 0 {
		return nil
	}
	delete(s.refs, blobID)

	if err := os.Remove(s.pathFor(blobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete %s: %w", blobID, err)
	}
	return nil
}
