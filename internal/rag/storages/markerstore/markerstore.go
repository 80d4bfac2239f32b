// Package markerstore persists proof that a specific document content has
// been ingested. Markers are append-only: stale markers for deleted or
// renamed files are never purged.
package markerstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// fingerprintPrefixLen is the number of fingerprint hex characters carried in
// a marker name.
const fingerprintPrefixLen = 10

// Store writes and checks per-document ingestion markers as small files named
// <document basename>-<fingerprint prefix>.done inside a marker directory.
type Store struct {
	dir string
}

// NewStore creates the marker directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// markerPath builds the marker file path for a document name and fingerprint.
// The name is part of the key, so a renamed file with identical content gets
// a fresh marker and is re-ingested.
func (s *Store) markerPath(documentName, fingerprint string) string {
	prefix := fingerprint
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.done", documentName, prefix))
}

// Exists reports whether this exact document content has already been
// ingested.
func (s *Store) Exists(documentName, fingerprint string) bool {
	_, err := os.Stat(s.markerPath(documentName, fingerprint))
	return err == nil
}

// Write records a completed ingestion. It is called only after the document's
// chunks are fully stored, which is what makes re-runs crash safe.
func (s *Store) Write(documentName, fingerprint string) error {
	path := s.markerPath(documentName, fingerprint)
	if err := os.WriteFile(path, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("failed to write ingestion marker %s: %w", path, err)
	}
	return nil
}
