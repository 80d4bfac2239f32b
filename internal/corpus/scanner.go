// Package corpus discovers source documents and computes their content
// identities.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// fingerprint reads in fixed 1 MiB chunks; only raw bytes contribute to the
// digest, never file metadata.
const fingerprintChunkSize = 1 << 20

// DocumentInfo describes one discovered source document.
type DocumentInfo struct {
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	SizeMB   float64 `json:"size_mb"`
	Indexed  bool    `json:"indexed"`
}

// Scanner lists documents under a corpus root by filename pattern.
type Scanner struct {
	root      string
	recursive bool
	pattern   glob.Glob
}

// NewScanner creates a Scanner for the given root directory. pattern is a
// filename glob such as "*.pdf", matched case-insensitively against base
// names.
func NewScanner(root string, recursive bool, pattern string) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root %s: %w", root, err)
	}
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid corpus pattern %q: %w", pattern, err)
	}
	return &Scanner{root: abs, recursive: recursive, pattern: g}, nil
}

// Root returns the absolute corpus root path.
func (s *Scanner) Root() string {
	return s.root
}

// ListDocuments returns matching file paths, lexicographically sorted within
// each directory and traversed depth-first when recursive. An empty result is
// a valid "no documents" state, not an error.
func (s *Scanner) ListDocuments() ([]string, error) {
	if !s.recursive {
		return s.listDir(s.root)
	}

	var matches []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if s.pattern.Match(strings.ToLower(d.Name())) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan corpus root %s: %w", s.root, err)
	}
	// WalkDir visits entries in lexical order per directory, which keeps the
	// overall order deterministic across runs.
	return matches, nil
}

func (s *Scanner) listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.pattern.Match(strings.ToLower(entry.Name())) {
			matches = append(matches, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(matches)
	return matches, nil
}

// DocumentInfos returns descriptive information for each discovered document.
// indexed is applied uniformly: callers know whether the index holds content.
func (s *Scanner) DocumentInfos(indexed bool) ([]DocumentInfo, error) {
	paths, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}

	infos := make([]DocumentInfo, 0, len(paths))
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		sizeMB := float64(int64(float64(stat.Size())/(1024*1024)*100+0.5)) / 100
		infos = append(infos, DocumentInfo{
			Filename: filepath.Base(path),
			Path:     path,
			SizeMB:   sizeMB,
			Indexed:  indexed,
		})
	}
	return infos, nil
}

// FingerprintFile computes the hex sha256 digest of a file's raw bytes,
// streaming in fixed-size chunks. Identical content always yields an
// identical fingerprint regardless of path or mtime.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for fingerprinting: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, fingerprintChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintText computes the hex sha256 digest of a string. It namespaces
// the persistent index by corpus root so different corpora never collide.
func FingerprintText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
