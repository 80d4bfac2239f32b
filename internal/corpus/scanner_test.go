package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListDocumentsSortedNonRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "b")
	writeFile(t, filepath.Join(dir, "a.pdf"), "a")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), "c")

	s, err := NewScanner(dir, false, "*.pdf")
	require.NoError(t, err)

	paths, err := s.ListDocuments()
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), paths[0])
	assert.Equal(t, filepath.Join(dir, "b.pdf"), paths[1])
}

func TestListDocumentsRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.pdf"), "t")
	writeFile(t, filepath.Join(dir, "sub", "nested.pdf"), "n")
	writeFile(t, filepath.Join(dir, "sub", "skip.txt"), "s")

	s, err := NewScanner(dir, true, "*.pdf")
	require.NoError(t, err)

	paths, err := s.ListDocuments()
	require.NoError(t, err)

	require.Len(t, paths, 2)
	assert.Contains(t, paths, filepath.Join(dir, "top.pdf"))
	assert.Contains(t, paths, filepath.Join(dir, "sub", "nested.pdf"))
}

func TestListDocumentsEmptyCorpusIsNotAnError(t *testing.T) {
	s, err := NewScanner(t.TempDir(), true, "*.pdf")
	require.NoError(t, err)

	paths, err := s.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFingerprintFileSensitivity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	writeFile(t, path, "lease content")

	before, err := FingerprintFile(path)
	require.NoError(t, err)
	require.Len(t, before, 64)

	again, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, again)

	// Appending a single byte must change the fingerprint.
	writeFile(t, path, "lease content!")
	after, err := FingerprintFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFingerprintIgnoresPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.pdf"), "same bytes")
	writeFile(t, filepath.Join(dir, "two.pdf"), "same bytes")

	one, err := FingerprintFile(filepath.Join(dir, "one.pdf"))
	require.NoError(t, err)
	two, err := FingerprintFile(filepath.Join(dir, "two.pdf"))
	require.NoError(t, err)

	assert.Equal(t, one, two)
}

func TestDocumentInfos(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lease.pdf"), "content")

	s, err := NewScanner(dir, true, "*.pdf")
	require.NoError(t, err)

	infos, err := s.DocumentInfos(true)
	require.NoError(t, err)

	require.Len(t, infos, 1)
	assert.Equal(t, "lease.pdf", infos[0].Filename)
	assert.True(t, infos[0].Indexed)
}
