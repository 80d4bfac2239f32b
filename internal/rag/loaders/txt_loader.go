package loaders

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
)

// TxtLoader implements the Loader interface for reading plain text files.
// Plain text has no pages, so the whole file becomes one page-zero Document.
type TxtLoader struct{}

// NewTxtLoader creates a new TxtLoader.
func NewTxtLoader() *TxtLoader {
	return &TxtLoader{}
}

// Load reads a text file from the given path and returns it as a single Document.
func (l *TxtLoader) Load(ctx context.Context, path string) ([]*schema.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	doc := &schema.Document{
		ID:   uuid.New().String(),
		Text: string(content),
		Metadata: map[string]interface{}{
			schema.MetadataKeySource:    abs,
			schema.MetadataKeyFilePath:  abs,
			schema.MetadataKeyFileName:  filepath.Base(path),
			schema.MetadataKeyPageLabel: "0",
		},
	}

	return []*schema.Document{doc}, nil
}

// compile-time check to ensure TxtLoader implements the Loader interface
var _ interfaces.Loader = (*TxtLoader)(nil)
