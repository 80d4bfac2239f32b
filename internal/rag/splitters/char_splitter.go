package splitters

import (
	"context"

	"github.com/google/uuid"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
)

// CharSplitter implements the Splitter interface by cutting text into
// fixed-size character chunks. Each chunk starts with the trailing overlap of
// the previous one so retrieval keeps continuity across chunk boundaries.
// Splitting on characters rather than tokens matters here: input text already
// contains masking placeholders that must never be split by a tokenizer's
// notion of a boundary mid-ingestion.
type CharSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewCharSplitter creates a new CharSplitter. Overlap must be smaller than
// the chunk size; invalid values fall back to a quarter of the chunk size.
func NewCharSplitter(chunkSize, chunkOverlap int) *CharSplitter {
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &CharSplitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// Split splits a list of documents into smaller chunks. Metadata is deep
// copied onto every chunk so chunks never share maps with each other or with
// the source document.
func (s *CharSplitter) Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	var chunks []*schema.Document

	for _, doc := range docs {
		runes := []rune(doc.Text)
		if len(runes) == 0 {
			continue
		}
		step := s.ChunkSize - s.ChunkOverlap

		for start := 0; start < len(runes); start += step {
			end := start + s.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}

			newDoc := &schema.Document{
				ID:       uuid.New().String(),
				Text:     string(runes[start:end]),
				Metadata: s.copyMetadata(doc.Metadata),
			}
			newDoc.Metadata["original_doc_id"] = doc.ID
			newDoc.Metadata["chunk_number"] = (start / step) + 1

			chunks = append(chunks, newDoc)

			if end == len(runes) {
				break
			}
		}
	}

	return chunks, nil
}

func (s *CharSplitter) copyMetadata(md map[string]interface{}) map[string]interface{} {
	if md == nil {
		return make(map[string]interface{})
	}
	newMd := make(map[string]interface{}, len(md))
	for k, v := range md {
		newMd[k] = v
	}
	return newMd
}

// compile-time check to ensure CharSplitter implements the Splitter interface
var _ interfaces.Splitter = (*CharSplitter)(nil)
