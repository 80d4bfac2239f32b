package interfaces

import (
	"context"

	"leaseqa/internal/rag/schema"
)

// Loader is the interface for loading data from a source file and converting
// it into a list of Document objects, one per page where the format has pages.
type Loader interface {
	Load(ctx context.Context, path string) ([]*schema.Document, error)
}

// Splitter is the interface for splitting a list of Documents into smaller chunks.
type Splitter interface {
	Split(ctx context.Context, docs []*schema.Document) ([]*schema.Document, error)
}

// VectorStore is the interface for storing and querying document vectors.
// Implementations must tolerate concurrent reads; ingestion is the only writer.
type VectorStore interface {
	Add(ctx context.Context, docs []*schema.Document) error
	// Query returns up to topK documents ranked by similarity. Filters match
	// metadata fields exactly; an empty map means no filtering.
	Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]*schema.Document, error)
	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int64, error)
}

// Reranker is the interface for re-ordering retrieved documents to improve
// the relevance/diversity balance of the final context.
type Reranker interface {
	Rerank(ctx context.Context, queryEmbedding []float32, docs []*schema.Document, topK int) ([]*schema.Document, error)
}

// EmbeddingModel is the interface for a text embedding model.
type EmbeddingModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the interface for a large language model that can generate text.
// The returned Generation carries provider-reported token usage.
type LLM interface {
	Generate(ctx context.Context, prompt string) (*schema.Generation, error)
}
