package pipeline

import (
	"context"
	"fmt"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
	"leaseqa/pkg/logger"
)

// RetrievalPipeline retrieves relevant chunks for a query. It over-fetches a
// candidate pool and hands it to the reranker so the final context balances
// relevance against redundancy.
type RetrievalPipeline struct {
	embedder    interfaces.EmbeddingModel
	vectorStore interfaces.VectorStore
	reranker    interfaces.Reranker // optional; nil means plain similarity order
	fetchK      int
	log         *logger.Logger
}

// NewRetrievalPipeline creates a new RetrievalPipeline. The reranker is
// optional and can be nil.
func NewRetrievalPipeline(
	embedder interfaces.EmbeddingModel,
	vectorStore interfaces.VectorStore,
	reranker interfaces.Reranker,
	fetchK int,
	log *logger.Logger,
) *RetrievalPipeline {
	if fetchK <= 0 {
		fetchK = 30
	}
	return &RetrievalPipeline{
		embedder:    embedder,
		vectorStore: vectorStore,
		reranker:    reranker,
		fetchK:      fetchK,
		log:         log,
	}
}

// EmbedQuery embeds a query string once so callers issuing several filtered
// searches against the same question do not pay per-search embedding calls.
func (p *RetrievalPipeline) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding model returned no vector for query")
	}
	return embeddings[0], nil
}

// Run retrieves the topK most useful chunks for the query across the whole
// index.
func (p *RetrievalPipeline) Run(ctx context.Context, query string, topK int) ([]*schema.Document, error) {
	queryEmbedding, err := p.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	poolSize := topK
	if p.reranker != nil && p.fetchK > poolSize {
		poolSize = p.fetchK
	}

	candidates, err := p.vectorStore.Query(ctx, queryEmbedding, poolSize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	if len(candidates) == 0 {
		p.log.Info("No chunks found in vector store for the query")
		return nil, nil
	}

	if p.reranker == nil {
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		return candidates, nil
	}

	selected, err := p.reranker.Rerank(ctx, queryEmbedding, candidates, topK)
	if err != nil {
		p.log.Warn(fmt.Sprintf("Reranker failed: %v. Returning similarity order.", err))
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		return candidates, nil
	}
	return selected, nil
}

// RunFiltered retrieves up to topK chunks restricted to one metadata filter,
// reusing an already-embedded query vector. No diversity pass is applied:
// per-document retrieval wants the densest evidence for that document.
func (p *RetrievalPipeline) RunFiltered(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]*schema.Document, error) {
	docs, err := p.vectorStore.Query(ctx, queryEmbedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	return docs, nil
}
