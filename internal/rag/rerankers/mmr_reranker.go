package rerankers

import (
	"context"
	"math"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
)

// MMRReranker selects a diverse subset of an over-fetched candidate pool
// using maximal marginal relevance: each pick balances similarity to the
// query against similarity to what was already picked. lambda close to 1
// favors relevance, close to 0 favors diversity.
type MMRReranker struct {
	Lambda float64
}

// NewMMRReranker creates an MMRReranker. Out-of-range lambda values fall
// back to a diversity-leaning default.
func NewMMRReranker(lambda float64) *MMRReranker {
	if lambda <= 0 || lambda > 1 {
		lambda = 0.3
	}
	return &MMRReranker{Lambda: lambda}
}

// Rerank returns up to topK documents from docs, selected greedily by the
// MMR criterion. Documents without embeddings score zero relevance but are
// never dropped below topK availability.
func (r *MMRReranker) Rerank(ctx context.Context, queryEmbedding []float32, docs []*schema.Document, topK int) ([]*schema.Document, error) {
	if topK <= 0 || len(docs) == 0 {
		return nil, nil
	}
	if len(docs) <= topK {
		return docs, nil
	}

	relevance := make([]float64, len(docs))
	for i, doc := range docs {
		relevance[i] = cosineSimilarity(queryEmbedding, doc.Embedding)
	}

	selected := make([]int, 0, topK)
	remaining := make(map[int]struct{}, len(docs))
	for i := range docs {
		remaining[i] = struct{}{}
	}

	for len(selected) < topK {
		best := -1
		bestScore := math.Inf(-1)
		for i := range remaining {
			maxSim := 0.0
			for _, j := range selected {
				if sim := cosineSimilarity(docs[i].Embedding, docs[j].Embedding); sim > maxSim {
					maxSim = sim
				}
			}
			score := r.Lambda*relevance[i] - (1-r.Lambda)*maxSim
			if score > bestScore || (score == bestScore && (best == -1 || i < best)) {
				best = i
				bestScore = score
			}
		}
		selected = append(selected, best)
		delete(remaining, best)
	}

	result := make([]*schema.Document, len(selected))
	for i, idx := range selected {
		result[i] = docs[idx]
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// compile-time check to ensure MMRReranker implements the Reranker interface
var _ interfaces.Reranker = (*MMRReranker)(nil)
