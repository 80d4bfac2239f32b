package rerankers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaseqa/internal/rag/schema"
)

func doc(id string, embedding []float32) *schema.Document {
	return &schema.Document{ID: id, Embedding: embedding}
}

func TestRerankPicksMostRelevantFirst(t *testing.T) {
	r := NewMMRReranker(0.5)

	docs := []*schema.Document{
		doc("far", []float32{0, 1}),
		doc("near", []float32{1, 0}),
		doc("close", []float32{0.9, 0.1}),
	}

	result, err := r.Rerank(context.Background(), []float32{1, 0}, docs, 2)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "near", result[0].ID)
}

func TestRerankPrefersDiversityOverNearDuplicates(t *testing.T) {
	r := NewMMRReranker(0.3)

	// Two near-duplicates of the best match plus one orthogonal document:
	// with a diversity-leaning lambda the orthogonal one must make the cut.
	docs := []*schema.Document{
		doc("best", []float32{1, 0}),
		doc("duplicate", []float32{0.999, 0.001}),
		doc("different", []float32{0, 1}),
	}

	result, err := r.Rerank(context.Background(), []float32{1, 0}, docs, 2)
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.Equal(t, "best", result[0].ID)
	assert.Equal(t, "different", result[1].ID)
}

func TestRerankSmallPoolReturnedAsIs(t *testing.T) {
	r := NewMMRReranker(0.3)

	docs := []*schema.Document{doc("only", []float32{1, 0})}
	result, err := r.Rerank(context.Background(), []float32{1, 0}, docs, 6)
	require.NoError(t, err)

	assert.Equal(t, docs, result)
}

func TestRerankEmptyPool(t *testing.T) {
	r := NewMMRReranker(0.3)

	result, err := r.Rerank(context.Background(), []float32{1, 0}, nil, 6)
	require.NoError(t, err)
	assert.Empty(t, result)
}
