package vectorstore

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaseqa/internal/rag/rerankers"
	"leaseqa/internal/rag/schema"
	"leaseqa/pkg/logger"
)

func searchFields(ids []string, vectors [][]float32) []entity.Column {
	texts := make([]string, len(ids))
	sources := make([]string, len(ids))
	for i := range ids {
		texts[i] = "chunk " + ids[i]
		sources[i] = "/c/a.pdf"
	}
	return []entity.Column{
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(schema.MetadataKeySource, sources),
		entity.NewColumnFloatVector(fieldEmbedding, 2, vectors),
	}
}

func TestDocumentsFromFieldsCarriesEmbeddings(t *testing.T) {
	s := &MilvusStore{log: *logger.New("test")}

	docs := s.documentsFromFields(2,
		[]float32{0.9, 0.4},
		searchFields([]string{"c1", "c2"}, [][]float32{{1, 0}, {0, 1}}),
	)

	require.Len(t, docs, 2)
	assert.Equal(t, "c1", docs[0].ID)
	assert.Equal(t, "chunk c1", docs[0].Text)
	assert.Equal(t, "/c/a.pdf", docs[0].Metadata[schema.MetadataKeySource])
	assert.Equal(t, []float32{1, 0}, docs[0].Embedding)
	assert.Equal(t, []float32{0, 1}, docs[1].Embedding)
	assert.InDelta(t, 0.9, docs[0].Metadata["score"].(float64), 1e-6)
}

func TestDocumentsFromFieldsMissingID(t *testing.T) {
	s := &MilvusStore{log: *logger.New("test")}

	docs := s.documentsFromFields(1, []float32{0.5}, []entity.Column{
		entity.NewColumnVarChar(fieldText, []string{"orphan"}),
	})
	assert.Empty(t, docs)
}

func TestSearchResultDocumentsSupportDiverseReranking(t *testing.T) {
	s := &MilvusStore{log: *logger.New("test")}

	// Two near-duplicates of the best match plus one orthogonal chunk: the
	// reranker can only surface the orthogonal one if the search result
	// carried the stored vectors through.
	docs := s.documentsFromFields(3,
		[]float32{1, 0.999, 0},
		searchFields([]string{"best", "duplicate", "different"},
			[][]float32{{1, 0}, {0.999, 0.001}, {0, 1}}),
	)
	require.Len(t, docs, 3)

	r := rerankers.NewMMRReranker(0.3)
	selected, err := r.Rerank(context.Background(), []float32{1, 0}, docs, 2)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "best", selected[0].ID)
	assert.Equal(t, "different", selected[1].ID)
}
