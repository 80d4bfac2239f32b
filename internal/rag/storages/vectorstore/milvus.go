package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
	"leaseqa/pkg/logger"
)

const (
	// Schema fields for the Milvus collection.
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
)

// milvusOutputFields are returned on every search so retrieved chunks carry
// their text, citation metadata, and embedding without a second lookup. The
// embedding must come back with the chunk: the reranker scores candidates by
// their stored vectors.
var milvusOutputFields = []string{
	fieldID, fieldText, fieldEmbedding,
	schema.MetadataKeySource, schema.MetadataKeyFilePath,
	schema.MetadataKeyFileName, schema.MetadataKeyPageLabel,
}

// MilvusStore is the remote vector index backend. The collection name is
// namespaced per corpus root by the caller, the same way the sqlite backend
// namespaces its database directory.
type MilvusStore struct {
	log        logger.Logger
	client     client.Client
	collection string
	dim        int
}

// NewMilvusStore connects to Milvus and ensures the namespaced collection
// exists and is loaded.
func NewMilvusStore(ctx context.Context, address, collection string, dim int, log *logger.Logger) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", address, err)
	}

	s := &MilvusStore{log: *log, client: c, collection: collection, dim: dim}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check milvus collection %s: %w", s.collection, err)
	}
	if !exists {
		collSchema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("masked lease document chunks").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim))).
			WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096)).
			WithField(entity.NewField().WithName(schema.MetadataKeySource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(schema.MetadataKeyFilePath).WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
			WithField(entity.NewField().WithName(schema.MetadataKeyFileName).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256)).
			WithField(entity.NewField().WithName(schema.MetadataKeyPageLabel).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16))
		if err := s.client.CreateCollection(ctx, collSchema, 1); err != nil {
			return fmt.Errorf("failed to create milvus collection %s: %w", s.collection, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("failed to build milvus index config: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create milvus index: %w", err)
		}
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load milvus collection %s: %w", s.collection, err)
	}
	return nil
}

// Add inserts a list of documents into the Milvus collection, extracting
// embeddings and metadata into their columns.
func (s *MilvusStore) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	texts := make([]string, len(docs))
	sources := make([]string, len(docs))
	filePaths := make([]string, len(docs))
	fileNames := make([]string, len(docs))
	pageLabels := make([]string, len(docs))

	for i, doc := range docs {
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		texts[i] = doc.Text
		sources[i] = metadataString(doc.Metadata, schema.MetadataKeySource)
		filePaths[i] = metadataString(doc.Metadata, schema.MetadataKeyFilePath)
		fileNames[i] = metadataString(doc.Metadata, schema.MetadataKeyFileName)
		pageLabels[i] = metadataString(doc.Metadata, schema.MetadataKeyPageLabel)
	}

	s.log.Info(fmt.Sprintf("Inserting %d chunks into milvus collection %s", len(docs), s.collection))
	_, err := s.client.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldEmbedding, s.dim, embeddings),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(schema.MetadataKeySource, sources),
		entity.NewColumnVarChar(schema.MetadataKeyFilePath, filePaths),
		entity.NewColumnVarChar(schema.MetadataKeyFileName, fileNames),
		entity.NewColumnVarChar(schema.MetadataKeyPageLabel, pageLabels),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks into milvus: %w", err)
	}
	return nil
}

// Query performs a vector search with optional metadata filtering.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]*schema.Document, error) {
	filterExpr := buildFilterExpression(filters)
	searchParams, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("failed to build milvus search params: %w", err)
	}

	s.log.Debug(fmt.Sprintf("Querying milvus collection %s with filter %q", s.collection, filterExpr))
	searchResults, err := s.client.Search(
		ctx, s.collection, []string{}, filterExpr, milvusOutputFields,
		[]entity.Vector{entity.FloatVector(embedding)},
		fieldEmbedding, entity.COSINE, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	var results []*schema.Document
	for _, res := range searchResults {
		results = append(results, s.documentsFromFields(res.ResultCount, res.Scores, res.Fields)...)
	}
	return results, nil
}

// documentsFromFields reassembles one search result's columns into chunk
// documents, including the stored embedding vector.
func (s *MilvusStore) documentsFromFields(resultCount int, scores []float32, fields []entity.Column) []*schema.Document {
	columns := make(map[string][]string)
	var vectors [][]float32
	for _, field := range fields {
		switch col := field.(type) {
		case *entity.ColumnVarChar:
			columns[field.Name()] = col.Data()
		case *entity.ColumnFloatVector:
			if field.Name() == fieldEmbedding {
				vectors = col.Data()
			}
		}
	}
	idData, ok := columns[fieldID]
	if !ok {
		s.log.Warn("Milvus search result is missing the id field, skipping")
		return nil
	}

	at := func(name string, i int) string {
		if data, ok := columns[name]; ok && i < len(data) {
			return data[i]
		}
		return ""
	}
	var docs []*schema.Document
	for i := 0; i < resultCount && i < len(idData); i++ {
		doc := &schema.Document{
			ID:   idData[i],
			Text: at(fieldText, i),
			Metadata: map[string]interface{}{
				schema.MetadataKeySource:    at(schema.MetadataKeySource, i),
				schema.MetadataKeyFilePath:  at(schema.MetadataKeyFilePath, i),
				schema.MetadataKeyFileName:  at(schema.MetadataKeyFileName, i),
				schema.MetadataKeyPageLabel: at(schema.MetadataKeyPageLabel, i),
			},
		}
		if i < len(vectors) {
			doc.Embedding = vectors[i]
		}
		if i < len(scores) {
			doc.Metadata["score"] = float64(scores[i])
		}
		docs = append(docs, doc)
	}
	return docs
}

// Count reports the number of stored chunks from the collection statistics.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to read milvus collection statistics: %w", err)
	}
	count, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse milvus row count: %w", err)
	}
	return count, nil
}

// buildFilterExpression creates a Milvus filter expression string from a map.
func buildFilterExpression(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	var conditions []string
	for key, value := range filters {
		conditions = append(conditions, fmt.Sprintf(`%s == "%s"`, key, strings.ReplaceAll(value, `"`, `\"`)))
	}
	sort.Strings(conditions)
	return strings.Join(conditions, " and ")
}

// compile-time check to ensure MilvusStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MilvusStore)(nil)
