package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/schema"
	"leaseqa/pkg/logger"
)

// filterColumns are the metadata fields persisted as queryable columns.
var filterColumns = map[string]bool{
	schema.MetadataKeySource:    true,
	schema.MetadataKeyFilePath:  true,
	schema.MetadataKeyFileName:  true,
	schema.MetadataKeyPageLabel: true,
}

// SQLiteStore is a durable vector store backed by a single sqlite database
// file. Similarity ranking is brute-force cosine over the candidate rows,
// which is the right trade-off for a per-corpus index of lease documents:
// the corpus is small, the store is read-mostly, and there is no server to
// operate. The database path is namespaced per corpus root by the caller.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the chunk schema exists.
func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store %s: %w", path, err)
	}

	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			file_path  TEXT NOT NULL DEFAULT '',
			file_name  TEXT NOT NULL DEFAULT '',
			page_label TEXT NOT NULL DEFAULT '',
			embedding  BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize vector store schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add inserts a list of documents in one transaction.
func (s *SQLiteStore) Add(ctx context.Context, docs []*schema.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin vector store transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, text, source, file_path, file_name, page_label, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if _, err := stmt.ExecContext(ctx,
			doc.ID,
			doc.Text,
			metadataString(doc.Metadata, schema.MetadataKeySource),
			metadataString(doc.Metadata, schema.MetadataKeyFilePath),
			metadataString(doc.Metadata, schema.MetadataKeyFileName),
			metadataString(doc.Metadata, schema.MetadataKeyPageLabel),
			encodeEmbedding(doc.Embedding),
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk insert: %w", err)
	}
	s.log.Info(fmt.Sprintf("Inserted %d chunks into vector store", len(docs)))
	return nil
}

// Query returns up to topK documents ranked by cosine similarity to the
// query embedding, optionally restricted by exact metadata filters.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]*schema.Document, error) {
	query := `SELECT id, text, source, file_path, file_name, page_label, embedding FROM chunks`
	var conditions []string
	var args []interface{}
	for key, value := range filters {
		if !filterColumns[key] {
			continue
		}
		conditions = append(conditions, key+" = ?")
		args = append(args, value)
	}
	sort.Strings(conditions)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	defer rows.Close()

	type scored struct {
		doc   *schema.Document
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var id, text, source, filePath, fileName, pageLabel string
		var blob []byte
		if err := rows.Scan(&id, &text, &source, &filePath, &fileName, &pageLabel, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		vec := decodeEmbedding(blob)
		doc := &schema.Document{
			ID:        id,
			Text:      text,
			Embedding: vec,
			Metadata: map[string]interface{}{
				schema.MetadataKeySource:    source,
				schema.MetadataKeyFilePath:  filePath,
				schema.MetadataKeyFileName:  fileName,
				schema.MetadataKeyPageLabel: pageLabel,
			},
		}
		score := cosineSimilarity(embedding, vec)
		doc.Metadata["score"] = score
		candidates = append(candidates, scored{doc: doc, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]*schema.Document, len(candidates))
	for i, c := range candidates {
		results[i] = c.doc
	}
	return results, nil
}

// Count reports the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func metadataString(md map[string]interface{}, key string) string {
	if md == nil {
		return ""
	}
	if v, ok := md[key].(string); ok {
		return v
	}
	return ""
}

// encodeEmbedding serializes a vector as little-endian float32 values.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
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

// compile-time check to ensure SQLiteStore implements the VectorStore interface
var _ interfaces.VectorStore = (*SQLiteStore)(nil)
