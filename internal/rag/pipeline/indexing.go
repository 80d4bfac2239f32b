package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"leaseqa/internal/corpus"
	"leaseqa/internal/privacy"
	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/storages/markerstore"
	"leaseqa/pkg/logger"
)

// ErrNoDocuments is returned when the corpus contains no source documents at
// ingestion time.
var ErrNoDocuments = errors.New("no documents found in corpus")

// IndexingPipeline orchestrates incremental ingestion: discover documents,
// skip the ones whose exact content is already indexed, and for the rest
// load, mask, split, embed and store, writing the completion marker last.
type IndexingPipeline struct {
	scanner     *corpus.Scanner
	loader      interfaces.Loader
	protector   *privacy.Protector
	splitter    interfaces.Splitter
	embedder    interfaces.EmbeddingModel
	vectorStore interfaces.VectorStore
	markers     *markerstore.Store
	log         *logger.Logger
}

// NewIndexingPipeline creates a new IndexingPipeline.
func NewIndexingPipeline(
	scanner *corpus.Scanner,
	loader interfaces.Loader,
	protector *privacy.Protector,
	splitter interfaces.Splitter,
	embedder interfaces.EmbeddingModel,
	vectorStore interfaces.VectorStore,
	markers *markerstore.Store,
	log *logger.Logger,
) *IndexingPipeline {
	return &IndexingPipeline{
		scanner:     scanner,
		loader:      loader,
		protector:   protector,
		splitter:    splitter,
		embedder:    embedder,
		vectorStore: vectorStore,
		markers:     markers,
		log:         log,
	}
}

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	Ingested int
	Skipped  int
	Failed   int
}

// Run executes one blocking ingestion pass over the corpus. A document that
// fails at any stage is logged and skipped without a marker, so it is retried
// on the next run; partial failure never aborts the pass. Run is not safe to
// invoke concurrently with itself.
func (p *IndexingPipeline) Run(ctx context.Context) (*IngestReport, error) {
	paths, err := p.scanner.ListDocuments()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, ErrNoDocuments
	}

	report := &IngestReport{}
	for _, path := range paths {
		name := filepath.Base(path)

		fingerprint, err := corpus.FingerprintFile(path)
		if err != nil {
			p.log.Error(fmt.Sprintf("Failed to fingerprint %s: %v", path, err))
			report.Failed++
			continue
		}

		if p.markers.Exists(name, fingerprint) {
			p.log.Info(fmt.Sprintf("Skipping (already embedded): %s", name))
			report.Skipped++
			continue
		}

		p.log.Info(fmt.Sprintf("Indexing: %s", name))
		if err := p.ingestDocument(ctx, path); err != nil {
			p.log.Error(fmt.Sprintf("Failed to index %s: %v", path, err))
			report.Failed++
			continue
		}

		// The marker is written only after every chunk is stored; a crash
		// before this point leaves the document to be retried.
		if err := p.markers.Write(name, fingerprint); err != nil {
			p.log.Error(fmt.Sprintf("Failed to write marker for %s: %v", path, err))
			report.Failed++
			continue
		}
		report.Ingested++
	}

	p.log.WithPayload(map[string]interface{}{
		"ingested": report.Ingested,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("Finished ingestion pass")
	return report, nil
}

// ingestDocument runs one document through load -> mask -> split -> embed ->
// store. Masking runs page by page before chunking, so a chunk boundary can
// never split a placeholder.
func (p *IndexingPipeline) ingestDocument(ctx context.Context, path string) error {
	pages, err := p.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	for _, page := range pages {
		masked, _ := p.protector.Mask(page.Text)
		page.Text = masked
	}

	chunks, err := p.splitter.Split(ctx, pages)
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embed: expected %d vectors, got %d", len(chunks), len(embeddings))
	}
	for i, chunk := range chunks {
		chunk.Embedding = embeddings[i]
	}

	if err := p.vectorStore.Add(ctx, chunks); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
