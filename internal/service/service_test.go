package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaseqa/internal/corpus"
	"leaseqa/internal/privacy"
	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/pipeline"
	"leaseqa/internal/rag/schema"
	"leaseqa/internal/rag/storages/markerstore"
	"leaseqa/internal/rag/tokens"
	"leaseqa/pkg/logger"
)

type stubLoader struct{}

func (stubLoader) Load(_ context.Context, path string) ([]*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []*schema.Document{{
		Text: string(data),
		Metadata: map[string]interface{}{
			schema.MetadataKeySource:    path,
			schema.MetadataKeyFilePath:  path,
			schema.MetadataKeyFileName:  filepath.Base(path),
			schema.MetadataKeyPageLabel: "0",
		},
	}}, nil
}

type brokenLoader struct{}

func (brokenLoader) Load(_ context.Context, _ string) ([]*schema.Document, error) {
	return nil, errors.New("unreadable document")
}

type stubSplitter struct{}

func (stubSplitter) Split(_ context.Context, docs []*schema.Document) ([]*schema.Document, error) {
	return docs, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type memoryStore struct {
	docs []*schema.Document
}

func (m *memoryStore) Add(_ context.Context, docs []*schema.Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memoryStore) Query(_ context.Context, _ []float32, topK int, filters map[string]string) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range m.docs {
		matched := true
		for key, want := range filters {
			if got, _ := doc.Metadata[key].(string); got != want {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, doc)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memoryStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.docs)), nil
}

type scriptedLLM struct {
	prompts []string
	reply   string
}

func (l *scriptedLLM) Generate(_ context.Context, prompt string) (*schema.Generation, error) {
	l.prompts = append(l.prompts, prompt)
	return &schema.Generation{Text: l.reply, PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12}, nil
}

var _ interfaces.Loader = stubLoader{}
var _ interfaces.Splitter = stubSplitter{}
var _ interfaces.EmbeddingModel = stubEmbedder{}
var _ interfaces.VectorStore = (*memoryStore)(nil)
var _ interfaces.LLM = (*scriptedLLM)(nil)

func newTestService(t *testing.T, files map[string]string, llm *scriptedLLM) *Service {
	return newTestServiceWithLoader(t, files, llm, stubLoader{})
}

func newTestServiceWithLoader(t *testing.T, files map[string]string, llm *scriptedLLM, loader interfaces.Loader) *Service {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	log := logger.New("test")
	scanner, err := corpus.NewScanner(dir, false, "*.txt")
	require.NoError(t, err)
	markers, err := markerstore.NewStore(filepath.Join(dir, ".ingested"))
	require.NoError(t, err)

	protector := privacy.NewProtector()
	counter := tokens.NewCounter("test-model")
	store := &memoryStore{}
	embedder := stubEmbedder{}

	indexing := pipeline.NewIndexingPipeline(scanner, loader, protector, stubSplitter{}, embedder, store, markers, log)
	retriever := pipeline.NewRetrievalPipeline(embedder, store, nil, 30, log)
	qa := pipeline.NewQAPipeline(retriever, llm, counter, 6, log)
	comparison := pipeline.NewComparisonPipeline(retriever, llm, counter, 15, log)

	return New(scanner, store, protector, counter, indexing, qa, comparison, log)
}

func TestStatusLifecycle(t *testing.T) {
	svc := newTestService(t, map[string]string{"a.txt": "rent is $900"}, &scriptedLLM{})

	status, ready := svc.Status()
	assert.Equal(t, "Not initialized", status)
	assert.False(t, ready)

	require.NoError(t, svc.Initialize(context.Background()))
	status, ready = svc.Status()
	assert.Equal(t, "Ready - 1 documents indexed", status)
	assert.True(t, ready)
}

func TestInitializeEmptyCorpus(t *testing.T) {
	svc := newTestService(t, nil, &scriptedLLM{})

	err := svc.Initialize(context.Background())
	require.Error(t, err)
	status, ready := svc.Status()
	assert.Equal(t, "Error: No documents found", status)
	assert.False(t, ready)
}

func TestAskBeforeInitialize(t *testing.T) {
	svc := newTestService(t, map[string]string{"a.txt": "rent"}, &scriptedLLM{})

	_, err := svc.Ask(context.Background(), "What is the rent?", false)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestClassifyPriority(t *testing.T) {
	svc := newTestService(t, nil, &scriptedLLM{})

	tests := []struct {
		question string
		compare  bool
		want     QuestionKind
	}{
		{"What documents do you have?", false, KindListing},
		// Listing wins even when comparison wording is present.
		{"Compare the documents you have", false, KindListing},
		{"What is the SSN of the tenant?", false, KindSensitive},
		{"Compare the rent in the two leases", false, KindListing},
		{"What is the difference in rent?", false, KindComparison},
		{"Contrast the notice periods", false, KindComparison},
		{"What is the rent?", true, KindComparison},
		{"What is the rent?", false, KindSingleDoc},
		{"When does the term end?", false, KindSingleDoc},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, svc.Classify(tt.question, tt.compare), tt.question)
	}
}

func TestAskListing(t *testing.T) {
	llm := &scriptedLLM{}
	svc := newTestService(t, map[string]string{"a.txt": "rent is $900"}, llm)
	require.NoError(t, svc.Initialize(context.Background()))

	result, err := svc.Ask(context.Background(), "Which documents are available?", false)
	require.NoError(t, err)
	assert.True(t, result.DocumentListing)
	assert.Contains(t, result.Answer, "a.txt")
	assert.Contains(t, result.Answer, "✅")
	assert.Empty(t, llm.prompts, "listing answers never call the model")
	assert.Equal(t, result.Tokens.QuestionTokens, result.Tokens.TotalTokens)
	assert.Zero(t, result.Tokens.PromptTokens)
}

func TestAskListingAfterFailedIngestion(t *testing.T) {
	llm := &scriptedLLM{}
	svc := newTestServiceWithLoader(t, map[string]string{"a.txt": "rent is $900"}, llm, brokenLoader{})
	require.NoError(t, svc.Initialize(context.Background()))

	// Every document failed, so the store is empty and the listing must not
	// claim anything is indexed.
	result, err := svc.Ask(context.Background(), "Which documents are available?", false)
	require.NoError(t, err)
	assert.True(t, result.DocumentListing)
	assert.Contains(t, result.Answer, "a.txt")
	assert.Contains(t, result.Answer, "⏳")
	assert.Contains(t, result.Answer, "Processing")
	assert.NotContains(t, result.Answer, "✅")
}

func TestAskSensitiveBlocked(t *testing.T) {
	llm := &scriptedLLM{}
	svc := newTestService(t, map[string]string{"a.txt": "rent is $900"}, llm)
	require.NoError(t, svc.Initialize(context.Background()))

	result, err := svc.Ask(context.Background(), "What is the SSN of the tenant?", false)
	require.NoError(t, err)
	assert.True(t, result.SensitiveBlocked)
	assert.Contains(t, result.Answer, "I cannot provide sensitive information")
	assert.Contains(t, result.Answer, "personal information")
	assert.Empty(t, llm.prompts, "blocked questions never reach the model")
}

func TestAskSingleDocument(t *testing.T) {
	llm := &scriptedLLM{reply: "The rent is $900."}
	svc := newTestService(t, map[string]string{"a.txt": "rent is $900"}, llm)
	require.NoError(t, svc.Initialize(context.Background()))

	result, err := svc.Ask(context.Background(), "What is the rent?", false)
	require.NoError(t, err)
	assert.Equal(t, "The rent is $900.", result.Answer)
	assert.False(t, result.DocumentListing)
	assert.False(t, result.SensitiveBlocked)
	assert.Equal(t, 8, result.Tokens.PromptTokens)
	assert.Equal(t, 4, result.Tokens.CompletionTokens)
}

func TestAskComparisonUsesAllDocuments(t *testing.T) {
	llm := &scriptedLLM{reply: "Both leases charge rent."}
	svc := newTestService(t, map[string]string{
		"a.txt": "rent is $900",
		"b.txt": "rent is $1100",
	}, llm)
	require.NoError(t, svc.Initialize(context.Background()))

	result, err := svc.Ask(context.Background(), "What is the difference in rent?", false)
	require.NoError(t, err)
	// Two per-document summaries plus one synthesis.
	assert.Len(t, llm.prompts, 3)
	assert.Contains(t, result.Answer, "Both leases charge rent.")
	assert.Contains(t, result.Answer, "Sources:")
}

func TestListingHTMLEmpty(t *testing.T) {
	html := ListingHTML(nil)
	assert.Contains(t, html, "don't currently have access to any documents")
	assert.Contains(t, html, "Lease Contracts")
}
