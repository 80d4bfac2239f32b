package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaseqa/internal/corpus"
	"leaseqa/internal/privacy"
	"leaseqa/internal/rag/pipeline"
	"leaseqa/internal/rag/schema"
	"leaseqa/internal/rag/storages/markerstore"
	"leaseqa/internal/rag/tokens"
	"leaseqa/internal/service"
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

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, _ string) (*schema.Generation, error) {
	return &schema.Generation{Text: "The rent is $900.", PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12}, nil
}

func newTestRouter(t *testing.T, initialize bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("rent is $900"), 0o644))

	log := logger.New("test")
	scanner, err := corpus.NewScanner(dir, false, "*.txt")
	require.NoError(t, err)
	markers, err := markerstore.NewStore(filepath.Join(dir, ".ingested"))
	require.NoError(t, err)

	protector := privacy.NewProtector()
	counter := tokens.NewCounter("test-model")
	store := &memoryStore{}

	indexing := pipeline.NewIndexingPipeline(scanner, stubLoader{}, protector, stubSplitter{}, stubEmbedder{}, store, markers, log)
	retriever := pipeline.NewRetrievalPipeline(stubEmbedder{}, store, nil, 30, log)
	qa := pipeline.NewQAPipeline(retriever, stubLLM{}, counter, 6, log)
	comparison := pipeline.NewComparisonPipeline(retriever, stubLLM{}, counter, 15, log)

	svc := service.New(scanner, store, protector, counter, indexing, qa, comparison, log)
	if initialize {
		require.NoError(t, svc.Initialize(context.Background()))
	}

	router := gin.New()
	RegisterRoutes(router, NewAPI(svc, log))
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t, true)

	w := doRequest(router, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Ready - 1 documents indexed", body["status"])
	assert.Equal(t, true, body["ready"])
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, false)

	w := doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["rag_initialized"])
	assert.Equal(t, "Not initialized", body["initialization_status"])
}

func TestAskEmptyQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := doRequest(router, http.MethodPost, "/ask", `{"question": "   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "No question provided", body["error"])
}

func TestAskInvalidPayload(t *testing.T) {
	router := newTestRouter(t, true)

	w := doRequest(router, http.MethodPost, "/ask", `{"question": 42`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskBeforeReady(t *testing.T) {
	router := newTestRouter(t, false)

	w := doRequest(router, http.MethodPost, "/ask", `{"question": "What is the rent?"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "not initialized")
}

func TestAskAnswersQuestion(t *testing.T) {
	router := newTestRouter(t, true)

	w := doRequest(router, http.MethodPost, "/ask", `{"question": "What is the rent?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Answer string `json:"answer"`
		Tokens struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "The rent is $900.", body.Answer)
	assert.Equal(t, 8, body.Tokens.PromptTokens)
	assert.Equal(t, 4, body.Tokens.CompletionTokens)
}
