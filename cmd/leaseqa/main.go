package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"leaseqa/internal/api"
	"leaseqa/internal/config"
	"leaseqa/internal/corpus"
	"leaseqa/internal/privacy"
	"leaseqa/internal/rag/embeddings"
	"leaseqa/internal/rag/interfaces"
	"leaseqa/internal/rag/llms"
	"leaseqa/internal/rag/loaders"
	"leaseqa/internal/rag/pipeline"
	"leaseqa/internal/rag/rerankers"
	"leaseqa/internal/rag/splitters"
	"leaseqa/internal/rag/storages/markerstore"
	"leaseqa/internal/rag/storages/vectorstore"
	"leaseqa/internal/rag/tokens"
	"leaseqa/internal/service"
	"leaseqa/pkg/logger"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	var cfg *config.Config
	if _, statErr := os.Stat(configPath); statErr == nil {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	logger.Init(logrus.InfoLevel)
	appLogger := logger.New("leaseqa")
	appLogger.Info("Logger initialized")

	ctx := context.Background()

	scanner, err := corpus.NewScanner(cfg.Corpus.Folder, *cfg.Corpus.Recursive, cfg.Corpus.Pattern)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	embedder, llm, err := buildProvider(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Persistence is namespaced by the corpus location, so pointing the
	// service at a different folder builds a fresh index instead of mixing
	// corpora.
	corpusID := corpus.FingerprintText(scanner.Root())[:10]
	persistDir := filepath.Join(cfg.VectorStore.PersistRoot,
		fmt.Sprintf("%s-%s", filepath.Base(scanner.Root()), corpusID))

	store, err := buildVectorStore(ctx, cfg, persistDir, corpusID, appLogger)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	markers, err := markerstore.NewStore(filepath.Join(persistDir, ".ingested"))
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	protector := privacy.NewProtector()
	counter := tokens.NewCounter(cfg.Provider.ChatModel)
	splitter := splitters.NewCharSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	reranker := rerankers.NewMMRReranker(cfg.Retrieval.MMRLambda)

	indexing := pipeline.NewIndexingPipeline(scanner, buildLoader(cfg), protector, splitter, embedder, store, markers, appLogger)
	retriever := pipeline.NewRetrievalPipeline(embedder, store, reranker, cfg.Retrieval.FetchK, appLogger)
	qa := pipeline.NewQAPipeline(retriever, llm, counter, cfg.Retrieval.TopK, appLogger)
	comparison := pipeline.NewComparisonPipeline(retriever, llm, counter, cfg.Retrieval.CompareTop, appLogger)

	svc := service.New(scanner, store, protector, counter, indexing, qa, comparison, appLogger)

	// The server starts even when initialization fails, so /status and
	// /health can report what went wrong.
	if err := svc.Initialize(ctx); err != nil {
		appLogger.Error("Initialization failed: " + err.Error())
	}

	router := api.SetupRouter(api.NewAPI(svc, appLogger))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	appLogger.Info("Starting server on " + addr)
	if err := router.Run(addr); err != nil {
		appLogger.Fatal(err.Error())
	}
}

// buildLoader picks the document loader matching the corpus pattern.
func buildLoader(cfg *config.Config) interfaces.Loader {
	if strings.Contains(strings.ToLower(cfg.Corpus.Pattern), "txt") {
		return loaders.NewTxtLoader()
	}
	return loaders.NewPdfLoader()
}

// buildProvider constructs the embedding model and LLM for the configured
// provider. A missing OpenAI key is not fatal: ingestion and answering will
// fail with a clear error while the status endpoints stay available.
func buildProvider(cfg *config.Config, log *logger.Logger) (interfaces.EmbeddingModel, interfaces.LLM, error) {
	switch cfg.Provider.Name {
	case "ollama":
		embedder, err := embeddings.NewOllamaModel(cfg.Provider.EmbeddingModel, cfg.Provider.OllamaBaseURL)
		if err != nil {
			return nil, nil, err
		}
		llm, err := llms.NewOllama(cfg.Provider.ChatModel, cfg.Provider.OllamaBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return embedder, llm, nil
	case "openai":
		apiKey := cfg.ResolveAPIKey()
		if apiKey == "" {
			log.Warn("No OpenAI API key found in environment or secret file")
		}
		embedder, err := embeddings.NewOpenAIModel(apiKey, cfg.Provider.EmbeddingModel)
		if err != nil {
			return nil, nil, err
		}
		llm, err := llms.NewOpenAI(apiKey, cfg.Provider.ChatModel, cfg.Provider.MaxTokens)
		if err != nil {
			return nil, nil, err
		}
		return embedder, llm, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

func buildVectorStore(ctx context.Context, cfg *config.Config, persistDir, corpusID string, log *logger.Logger) (interfaces.VectorStore, error) {
	switch cfg.VectorStore.Backend {
	case "milvus":
		collection := fmt.Sprintf("%s_%s", cfg.VectorStore.Milvus.Collection, corpusID)
		return vectorstore.NewMilvusStore(ctx, cfg.VectorStore.Milvus.Address, collection, embeddingDim(cfg), log)
	case "sqlite":
		if err := os.MkdirAll(persistDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create persist dir %s: %w", persistDir, err)
		}
		return vectorstore.NewSQLiteStore(filepath.Join(persistDir, "vectors.db"), log)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.VectorStore.Backend)
	}
}

// embeddingDim is the vector width the Milvus collection schema needs up
// front. The sqlite backend infers it from the stored vectors.
func embeddingDim(cfg *config.Config) int {
	if cfg.Provider.Name == "ollama" {
		return 768
	}
	return 1536
}
