package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CorpusConfig describes where source documents live and how they are found.
type CorpusConfig struct {
	Folder string `yaml:"folder"` // directory holding the source documents
	// Recursive is a pointer so an omitted value defaults to true while an
	// explicit false still disables descent into subdirectories.
	Recursive *bool  `yaml:"recursive"`
	Pattern   string `yaml:"pattern"` // filename glob, e.g. "*.pdf"
}

// ChunkingConfig controls how masked document text is split before embedding.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // target chunk size in characters
	Overlap int `yaml:"overlap"` // characters carried over from the previous chunk
}

// RetrievalConfig controls similarity search for the single-document path.
type RetrievalConfig struct {
	TopK       int     `yaml:"topK"`       // chunks handed to the model
	FetchK     int     `yaml:"fetchK"`     // candidate pool before diversity selection
	MMRLambda  float64 `yaml:"mmrLambda"`  // relevance/diversity balance, 0..1
	CompareTop int     `yaml:"compareTop"` // per-document chunks on the comparison path
}

// ProviderConfig selects and configures the embedding/generation provider.
type ProviderConfig struct {
	Name           string `yaml:"name"`           // "openai" or "ollama"
	ChatModel      string `yaml:"chatModel"`      // generation model name
	EmbeddingModel string `yaml:"embeddingModel"` // embedding model name
	OllamaBaseURL  string `yaml:"ollamaBaseURL"`  // ollama only; defaults to localhost
	SecretFile     string `yaml:"secretFile"`     // fallback API key file
	MaxTokens      int    `yaml:"maxTokens"`      // completion token cap for QA answers
}

// MilvusConfig configures the optional remote vector store backend.
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus service address
	Collection string `yaml:"collection"` // base collection name, namespaced per corpus
}

// VectorStoreConfig selects the vector index backend.
type VectorStoreConfig struct {
	Backend     string       `yaml:"backend"`     // "sqlite" (default) or "milvus"
	PersistRoot string       `yaml:"persistRoot"` // root directory for local persistence
	Milvus      MilvusConfig `yaml:"milvus"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Config is the root configuration for the service.
type Config struct {
	Corpus      CorpusConfig      `yaml:"corpus"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Provider    ProviderConfig    `yaml:"provider"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Server      ServerConfig      `yaml:"server"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a yaml configuration file and fills in defaults for
// anything the file leaves unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Corpus.Folder == "" {
		c.Corpus.Folder = "Lease Contracts"
	}
	if c.Corpus.Recursive == nil {
		recursive := true
		c.Corpus.Recursive = &recursive
	}
	if c.Corpus.Pattern == "" {
		c.Corpus.Pattern = "*.pdf"
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1500
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		c.Chunking.Overlap = 100
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 100
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 6
	}
	if c.Retrieval.FetchK <= 0 {
		c.Retrieval.FetchK = 30
	}
	if c.Retrieval.MMRLambda <= 0 || c.Retrieval.MMRLambda > 1 {
		c.Retrieval.MMRLambda = 0.3
	}
	if c.Retrieval.CompareTop <= 0 {
		c.Retrieval.CompareTop = 15
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	if c.Provider.ChatModel == "" {
		c.Provider.ChatModel = "gpt-3.5-turbo"
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-ada-002"
	}
	if c.Provider.SecretFile == "" {
		c.Provider.SecretFile = "openai.txt"
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = 300
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "sqlite"
	}
	if c.VectorStore.PersistRoot == "" {
		c.VectorStore.PersistRoot = ".vectors"
	}
	if c.VectorStore.Milvus.Collection == "" {
		c.VectorStore.Milvus.Collection = "lease_docs"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 5001
	}
}

// ResolveAPIKey returns the provider API key from the environment, falling
// back to the configured secret file. An empty result is not an error: the
// caller degrades to a non-functional service rather than refusing to start.
func (c *Config) ResolveAPIKey() string {
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key
	}
	data, err := os.ReadFile(c.Provider.SecretFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
