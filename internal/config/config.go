package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"qms-rag/internal/models"
)

const DefaultConfigFile = "config.yaml"

// Embedding provider selectors accepted in EMBEDDING_PROVIDER.
const (
	ProviderAuto   = "auto"
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderLocal  = "sentence-transformers"
)

// Config is the full service configuration. Loaded once at startup from the
// YAML file (if present) with environment overrides applied on top; immutable
// afterwards.
type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	CollectionName string `yaml:"collection_name"`
	QdrantURL      string `yaml:"qdrant_url"`
	BadgerPath     string `yaml:"badger_path"`
	LogLevel       string `yaml:"log_level"`

	// QMSAPIURL points at the upstream QMS backend that owns uploads,
	// prompt templates and permissions. Empty disables the permission gate
	// and leaves indexing without an upload source.
	QMSAPIURL string `yaml:"qms_api_url"`
	QMSAPIKey string `yaml:"qms_api_key"`

	Embedding EmbeddingConfig  `yaml:"embedding"`
	RAG       models.RAGConfig `yaml:"rag"`
}

// EmbeddingConfig selects and credentials the embedding backend.
type EmbeddingConfig struct {
	// Provider is one of auto, openai, google/gemini, sentence-transformers/st.
	Provider string `yaml:"provider"`
	// Model overrides the provider default model when set.
	Model string `yaml:"model"`

	OpenAIAPIKey         string `yaml:"openai_api_key"`
	OpenAIGPT5MiniAPIKey string `yaml:"openai_gpt5_mini_api_key"`
	OpenAIModel          string `yaml:"openai_model"`

	GoogleAPIKey string `yaml:"google_api_key"`
	GoogleModel  string `yaml:"google_model"`

	// OllamaURL points the local provider at an Ollama-compatible server.
	OllamaURL string `yaml:"ollama_url"`
}

// OpenAIKey returns the hosted-1536d credentials; the GPT-5-mini key is
// consulted first.
func (e *EmbeddingConfig) OpenAIKey() string {
	if e.OpenAIGPT5MiniAPIKey != "" {
		return e.OpenAIGPT5MiniAPIKey
	}
	return e.OpenAIAPIKey
}

func Default() *Config {
	return &Config{
		ListenAddr:     ":8080",
		CollectionName: "qms_documents",
		QdrantURL:      "http://localhost:6333",
		BadgerPath:     "data/db",
		LogLevel:       "info",
		QMSAPIURL:      "http://localhost:8000",
		Embedding: EmbeddingConfig{
			Provider:  ProviderAuto,
			OllamaURL: "http://localhost:11434",
		},
		RAG: models.DefaultRAGConfig(),
	}
}

// Load reads the config file at path (Default() when the file is absent),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file is fine; env and defaults carry the configuration.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.ListenAddr, "LISTEN_ADDR")
	setIfEnv(&c.CollectionName, "COLLECTION_NAME")
	setIfEnv(&c.QdrantURL, "QDRANT_URL")
	setIfEnv(&c.BadgerPath, "BADGER_PATH")
	setIfEnv(&c.LogLevel, "LOG_LEVEL")
	setIfEnv(&c.QMSAPIURL, "QMS_API_URL")
	setIfEnv(&c.QMSAPIKey, "QMS_API_KEY")

	setIfEnv(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setIfEnv(&c.Embedding.Model, "EMBEDDING_MODEL")
	setIfEnv(&c.Embedding.OpenAIAPIKey, "OPENAI_API_KEY")
	setIfEnv(&c.Embedding.OpenAIGPT5MiniAPIKey, "OPENAI_GPT5_MINI_API_KEY")
	setIfEnv(&c.Embedding.OpenAIModel, "OPENAI_EMBEDDING_MODEL")
	setIfEnv(&c.Embedding.GoogleAPIKey, "GOOGLE_AI_API_KEY")
	setIfEnv(&c.Embedding.GoogleModel, "GOOGLE_EMBEDDING_MODEL")
	setIfEnv(&c.Embedding.OllamaURL, "OLLAMA_URL")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// NormalizeProvider maps the accepted aliases onto canonical selectors.
func NormalizeProvider(p string) (string, error) {
	switch p {
	case "", ProviderAuto:
		return ProviderAuto, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGoogle, "gemini":
		return ProviderGoogle, nil
	case ProviderLocal, "st":
		return ProviderLocal, nil
	default:
		return "", fmt.Errorf("unknown embedding provider %q", p)
	}
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.CollectionName == "" {
		return fmt.Errorf("collection_name must not be empty")
	}
	if c.QdrantURL == "" {
		return fmt.Errorf("qdrant_url must not be empty")
	}
	normalized, err := NormalizeProvider(c.Embedding.Provider)
	if err != nil {
		return err
	}
	c.Embedding.Provider = normalized
	if err := c.RAG.Validate(); err != nil {
		return err
	}
	return nil
}
