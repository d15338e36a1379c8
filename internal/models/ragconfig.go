package models

import "fmt"

// Enumerated RAGConfig values. Anything outside these sets fails validation.
var (
	ValidParsers            = []string{"mineru", "docling"}
	ValidParseMethods       = []string{"auto", "ocr", "txt"}
	ValidChunkingStrategies = []string{"semantic", "hierarchical", "fixed_size", "structured"}
	ValidEmbeddingModels    = []string{"text-embedding-3-small", "text-embedding-ada-002"}
	ValidAIModels           = []string{"gpt-4o-mini", "gpt-5-mini", "gemini-2.5-flash"}
)

// RAGConfig is the per-deployment tuning of the RAG core. It is validated at
// startup and immutable afterwards.
type RAGConfig struct {
	Parser            string `yaml:"parser" json:"parser"`
	ParseMethod       string `yaml:"parse_method" json:"parse_method"`
	ChunkingStrategy  string `yaml:"chunking_strategy" json:"chunking_strategy"`
	ChunkSize         int    `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap" json:"chunk_overlap"`
	EmbeddingModel    string `yaml:"embedding_model" json:"embedding_model"`
	AIModel           string `yaml:"ai_model" json:"ai_model"`
	MaxContextChunks  int    `yaml:"max_context_chunks" json:"max_context_chunks"`
	ContextWindowSize int    `yaml:"context_window_size" json:"context_window_size"`

	EnableMultimodal      bool `yaml:"enable_multimodal" json:"enable_multimodal"`
	EnableTableExtraction bool `yaml:"enable_table_extraction" json:"enable_table_extraction"`
	EnableFormulaParsing  bool `yaml:"enable_formula_parsing" json:"enable_formula_parsing"`
}

func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Parser:            "docling",
		ParseMethod:       "auto",
		ChunkingStrategy:  "structured",
		ChunkSize:         1000,
		ChunkOverlap:      50,
		EmbeddingModel:    "text-embedding-3-small",
		AIModel:           "gpt-4o-mini",
		MaxContextChunks:  5,
		ContextWindowSize: 8192,
	}
}

func (c *RAGConfig) Validate() error {
	if !contains(ValidParsers, c.Parser) {
		return fmt.Errorf("parser must be one of %v, got %q", ValidParsers, c.Parser)
	}
	if !contains(ValidParseMethods, c.ParseMethod) {
		return fmt.Errorf("parse_method must be one of %v, got %q", ValidParseMethods, c.ParseMethod)
	}
	if !contains(ValidChunkingStrategies, c.ChunkingStrategy) {
		return fmt.Errorf("chunking_strategy must be one of %v, got %q", ValidChunkingStrategies, c.ChunkingStrategy)
	}
	if !contains(ValidEmbeddingModels, c.EmbeddingModel) {
		return fmt.Errorf("embedding_model must be one of %v, got %q", ValidEmbeddingModels, c.EmbeddingModel)
	}
	if !contains(ValidAIModels, c.AIModel) {
		return fmt.Errorf("ai_model must be one of %v, got %q", ValidAIModels, c.AIModel)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxContextChunks <= 0 {
		return fmt.Errorf("max_context_chunks must be positive, got %d", c.MaxContextChunks)
	}
	if c.ContextWindowSize <= 0 {
		return fmt.Errorf("context_window_size must be positive, got %d", c.ContextWindowSize)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
