package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "qms_documents", cfg.CollectionName)
	assert.Equal(t, ProviderAuto, cfg.Embedding.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.RAG.AIModel)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
listen_addr: ":9000"
collection_name: qms_test
embedding:
  provider: gemini
rag:
  chunk_size: 800
  chunk_overlap: 80
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("EMBEDDING_PROVIDER", "st")
	t.Setenv("GOOGLE_AI_API_KEY", "test-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "qms_test", cfg.CollectionName)
	// Env wins over file, and the st alias normalizes.
	assert.Equal(t, ProviderLocal, cfg.Embedding.Provider)
	assert.Equal(t, "test-key", cfg.Embedding.GoogleAPIKey)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  chunk_size: -5\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", ProviderAuto, false},
		{"auto", ProviderAuto, false},
		{"openai", ProviderOpenAI, false},
		{"google", ProviderGoogle, false},
		{"gemini", ProviderGoogle, false},
		{"sentence-transformers", ProviderLocal, false},
		{"st", ProviderLocal, false},
		{"word2vec", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeProvider(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestOpenAIKeyPriority(t *testing.T) {
	e := EmbeddingConfig{OpenAIAPIKey: "plain", OpenAIGPT5MiniAPIKey: "mini"}
	assert.Equal(t, "mini", e.OpenAIKey())

	e.OpenAIGPT5MiniAPIKey = ""
	assert.Equal(t, "plain", e.OpenAIKey())
}
