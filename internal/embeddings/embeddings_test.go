package embeddings

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qms-rag/internal/config"
)

func TestPrepareTexts(t *testing.T) {
	tests := []struct {
		name     string
		in       []string
		maxChars int
		want     []string
	}{
		{
			name:     "empty string padded to a space",
			in:       []string{""},
			maxChars: 100,
			want:     []string{" "},
		},
		{
			name:     "whitespace-only padded to a space",
			in:       []string{"   \n"},
			maxChars: 100,
			want:     []string{" "},
		},
		{
			name:     "long input truncated",
			in:       []string{strings.Repeat("a", 50)},
			maxChars: 10,
			want:     []string{strings.Repeat("a", 10)},
		},
		{
			name:     "cut backs off to a rune boundary",
			in:       []string{"aüaüaü"},
			maxChars: 5,
			want:     []string{"aüa"},
		},
		{
			name:     "order preserved",
			in:       []string{"erste", "", "dritte"},
			maxChars: 100,
			want:     []string{"erste", " ", "dritte"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prepareTexts(tt.in, tt.maxChars))
		})
	}
}

func TestMockProviderDeterministic(t *testing.T) {
	p := NewMockProvider("nomic-embed-text", 768)
	ctx := context.Background()

	a, err := p.Embed(ctx, "Sicherheitswarnung")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "Sicherheitswarnung")
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)

	c, err := p.Embed(ctx, "Prozessschritt")
	require.NoError(t, err)
	assert.NotEqual(t, a.Values, c.Values)

	require.NoError(t, a.Validate())
	assert.Equal(t, 768, a.Dimensions)

	// Mock output is tagged so degraded operation is detectable downstream.
	assert.True(t, strings.HasSuffix(a.Model, "-mock"))

	// Unit length within float tolerance.
	var norm float64
	for _, v := range a.Values {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockProviderBatchOrder(t *testing.T) {
	p := NewMockProvider("", 0)
	ctx := context.Background()

	texts := []string{"eins", "zwei", "drei"}
	batch, err := p.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := p.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single.Values, batch[i].Values, "batch order broken at %d", i)
	}
}

func newFakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req localEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = float32(len(req.Prompt)%7) / 7
		}
		json.NewEncoder(w).Encode(localEmbedResponse{Embedding: vec})
	}))
}

func TestLocalProvider(t *testing.T) {
	srv := newFakeOllama(t, 768)
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "")
	assert.Equal(t, "nomic-embed-text", p.Model())
	assert.Equal(t, 768, p.Dimensions())

	vec, err := p.Embed(context.Background(), "Prüfe den Fehler")
	require.NoError(t, err)
	assert.Len(t, vec.Values, 768)
	assert.Equal(t, "nomic-embed-text", vec.Model)

	batch, err := p.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestLocalProviderDown(t *testing.T) {
	p := NewLocalProvider("http://127.0.0.1:1", "")
	_, err := p.Embed(context.Background(), "ping")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestFactoryFallsBackToMock(t *testing.T) {
	// No keys and no reachable local server: auto ends at the mock provider.
	cfg := config.EmbeddingConfig{
		Provider:  config.ProviderAuto,
		OllamaURL: "http://127.0.0.1:1",
	}
	p := NewFromConfig(context.Background(), cfg, zap.NewNop())

	info := p.Info()
	assert.True(t, info.Mock)
	assert.True(t, strings.HasSuffix(p.Model(), "-mock"))
	assert.Equal(t, 768, p.Dimensions())
}

func TestFactorySelectsLocal(t *testing.T) {
	srv := newFakeOllama(t, 768)
	defer srv.Close()

	cfg := config.EmbeddingConfig{
		Provider:  config.ProviderAuto,
		OllamaURL: srv.URL,
	}
	p := NewFromConfig(context.Background(), cfg, zap.NewNop())

	info := p.Info()
	assert.Equal(t, "local", info.Name)
	assert.False(t, info.Mock)
}

func TestFactoryExplicitLocalModel(t *testing.T) {
	srv := newFakeOllama(t, 384)
	defer srv.Close()

	cfg := config.EmbeddingConfig{
		Provider:  config.ProviderLocal,
		Model:     "all-minilm",
		OllamaURL: srv.URL,
	}
	p := NewFromConfig(context.Background(), cfg, zap.NewNop())
	assert.Equal(t, "all-minilm", p.Model())
	assert.Equal(t, 384, p.Dimensions())
}
