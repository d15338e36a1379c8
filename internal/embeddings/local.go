package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"qms-rag/internal/models"
)

const localMaxChars = 8000

// LocalProvider embeds through an Ollama-compatible local server. It is the
// last resort in the auto-selection order and needs no credentials.
type LocalProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLocalProvider creates the local provider. model defaults to
// nomic-embed-text (768-d); all-minilm (384-d) is also supported.
func NewLocalProvider(baseURL, model string) *LocalProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &LocalProvider{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (p *LocalProvider) Model() string { return p.model }

func (p *LocalProvider) Dimensions() int {
	switch p.model {
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

func (p *LocalProvider) Info() Info {
	return Info{Name: "local", Model: p.model, Dimensions: p.Dimensions()}
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (p *LocalProvider) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	prepared := prepareTexts([]string{text}, localMaxChars)

	body, err := json.Marshal(localEmbedRequest{Model: p.model, Prompt: prepared[0]})
	if err != nil {
		return models.EmbeddingVector{}, fmt.Errorf("local: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return models.EmbeddingVector{}, fmt.Errorf("local: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.EmbeddingVector{}, fmt.Errorf("local: %w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.EmbeddingVector{}, fmt.Errorf("local: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return models.EmbeddingVector{}, fmt.Errorf("local: %w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(msg))
	}

	var out localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.EmbeddingVector{}, fmt.Errorf("local: failed to decode response: %w", err)
	}

	return models.EmbeddingVector{
		Values:     out.Embedding,
		Model:      p.model,
		Dimensions: len(out.Embedding),
	}, nil
}

// EmbedBatch issues one request per text; the Ollama API embeds a single
// prompt at a time. Order is preserved.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	vecs := make([]models.EmbeddingVector, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("local: batch item %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}
