package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"qms-rag/internal/models"
)

const openaiMaxChars = 24000

// OpenAIProvider embeds through the hosted OpenAI API (1536 dimensions for
// the supported models).
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates the hosted 1536-d provider. model defaults to
// text-embedding-3-small.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w: no API key configured", ErrProviderUnavailable)
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) Dimensions() int {
	switch p.model {
	case string(openai.LargeEmbedding3):
		return 3072
	default:
		// text-embedding-3-small and text-embedding-ada-002
		return 1536
	}
}

func (p *OpenAIProvider) Info() Info {
	return Info{Name: "openai", Model: p.model, Dimensions: p.Dimensions()}
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return models.EmbeddingVector{}, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: prepareTexts(texts, openaiMaxChars),
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([]models.EmbeddingVector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = models.EmbeddingVector{
			Values:     d.Embedding,
			Model:      p.model,
			Dimensions: len(d.Embedding),
		}
	}
	return vecs, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("openai: %w: %v", ErrRateLimited, err)
	}
	return fmt.Errorf("openai: %w: %v", ErrProviderUnavailable, err)
}
