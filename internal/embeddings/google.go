package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"qms-rag/internal/models"
)

const googleMaxChars = 8000

// GoogleProvider embeds through the hosted Gemini API (768 dimensions).
type GoogleProvider struct {
	client *genai.Client
	model  string
}

// NewGoogleProvider creates the hosted 768-d provider. model defaults to
// text-embedding-004.
func NewGoogleProvider(ctx context.Context, apiKey, model string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google: %w: no API key configured", ErrProviderUnavailable)
	}
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w: %v", ErrProviderUnavailable, err)
	}

	return &GoogleProvider{client: client, model: model}, nil
}

func (p *GoogleProvider) Model() string   { return p.model }
func (p *GoogleProvider) Dimensions() int { return 768 }

func (p *GoogleProvider) Info() Info {
	return Info{Name: "google", Model: p.model, Dimensions: p.Dimensions()}
}

func (p *GoogleProvider) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return models.EmbeddingVector{}, err
	}
	return vecs[0], nil
}

func (p *GoogleProvider) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := prepareTexts(texts, googleMaxChars)
	contents := make([]*genai.Content, len(prepared))
	for i, t := range prepared {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("google: %w: %v", ErrProviderUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([]models.EmbeddingVector, len(texts))
	for i, e := range resp.Embeddings {
		vecs[i] = models.EmbeddingVector{
			Values:     e.Values,
			Model:      p.model,
			Dimensions: len(e.Values),
		}
	}
	return vecs, nil
}
