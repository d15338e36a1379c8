package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"qms-rag/internal/models"
)

// MockProvider emits deterministic hash-derived unit vectors. It stands in
// when no real backend can be reached; the "-mock" model suffix lets
// downstream queries detect degraded operation.
type MockProvider struct {
	model string
	dims  int
}

func NewMockProvider(model string, dims int) *MockProvider {
	if model == "" {
		model = "nomic-embed-text"
	}
	if dims <= 0 {
		dims = 768
	}
	return &MockProvider{model: model + "-mock", dims: dims}
}

func (p *MockProvider) Model() string   { return p.model }
func (p *MockProvider) Dimensions() int { return p.dims }

func (p *MockProvider) Info() Info {
	return Info{Name: "mock", Model: p.model, Dimensions: p.dims, Mock: true}
}

func (p *MockProvider) Embed(ctx context.Context, text string) (models.EmbeddingVector, error) {
	prepared := prepareTexts([]string{text}, localMaxChars)

	values := make([]float32, p.dims)
	var norm float64
	for i := range values {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s:%d", prepared[0], i)
		// Map the hash onto [-1, 1].
		v := float64(int64(h.Sum64())) / math.MaxInt64
		values[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range values {
			values[i] *= scale
		}
	}

	return models.EmbeddingVector{Values: values, Model: p.model, Dimensions: p.dims}, nil
}

func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error) {
	vecs := make([]models.EmbeddingVector, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}
