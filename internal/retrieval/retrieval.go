// Package retrieval turns a user query into a ranked list of search results
// ready for prompt composition.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"qms-rag/internal/embeddings"
	"qms-rag/internal/models"
	"qms-rag/internal/vectorstore"
)

// ErrInvalidQuery is returned when the query fails length validation.
var ErrInvalidQuery = errors.New("query must be between 3 and 1000 characters")

const (
	minQueryLen = 3
	maxQueryLen = 1000

	DefaultTopK     = 5
	DefaultMinScore = 0.7

	rerankOverFetch     = 3
	rerankThresholdBias = 0.8
	rerankVectorWeight  = 0.6
	rerankTextWeight    = 0.4
)

// SearchResult is one retrieval hit. ChunkID is the human-readable chunk
// identifier resolved from the point id; empty when no chunk row exists.
type SearchResult struct {
	ChunkID string              `json:"chunk_id"`
	PointID string              `json:"point_id"`
	Score   float64             `json:"score"`
	Payload vectorstore.Payload `json:"payload"`
}

// ChunkResolver maps vector point ids back to chunk rows.
type ChunkResolver interface {
	GetChunkByPointID(ctx context.Context, pointID string) (*models.DocumentChunk, error)
}

// Options tune a single search. Hybrid blending is on unless plain vector
// search is requested explicitly.
type Options struct {
	Filters    vectorstore.Filters
	TopK       int
	MinScore   float64
	Rerank     bool
	VectorOnly bool
}

func (o *Options) normalize() {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
}

// Service embeds queries and runs hybrid search against one collection.
type Service struct {
	embedder   embeddings.Provider
	store      vectorstore.Store
	chunks     ChunkResolver
	collection string
	logger     *zap.Logger
}

func NewService(embedder embeddings.Provider, store vectorstore.Store, chunks ChunkResolver, collection string, logger *zap.Logger) *Service {
	return &Service{
		embedder:   embedder,
		store:      store,
		chunks:     chunks,
		collection: collection,
		logger:     logger,
	}
}

// Search runs the default hybrid path, or the rerank path when requested.
func (s *Service) Search(ctx context.Context, query string, opts Options) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen || len(query) > maxQueryLen {
		return nil, ErrInvalidQuery
	}
	opts.normalize()

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var hits []vectorstore.Hit
	switch {
	case opts.Rerank:
		hits, err = s.rerank(ctx, embedding.Values, query, opts)
	case opts.VectorOnly:
		hits, err = s.store.Search(ctx, s.collection, embedding.Values, opts.Filters, opts.TopK, opts.MinScore)
	default:
		hits, err = s.store.SearchHybrid(ctx, s.collection, embedding.Values, query, opts.Filters, opts.TopK, opts.MinScore)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return s.wrap(ctx, hits), nil
}

// rerank over-fetches with a relaxed threshold and reweights each hit with a
// secondary text-relevance score before trimming.
func (s *Service) rerank(ctx context.Context, vector []float32, query string, opts Options) ([]vectorstore.Hit, error) {
	hits, err := s.store.Search(ctx, s.collection, vector, opts.Filters, opts.TopK*rerankOverFetch, opts.MinScore*rerankThresholdBias)
	if err != nil {
		return nil, err
	}

	for i := range hits {
		relevance := vectorstore.TextOverlapScore(query, hits[i].Payload.ChunkText)
		hits[i].Score = rerankVectorWeight*hits[i].Score + rerankTextWeight*relevance
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

func (s *Service) wrap(ctx context.Context, hits []vectorstore.Hit) []SearchResult {
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		result := SearchResult{PointID: hit.PointID, Score: hit.Score, Payload: hit.Payload}
		if s.chunks != nil {
			chunk, err := s.chunks.GetChunkByPointID(ctx, hit.PointID)
			if err != nil {
				s.logger.Debug("no chunk row for point", zap.String("point_id", hit.PointID), zap.Error(err))
			} else {
				result.ChunkID = chunk.ChunkID
			}
		}
		results = append(results, result)
	}
	return results
}

// ByDocumentType searches restricted to one document type.
func (s *Service) ByDocumentType(ctx context.Context, query, documentType string, topK int) ([]SearchResult, error) {
	return s.Search(ctx, query, Options{
		Filters: vectorstore.Filters{DocumentType: documentType},
		TopK:    topK,
	})
}

// ByPageRange searches restricted to chunks covering any of the given pages.
func (s *Service) ByPageRange(ctx context.Context, query string, pages []int, topK int) ([]SearchResult, error) {
	return s.Search(ctx, query, Options{
		Filters: vectorstore.Filters{PageNumbers: pages},
		TopK:    topK,
	})
}

// WithFilters accepts a loosely typed filter map as it arrives over HTTP.
func (s *Service) WithFilters(ctx context.Context, query string, filters map[string]interface{}, topK int) ([]SearchResult, error) {
	return s.Search(ctx, query, Options{
		Filters: ParseFilters(filters),
		TopK:    topK,
	})
}

// ParseFilters converts a JSON filter map into typed filters. Unknown keys
// are ignored.
func ParseFilters(m map[string]interface{}) vectorstore.Filters {
	var f vectorstore.Filters
	if v, ok := m["document_id"].(float64); ok {
		id := int(v)
		f.DocumentID = &id
	}
	if v, ok := m["document_type"].(string); ok {
		f.DocumentType = v
	}
	if v, ok := m["page_numbers"].([]interface{}); ok {
		for _, p := range v {
			if n, ok := p.(float64); ok {
				f.PageNumbers = append(f.PageNumbers, int(n))
			}
		}
	}
	return f
}
