// Package vectorstore encapsulates all interaction with the vector database:
// collection lifecycle, point upserts, filtered search and the hybrid
// vector-plus-lexical scoring used by retrieval.
package vectorstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"qms-rag/internal/models"
)

// ErrCollectionNotFound reports a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Payload is the metadata stored alongside each vector point.
type Payload struct {
	DocumentID       int      `json:"document_id"`
	DocumentType     string   `json:"document_type"`
	PageNumbers      []int    `json:"page_numbers"`
	ChunkText        string   `json:"chunk_text"`
	ChunkType        string   `json:"chunk_type"`
	HeadingHierarchy []string `json:"heading_hierarchy"`
	TokenCount       int      `json:"token_count"`
}

// Point is one vector plus payload, addressed by a UUID point id.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Hit is a single search result.
type Hit struct {
	PointID string  `json:"point_id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Filters narrows a search by payload equality. PageNumbers matches when the
// point covers any of the given pages.
type Filters struct {
	DocumentID   *int
	DocumentType string
	PageNumbers  []int
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.DocumentID == nil && f.DocumentType == "" && len(f.PageNumbers) == 0
}

func (f Filters) matches(p Payload) bool {
	if f.DocumentID != nil && p.DocumentID != *f.DocumentID {
		return false
	}
	if f.DocumentType != "" && p.DocumentType != f.DocumentType {
		return false
	}
	if len(f.PageNumbers) > 0 {
		found := false
		for _, want := range f.PageNumbers {
			for _, have := range p.PageNumbers {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CollectionInfo summarizes a collection for diagnostics.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount int    `json:"point_count"`
	Dimensions int    `json:"dimensions"`
	Distance   string `json:"distance"`
}

// Store is the vector database contract. Implementations must be safe for
// concurrent use; batch operations are not transactional.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	UpsertPoint(ctx context.Context, name string, point Point) error
	// UpsertBatch returns the number of points inserted, which is smaller
	// than len(points) on partial failure.
	UpsertBatch(ctx context.Context, name string, points []Point) (int, error)
	Search(ctx context.Context, name string, vector []float32, filters Filters, topK int, minScore float64) ([]Hit, error)
	SearchHybrid(ctx context.Context, name string, vector []float32, queryText string, filters Filters, topK int, minScore float64) ([]Hit, error)
	DeletePoint(ctx context.Context, name, pointID string) error
	DeleteByDocument(ctx context.Context, name string, documentID int) error
	CollectionInfo(ctx context.Context, name string) (CollectionInfo, error)
	Health(ctx context.Context) error
}

// NormalizePointID maps arbitrary chunk identifier strings onto the UUID
// point id space. UUID-shaped input passes through unchanged.
func NormalizePointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return models.PointIDForChunk(id)
}
