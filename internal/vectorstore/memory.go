package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by brute-force cosine search.
// It serves development without a Qdrant server and the test suites of the
// layers above.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim    int
	points map[string]Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &memoryCollection{dim: dim, points: make(map[string]Point)}
	}
	return nil
}

func (s *MemoryStore) collection(name string) (*memoryCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	return c, nil
}

func (s *MemoryStore) UpsertPoint(ctx context.Context, name string, point Point) error {
	_, err := s.UpsertBatch(ctx, name, []Point{point})
	return err
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, name string, points []Point) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	for i, p := range points {
		if len(p.Vector) != c.dim {
			return i, fmt.Errorf("point %s has %d dimensions, collection %s expects %d", p.ID, len(p.Vector), name, c.dim)
		}
		p.ID = NormalizePointID(p.ID)
		c.points[p.ID] = p
	}
	return len(points), nil
}

func (s *MemoryStore) Search(ctx context.Context, name string, vector []float32, filters Filters, topK int, minScore float64) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(c.points))
	for _, p := range c.points {
		if !filters.matches(p.Payload) {
			continue
		}
		score := CosineSimilarity(vector, p.Vector)
		if score < minScore {
			continue
		}
		hits = append(hits, Hit{PointID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) SearchHybrid(ctx context.Context, name string, vector []float32, queryText string, filters Filters, topK int, minScore float64) ([]Hit, error) {
	hits, err := s.Search(ctx, name, vector, filters, topK*hybridOverFetch, minScore*hybridThresholdBias)
	if err != nil {
		return nil, err
	}
	return blendHybrid(hits, queryText, topK, minScore), nil
}

func (s *MemoryStore) DeletePoint(ctx context.Context, name, pointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}
	delete(c.points, NormalizePointID(pointID))
	return nil
}

func (s *MemoryStore) DeleteByDocument(ctx context.Context, name string, documentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.collection(name)
	if err != nil {
		return err
	}
	for id, p := range c.points {
		if p.Payload.DocumentID == documentID {
			delete(c.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(name)
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{Name: name, PointCount: len(c.points), Dimensions: c.dim, Distance: "Cosine"}, nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return nil }
