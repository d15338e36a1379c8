package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantStore talks to a Qdrant server over its REST API. One store handles
// one server; collections are addressed per call.
type QdrantStore struct {
	baseURL    string
	httpClient *http.Client
}

func NewQdrantStore(baseURL string) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	return &QdrantStore{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

var _ Store = (*QdrantStore)(nil)

func (s *QdrantStore) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", endpoint, ErrCollectionNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant returned status %d for %s: %s", resp.StatusCode, endpoint, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet. An existing collection is left untouched.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	err := s.doRequest(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err == nil {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.doRequest(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

type qdrantPoint struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

func (s *QdrantStore) UpsertPoint(ctx context.Context, name string, point Point) error {
	n, err := s.UpsertBatch(ctx, name, []Point{point})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("point %s was not inserted", point.ID)
	}
	return nil
}

// UpsertBatch writes all points in one request. On failure no insert count
// can be attributed, so zero is reported and the caller decides whether to
// proceed.
func (s *QdrantStore) UpsertBatch(ctx context.Context, name string, points []Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	qpoints := make([]qdrantPoint, len(points))
	for i, p := range points {
		qpoints[i] = qdrantPoint{
			ID:      NormalizePointID(p.ID),
			Vector:  p.Vector,
			Payload: p.Payload,
		}
	}

	body := map[string]interface{}{"points": qpoints}
	if err := s.doRequest(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil); err != nil {
		return 0, fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return len(points), nil
}

type qdrantFilter struct {
	Must []map[string]interface{} `json:"must,omitempty"`
}

func buildFilter(f Filters) *qdrantFilter {
	if f.Empty() {
		return nil
	}
	qf := &qdrantFilter{}
	if f.DocumentID != nil {
		qf.Must = append(qf.Must, map[string]interface{}{
			"key":   "document_id",
			"match": map[string]interface{}{"value": *f.DocumentID},
		})
	}
	if f.DocumentType != "" {
		qf.Must = append(qf.Must, map[string]interface{}{
			"key":   "document_type",
			"match": map[string]interface{}{"value": f.DocumentType},
		})
	}
	if len(f.PageNumbers) > 0 {
		qf.Must = append(qf.Must, map[string]interface{}{
			"key":   "page_numbers",
			"match": map[string]interface{}{"any": f.PageNumbers},
		})
	}
	return qf
}

type qdrantSearchResult struct {
	Result []struct {
		ID      string  `json:"id"`
		Score   float64 `json:"score"`
		Payload Payload `json:"payload"`
	} `json:"result"`
}

func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, filters Filters, topK int, minScore float64) ([]Hit, error) {
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if minScore > 0 {
		body["score_threshold"] = minScore
	}
	if qf := buildFilter(filters); qf != nil {
		body["filter"] = qf
	}

	var out qdrantSearchResult
	if err := s.doRequest(ctx, http.MethodPost, "/collections/"+name+"/points/search", body, &out); err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]Hit, len(out.Result))
	for i, r := range out.Result {
		hits[i] = Hit{PointID: r.ID, Score: r.Score, Payload: r.Payload}
	}
	return hits, nil
}

// SearchHybrid over-fetches 2x the requested topK at a relaxed threshold,
// blends the lexical overlap into each score and trims the re-sorted result.
func (s *QdrantStore) SearchHybrid(ctx context.Context, name string, vector []float32, queryText string, filters Filters, topK int, minScore float64) ([]Hit, error) {
	hits, err := s.Search(ctx, name, vector, filters, topK*hybridOverFetch, minScore*hybridThresholdBias)
	if err != nil {
		return nil, err
	}
	return blendHybrid(hits, queryText, topK, minScore), nil
}

func (s *QdrantStore) DeletePoint(ctx context.Context, name, pointID string) error {
	body := map[string]interface{}{
		"points": []string{NormalizePointID(pointID)},
	}
	if err := s.doRequest(ctx, http.MethodPost, "/collections/"+name+"/points/delete?wait=true", body, nil); err != nil {
		return fmt.Errorf("failed to delete point %s: %w", pointID, err)
	}
	return nil
}

type qdrantScrollResult struct {
	Result struct {
		Points []struct {
			ID string `json:"id"`
		} `json:"points"`
		NextPageOffset interface{} `json:"next_page_offset"`
	} `json:"result"`
}

// DeleteByDocument scrolls all point ids carrying the document id and
// deletes them in one call per page.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, name string, documentID int) error {
	filter := &qdrantFilter{
		Must: []map[string]interface{}{
			{"key": "document_id", "match": map[string]interface{}{"value": documentID}},
		},
	}

	var offset interface{}
	for {
		body := map[string]interface{}{
			"filter":       filter,
			"limit":        256,
			"with_payload": false,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var page qdrantScrollResult
		if err := s.doRequest(ctx, http.MethodPost, "/collections/"+name+"/points/scroll", body, &page); err != nil {
			return fmt.Errorf("failed to scroll points for document %d: %w", documentID, err)
		}
		if len(page.Result.Points) == 0 {
			return nil
		}

		ids := make([]string, len(page.Result.Points))
		for i, p := range page.Result.Points {
			ids[i] = p.ID
		}
		del := map[string]interface{}{"points": ids}
		if err := s.doRequest(ctx, http.MethodPost, "/collections/"+name+"/points/delete?wait=true", del, nil); err != nil {
			return fmt.Errorf("failed to delete %d points for document %d: %w", len(ids), documentID, err)
		}

		if page.Result.NextPageOffset == nil {
			return nil
		}
		offset = page.Result.NextPageOffset
	}
}

type qdrantCollectionInfo struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (s *QdrantStore) CollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	var out qdrantCollectionInfo
	if err := s.doRequest(ctx, http.MethodGet, "/collections/"+name, nil, &out); err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:       name,
		PointCount: out.Result.PointsCount,
		Dimensions: out.Result.Config.Params.Vectors.Size,
		Distance:   out.Result.Config.Params.Vectors.Distance,
	}, nil
}

func (s *QdrantStore) Health(ctx context.Context) error {
	if err := s.doRequest(ctx, http.MethodGet, "/readyz", nil, nil); err != nil {
		return fmt.Errorf("qdrant not ready: %w", err)
	}
	return nil
}
