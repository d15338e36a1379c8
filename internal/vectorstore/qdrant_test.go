package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant implements just enough of the Qdrant REST surface for the
// adapter tests.
type fakeQdrant struct {
	t           *testing.T
	collections map[string]int
	upserted    []qdrantPoint
	deleted     []string
	scrollPages [][]string
	scrollCalls int
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		dim, ok := f.collections[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"result":{"points_count":%d,"config":{"params":{"vectors":{"size":%d,"distance":"Cosine"}}}}}`,
			len(f.upserted), dim)
	})

	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "Cosine", body.Vectors.Distance)
		f.collections[r.PathValue("name")] = body.Vectors.Size
		fmt.Fprint(w, `{"result":true}`)
	})

	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.upserted = append(f.upserted, body.Points...)
		fmt.Fprint(w, `{"result":{"status":"completed"}}`)
	})

	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, true, body["with_payload"])
		fmt.Fprint(w, `{"result":[
			{"id":"11111111-1111-5111-8111-111111111111","score":0.92,"payload":{"document_id":7,"document_type":"SOP","page_numbers":[1],"chunk_text":"Schritt 6","chunk_type":"process_step"}},
			{"id":"22222222-2222-5222-8222-222222222222","score":0.81,"payload":{"document_id":7,"document_type":"SOP","page_numbers":[2],"chunk_text":"Anhang","chunk_type":"text"}}
		]}`)
	})

	mux.HandleFunc("POST /collections/{name}/points/scroll", func(w http.ResponseWriter, r *http.Request) {
		page := f.scrollPages[f.scrollCalls]
		f.scrollCalls++
		points := make([]map[string]string, len(page))
		for i, id := range page {
			points[i] = map[string]string{"id": id}
		}
		next := "null"
		if f.scrollCalls < len(f.scrollPages) {
			next = fmt.Sprintf("%d", f.scrollCalls)
		}
		out := map[string]interface{}{"result": map[string]interface{}{"points": points}}
		data, _ := json.Marshal(out)
		// Patch next_page_offset in manually to keep null vs number distinct.
		data = data[:len(data)-2]
		fmt.Fprintf(w, `%s,"next_page_offset":%s}}`, string(data), next)
	})

	mux.HandleFunc("POST /collections/{name}/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []string `json:"points"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.deleted = append(f.deleted, body.Points...)
		fmt.Fprint(w, `{"result":{"status":"completed"}}`)
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *QdrantStore) {
	f := &fakeQdrant{t: t, collections: map[string]int{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, NewQdrantStore(srv.URL)
}

func TestQdrantEnsureCollection(t *testing.T) {
	f, s := newFakeQdrant(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "qms_documents", 768))
	assert.Equal(t, 768, f.collections["qms_documents"])

	// Second call is a no-op against the existing collection.
	require.NoError(t, s.EnsureCollection(ctx, "qms_documents", 768))
	assert.Len(t, f.collections, 1)
}

func TestQdrantUpsertBatchNormalizesIDs(t *testing.T) {
	f, s := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "qms_documents", 3))

	n, err := s.UpsertBatch(ctx, "qms_documents", []Point{
		{ID: "doc_7_page_1_step_6", Vector: []float32{1, 0, 0}, Payload: Payload{DocumentID: 7}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.upserted, 1)
	assert.Equal(t, NormalizePointID("doc_7_page_1_step_6"), f.upserted[0].ID)
}

func TestQdrantSearch(t *testing.T) {
	_, s := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "qms_documents", 3))

	hits, err := s.Search(ctx, "qms_documents", []float32{1, 0, 0}, Filters{DocumentID: intPtr(7)}, 5, 0.7)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0.92, hits[0].Score)
	assert.Equal(t, "Schritt 6", hits[0].Payload.ChunkText)
	assert.Equal(t, 7, hits[0].Payload.DocumentID)
}

func TestQdrantDeleteByDocumentScrolls(t *testing.T) {
	f, s := newFakeQdrant(t)
	f.scrollPages = [][]string{
		{"11111111-1111-5111-8111-111111111111", "22222222-2222-5222-8222-222222222222"},
		{"33333333-3333-5333-8333-333333333333"},
	}
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "qms_documents", 3))

	require.NoError(t, s.DeleteByDocument(ctx, "qms_documents", 7))
	assert.Equal(t, 2, f.scrollCalls)
	assert.Len(t, f.deleted, 3)
}

func TestQdrantHealth(t *testing.T) {
	_, s := newFakeQdrant(t)
	require.NoError(t, s.Health(context.Background()))

	down := NewQdrantStore("http://127.0.0.1:1")
	assert.Error(t, down.Health(context.Background()))
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(Filters{}))

	qf := buildFilter(Filters{DocumentID: intPtr(7), DocumentType: "SOP", PageNumbers: []int{1, 2}})
	require.NotNil(t, qf)
	assert.Len(t, qf.Must, 3)
}
