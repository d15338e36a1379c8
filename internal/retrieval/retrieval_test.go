package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qms-rag/internal/embeddings"
	"qms-rag/internal/models"
	"qms-rag/internal/vectorstore"
)

type mapResolver map[string]string

func (r mapResolver) GetChunkByPointID(ctx context.Context, pointID string) (*models.DocumentChunk, error) {
	chunkID, ok := r[pointID]
	if !ok {
		return nil, fmt.Errorf("no chunk for point %s", pointID)
	}
	return &models.DocumentChunk{ChunkID: chunkID, PointID: pointID}, nil
}

// newTestService indexes the given chunk texts with the mock embedder so
// that a query equal to a chunk's text embeds to the identical vector.
func newTestService(t *testing.T, texts map[string]string) (*Service, context.Context) {
	t.Helper()
	ctx := context.Background()
	embedder := embeddings.NewMockProvider("all-minilm", 32)
	store := vectorstore.NewMemoryStore()
	require.NoError(t, store.EnsureCollection(ctx, "qms_documents", 32))

	resolver := mapResolver{}
	var points []vectorstore.Point
	for chunkID, text := range texts {
		vec, err := embedder.Embed(ctx, text)
		require.NoError(t, err)
		points = append(points, vectorstore.Point{
			ID:     chunkID,
			Vector: vec.Values,
			Payload: vectorstore.Payload{
				DocumentID:   1,
				DocumentType: "SOP",
				PageNumbers:  []int{1},
				ChunkText:    text,
				ChunkType:    "text",
			},
		})
		resolver[vectorstore.NormalizePointID(chunkID)] = chunkID
	}
	_, err := store.UpsertBatch(ctx, "qms_documents", points)
	require.NoError(t, err)

	return NewService(embedder, store, resolver, "qms_documents", zap.NewNop()), ctx
}

func TestSearchValidatesQuery(t *testing.T) {
	s, ctx := newTestService(t, nil)

	_, err := s.Search(ctx, "ab", Options{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Search(ctx, "  a  ", Options{})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = s.Search(ctx, strings.Repeat("x", 1001), Options{})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSearchSelfRetrieval(t *testing.T) {
	s, ctx := newTestService(t, map[string]string{
		"doc_1_page_1_step_6":         "Schritt 6: Fehlerprüfung. Prüfe den Fehler am Bauteil.",
		"doc_1_page_1_safety_warning": "Kann Augenreizung verursachen.",
		"doc_1_page_1_storage":        "Lagerung: Kühl und trocken lagern.",
	})

	results, err := s.Search(ctx, "Schritt 6: Fehlerprüfung. Prüfe den Fehler am Bauteil.", Options{MinScore: 0.1})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc_1_page_1_step_6", results[0].ChunkID)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestSearchResolvesChunkIDs(t *testing.T) {
	s, ctx := newTestService(t, map[string]string{
		"doc_1_page_1_text": "Allgemeine Hinweise zur Dokumentenlenkung.",
	})

	results, err := s.Search(ctx, "Allgemeine Hinweise zur Dokumentenlenkung.", Options{MinScore: 0.1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc_1_page_1_text", results[0].ChunkID)
	assert.Equal(t, vectorstore.NormalizePointID("doc_1_page_1_text"), results[0].PointID)
	assert.Equal(t, "Allgemeine Hinweise zur Dokumentenlenkung.", results[0].Payload.ChunkText)
}

func TestRerankTrimsAndReweights(t *testing.T) {
	texts := map[string]string{}
	for i := 0; i < 10; i++ {
		texts[fmt.Sprintf("doc_1_page_1_text_%d", i)] = fmt.Sprintf("Absatz Nummer %d über allgemeine Abläufe.", i)
	}
	texts["doc_1_page_1_safety"] = "Sicherheitswarnung: Kann Augenreizung verursachen."
	s, ctx := newTestService(t, texts)

	results, err := s.Search(ctx, "Sicherheitswarnung: Kann Augenreizung verursachen.", Options{TopK: 3, MinScore: 0.01, Rerank: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)
	// The matching chunk wins; 0.6 vector + 0.4 text relevance, both at 1.0.
	assert.Equal(t, "doc_1_page_1_safety", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestByDocumentTypeFilter(t *testing.T) {
	s, ctx := newTestService(t, map[string]string{
		"doc_1_page_1_text": "Prüfanweisung für die Endkontrolle.",
	})

	results, err := s.ByDocumentType(ctx, "Prüfanweisung für die Endkontrolle.", "SOP", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	results, err = s.ByDocumentType(ctx, "Prüfanweisung für die Endkontrolle.", "Datenblatt", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestParseFilters(t *testing.T) {
	f := ParseFilters(map[string]interface{}{
		"document_id":   float64(7),
		"document_type": "SOP",
		"page_numbers":  []interface{}{float64(1), float64(2)},
		"unknown":       "ignored",
	})
	require.NotNil(t, f.DocumentID)
	assert.Equal(t, 7, *f.DocumentID)
	assert.Equal(t, "SOP", f.DocumentType)
	assert.Equal(t, []int{1, 2}, f.PageNumbers)

	empty := ParseFilters(map[string]interface{}{})
	assert.True(t, empty.Empty())
}
