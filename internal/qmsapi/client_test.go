package qmsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms-rag/internal/indexing"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/documents/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"title":"SOP Schweißen","document_type":"SOP","status":"approved"}`))
	})
	mux.HandleFunc("/api/documents/7/pages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pages":[{"page_number":1,"preview_image_path":"/previews/7/1.png","vision_json":{"process_steps":[]}}]}`))
	})
	mux.HandleFunc("/api/prompts/active", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("document_type") != "SOP" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prompt_text":"Extrahiere process_steps als JSON."}`))
	})
	mux.HandleFunc("/api/users/user-1/permissions/documents.manage", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"allowed":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGetDocument(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL, "secret")
	ctx := context.Background()

	doc, err := client.GetDocument(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "SOP Schweißen", doc.Title)
	assert.Equal(t, indexing.StatusApproved, doc.Status)

	_, err = client.GetDocument(ctx, 404)
	assert.ErrorIs(t, err, indexing.ErrDocumentNotFound)
}

func TestClientGetPages(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL, "secret")

	pages, err := client.GetPages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Equal(t, "/previews/7/1.png", pages[0].PreviewImagePath)
	assert.JSONEq(t, `{"process_steps":[]}`, string(pages[0].VisionJSON))
}

func TestClientActiveTemplate(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL, "secret")
	ctx := context.Background()

	text, err := client.ActiveTemplate(ctx, "SOP")
	require.NoError(t, err)
	assert.Contains(t, text, "process_steps")

	// A missing template is empty, not an error.
	text, err = client.ActiveTemplate(ctx, "Unbekannt")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestClientPermissions(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL, "secret")
	ctx := context.Background()

	ok, err := client.CanIndex(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown users are denied, not errored.
	ok, err = client.CanAsk(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
}
