// Package server exposes the RAG core over HTTP.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qms-rag/internal/chat"
	"qms-rag/internal/config"
	"qms-rag/internal/embeddings"
	"qms-rag/internal/indexing"
	"qms-rag/internal/llm"
	"qms-rag/internal/retrieval"
	"qms-rag/internal/store"
	"qms-rag/internal/vectorstore"
)

// Server aggregates the use cases behind the REST routes.
type Server struct {
	cfg          *config.Config
	indexer      *indexing.Service
	orchestrator *chat.Orchestrator
	sessions     *chat.Sessions
	retriever    *retrieval.Service
	registry     *llm.Registry
	embedder     embeddings.Provider
	vectors      vectorstore.Store
	documents    store.IndexedDocumentStore
	permissions  indexing.PermissionService
	logger       *zap.Logger
}

func New(
	cfg *config.Config,
	indexer *indexing.Service,
	orchestrator *chat.Orchestrator,
	sessions *chat.Sessions,
	retriever *retrieval.Service,
	registry *llm.Registry,
	embedder embeddings.Provider,
	vectors vectorstore.Store,
	documents store.IndexedDocumentStore,
	permissions indexing.PermissionService,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:          cfg,
		indexer:      indexer,
		orchestrator: orchestrator,
		sessions:     sessions,
		retriever:    retriever,
		registry:     registry,
		embedder:     embedder,
		vectors:      vectors,
		documents:    documents,
		permissions:  permissions,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api/rag")
	{
		api.POST("/documents/index", s.handleIndex)
		api.POST("/documents/:id/reindex", s.handleReindex)
		api.GET("/documents", s.handleListDocuments)
		api.GET("/documents/types/counts", s.handleTypeCounts)

		api.POST("/chat/ask", s.handleAsk)
		api.POST("/chat/sessions", s.handleCreateSession)
		api.PUT("/chat/sessions/:id", s.handleRenameSession)
		api.GET("/chat/sessions", s.handleListSessions)
		api.DELETE("/chat/sessions/:id", s.handleDeleteSession)
		api.GET("/chat/sessions/:id/history", s.handleHistory)

		api.POST("/search", s.handleSearch)
		api.GET("/system/info", s.handleSystemInfo)
		api.GET("/health", s.handleHealth)
	}
	return r
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error     string    `json:"error"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) fail(c *gin.Context, status int, message string, err error) {
	body := errorBody{Error: message, Timestamp: time.Now()}
	if err != nil {
		body.Detail = err.Error()
		if status >= http.StatusInternalServerError {
			s.logger.Error(message, zap.Error(err))
		}
	}
	c.JSON(status, body)
}

// failFor maps use-case errors onto the status policy: 400 validation,
// 404 missing session/document, 500 backend failure.
func (s *Server) failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery),
		errors.Is(err, indexing.ErrNotApproved):
		s.fail(c, http.StatusBadRequest, "validation failed", err)
	case errors.Is(err, chat.ErrSessionNotFound),
		errors.Is(err, indexing.ErrDocumentNotFound),
		errors.Is(err, store.ErrNotFound):
		s.fail(c, http.StatusNotFound, "not found", err)
	case errors.Is(err, indexing.ErrPermissionDenied):
		s.fail(c, http.StatusForbidden, "permission denied", err)
	default:
		s.fail(c, http.StatusInternalServerError, "internal error", err)
	}
}

func userID(c *gin.Context, bodyUserID string) string {
	if bodyUserID != "" {
		return bodyUserID
	}
	return c.GetHeader("X-User-ID")
}
