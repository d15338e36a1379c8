package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qms-rag/internal/chat"
	"qms-rag/internal/indexing"
	"qms-rag/internal/retrieval"
)

type indexRequest struct {
	UploadDocumentID int    `json:"upload_document_id" binding:"required"`
	ForceReindex     bool   `json:"force_reindex"`
	UserID           string `json:"user_id"`
}

func (s *Server) handleIndex(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !s.allowed(c, userID(c, req.UserID), "index") {
		return
	}

	result, err := s.indexer.Index(c.Request.Context(), req.UploadDocumentID, req.ForceReindex)
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleReindex(c *gin.Context) {
	if !s.allowed(c, userID(c, ""), "index") {
		return
	}

	result, err := s.indexer.Reindex(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.documents.ListIndexedDocuments(c.Request.Context())
	if err != nil {
		s.failFor(c, err)
		return
	}

	if docType := c.Query("document_type"); docType != "" {
		filtered := docs[:0]
		for _, d := range docs {
			if d.DocumentType == docType {
				filtered = append(filtered, d)
			}
		}
		docs = filtered
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	total := len(docs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) handleTypeCounts(c *gin.Context) {
	docs, err := s.documents.ListIndexedDocuments(c.Request.Context())
	if err != nil {
		s.failFor(c, err)
		return
	}

	counts := map[string]int{}
	for _, d := range docs {
		counts[d.DocumentType]++
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": len(docs)})
}

type askRequest struct {
	Question        string                 `json:"question" binding:"required"`
	SessionID       string                 `json:"session_id"`
	UserID          string                 `json:"user_id"`
	Model           string                 `json:"model"`
	TopK            int                    `json:"top_k"`
	ScoreThreshold  float64                `json:"score_threshold"`
	Filters         map[string]interface{} `json:"filters"`
	UseHybridSearch *bool                  `json:"use_hybrid_search"`
	UseMultiQuery   bool                   `json:"use_multi_query"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if !s.allowed(c, userID(c, req.UserID), "ask") {
		return
	}

	useHybrid := true
	if req.UseHybridSearch != nil {
		useHybrid = *req.UseHybridSearch
	}

	resp, err := s.orchestrator.AskQuestion(c.Request.Context(), chat.AskRequest{
		Question:       req.Question,
		SessionID:      req.SessionID,
		UserID:         userID(c, req.UserID),
		Model:          req.Model,
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
		Filters:        req.Filters,
		UseHybrid:      useHybrid,
		MultiQuery:     req.UseMultiQuery,
	})
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type sessionRequest struct {
	UserID      string `json:"user_id"`
	SessionName string `json:"session_name"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session, err := s.sessions.Create(c.Request.Context(), userID(c, req.UserID), req.SessionName)
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleRenameSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	session, err := s.sessions.Rename(c.Request.Context(), c.Param("id"), req.SessionName)
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.sessions.List(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "total": len(sessions)})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.failFor(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHistory(c *gin.Context) {
	messages, err := s.sessions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

type searchRequest struct {
	Query          string                 `json:"query" binding:"required"`
	TopK           int                    `json:"top_k"`
	ScoreThreshold float64                `json:"score_threshold"`
	Filters        map[string]interface{} `json:"filters"`
	Rerank         bool                   `json:"rerank"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	results, err := s.retriever.Search(c.Request.Context(), req.Query, retrieval.Options{
		Filters:  retrieval.ParseFilters(req.Filters),
		TopK:     req.TopK,
		MinScore: req.ScoreThreshold,
		Rerank:   req.Rerank,
	})
	if err != nil {
		s.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func (s *Server) handleSystemInfo(c *gin.Context) {
	info := gin.H{
		"embedding_provider": s.embedder.Info(),
		"available_models":   s.registry.Models(),
		"collection_name":    s.cfg.CollectionName,
		"rag_config":         s.cfg.RAG,
	}
	if collInfo, err := s.vectors.CollectionInfo(c.Request.Context(), s.cfg.CollectionName); err == nil {
		info["collection"] = collInfo
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if err := s.vectors.Health(ctx); err != nil {
		checks["vector_store"] = err.Error()
		healthy = false
	} else {
		checks["vector_store"] = "ok"
	}

	if _, err := s.documents.ListIndexedDocuments(ctx); err != nil {
		checks["metadata_store"] = err.Error()
		healthy = false
	} else {
		checks["metadata_store"] = "ok"
	}

	embInfo := s.embedder.Info()
	if embInfo.Mock {
		checks["embedding_provider"] = "degraded (mock)"
	} else {
		checks["embedding_provider"] = "ok"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks, "timestamp": time.Now()})
}

// allowed runs the permission check when a service is wired. It writes the
// error response itself and reports whether the request may proceed.
func (s *Server) allowed(c *gin.Context, user, action string) bool {
	if s.permissions == nil {
		return true
	}

	var ok bool
	var err error
	switch action {
	case "index":
		ok, err = s.permissions.CanIndex(c.Request.Context(), user)
	default:
		ok, err = s.permissions.CanAsk(c.Request.Context(), user)
	}
	if err != nil {
		s.failFor(c, err)
		return false
	}
	if !ok {
		s.failFor(c, indexing.ErrPermissionDenied)
		return false
	}
	return true
}
