// Package chat answers user questions against indexed documents, grounding
// every answer in retrieved chunks with clickable source references.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qms-rag/internal/indexing"
	"qms-rag/internal/llm"
	"qms-rag/internal/models"
	"qms-rag/internal/retrieval"
	"qms-rag/internal/store"
)

// Canned assistant answers. The no-context answer is tagged with the
// no_context pseudo-model; the failure answer keeps the resolved model so
// the user can pick an alternative.
const (
	noContextAnswer = "Ich konnte in den freigegebenen Dokumenten keine relevanten Informationen zu Ihrer Frage finden. " +
		"Bitte formulieren Sie die Frage um oder prüfen Sie, ob das passende Dokument bereits indexiert wurde."
	llmFailureAnswer = "Bei der Beantwortung Ihrer Frage ist ein Fehler aufgetreten. " +
		"Bitte versuchen Sie es erneut oder wählen Sie ein anderes Modell."

	excerptLimit = 200
)

// EventPublisher receives chat domain events.
type EventPublisher interface {
	Publish(event interface{})
}

// AskRequest carries one question. TopK and ScoreThreshold fall back to the
// retrieval defaults when zero.
type AskRequest struct {
	Question       string
	SessionID      string
	UserID         string
	Model          string
	TopK           int
	ScoreThreshold float64
	Filters        map[string]interface{}
	UseHybrid      bool
	MultiQuery     bool
}

// AskResponse is the answer plus everything the UI needs for citations.
type AskResponse struct {
	SessionID string                   `json:"session_id"`
	Message   models.ChatMessage       `json:"message"`
	Sources   []models.SourceReference `json:"sources"`
	ModelUsed string                   `json:"ai_model_used"`
}

// Orchestrator wires retrieval, prompting and persistence into the
// ask-question use case.
type Orchestrator struct {
	sessions  *Sessions
	messages  store.MessageStore
	retriever *retrieval.Service
	registry  *llm.Registry
	templates indexing.PromptTemplateSource
	uploads   indexing.UploadSource
	expander  *Expander
	bus       EventPublisher
	cfg       models.RAGConfig
	logger    *zap.Logger
}

func NewOrchestrator(
	sessions *Sessions,
	messages store.MessageStore,
	retriever *retrieval.Service,
	registry *llm.Registry,
	templates indexing.PromptTemplateSource,
	uploads indexing.UploadSource,
	expander *Expander,
	bus EventPublisher,
	cfg models.RAGConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		messages:  messages,
		retriever: retriever,
		registry:  registry,
		templates: templates,
		uploads:   uploads,
		expander:  expander,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
	}
}

// AskQuestion runs the full question-answering pipeline. Provider failures
// surface as a canned assistant message, not as an error.
func (o *Orchestrator) AskQuestion(ctx context.Context, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if len(question) < 3 || len(question) > 1000 {
		return nil, retrieval.ErrInvalidQuery
	}

	var session *models.ChatSession
	var err error
	if req.SessionID != "" {
		session, err = o.sessions.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
	} else {
		session, err = o.sessions.Create(ctx, req.UserID, truncate(question, 60))
		if err != nil {
			return nil, err
		}
	}

	userMsg := models.NewChatMessage(session.ID, models.RoleUser, question)
	if err := o.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	o.publishMessage(userMsg)

	queries := []string{question}
	if req.MultiQuery && o.expander != nil {
		if variants, err := o.expander.Expand(ctx, question); err != nil {
			o.logger.Warn("query expansion failed, using original query", zap.Error(err))
		} else {
			queries = variants
		}
	}

	opts := retrieval.Options{
		Filters:    retrieval.ParseFilters(req.Filters),
		TopK:       req.TopK,
		MinScore:   req.ScoreThreshold,
		VectorOnly: !req.UseHybrid,
	}
	results, err := o.retrieve(ctx, queries, opts)
	if err != nil {
		// A failing embedding or vector backend degrades to the canned
		// answer; the user message is already persisted.
		o.logger.Error("retrieval failed", zap.Error(err))
		return o.persistAssistant(ctx, session, llmFailureAnswer, nil, models.ModelNoContext)
	}

	if len(results) == 0 {
		return o.persistAssistant(ctx, session, noContextAnswer, nil, models.ModelNoContext)
	}

	docType := opts.Filters.DocumentType
	if docType == "" {
		docType = results[0].Payload.DocumentType
	}
	system := o.systemPromptFor(ctx, docType)

	topK := opts.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	maxChunks := o.cfg.MaxContextChunks
	if maxChunks <= 0 || maxChunks > topK {
		maxChunks = topK
	}
	userPrompt, used := buildUserPrompt(question, results, maxChunks, o.cfg.ContextWindowSize)

	provider, model, err := o.registry.Resolve(req.Model)
	if err != nil {
		o.logger.Error("no LLM provider available", zap.Error(err))
		return o.persistAssistant(ctx, session, llmFailureAnswer, used, req.Model)
	}

	answer, err := provider.Complete(ctx, model, system, userPrompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		o.logger.Error("LLM call failed", zap.String("model", model), zap.Error(err))
		return o.persistAssistant(ctx, session, llmFailureAnswer, used, model)
	}

	return o.persistAssistant(ctx, session, answer, used, model)
}

// retrieve runs each query variant in parallel and merges hits by point id,
// keeping the best score per chunk.
func (o *Orchestrator) retrieve(ctx context.Context, queries []string, opts retrieval.Options) ([]retrieval.SearchResult, error) {
	if len(queries) == 1 {
		return o.retriever.Search(ctx, queries[0], opts)
	}

	var mu sync.Mutex
	best := make(map[string]retrieval.SearchResult)

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			hits, err := o.retriever.Search(gctx, q, opts)
			if err != nil {
				// Expander output is unvalidated; a bad variant must
				// not sink the whole ask.
				if errors.Is(err, retrieval.ErrInvalidQuery) {
					o.logger.Warn("skipping invalid query variant", zap.String("query", q))
					return nil
				}
				return err
			}
			mu.Lock()
			for _, h := range hits {
				if prev, ok := best[h.PointID]; !ok || h.Score > prev.Score {
					best[h.PointID] = h
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]retrieval.SearchResult, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })

	topK := opts.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func (o *Orchestrator) systemPromptFor(ctx context.Context, docType string) string {
	templateText := ""
	if o.templates != nil && docType != "" {
		text, err := o.templates.ActiveTemplate(ctx, docType)
		if err != nil {
			o.logger.Warn("template lookup failed, using generic prompt",
				zap.String("document_type", docType), zap.Error(err))
		} else {
			templateText = text
		}
	}
	return selectSystemPrompt(templateText)
}

// persistAssistant stores the assistant message with its citation metadata
// and publishes the created event.
func (o *Orchestrator) persistAssistant(ctx context.Context, session *models.ChatSession, answer string, used []retrieval.SearchResult, modelUsed string) (*AskResponse, error) {
	msg := models.NewChatMessage(session.ID, models.RoleAssistant, answer)
	msg.AIModelUsed = modelUsed

	if len(used) > 0 {
		msg.SourceChunkIDs = make([]string, 0, len(used))
		msg.ConfidenceScores = make(map[string]float64, len(used))
		msg.SourceReferences = o.materializeSources(ctx, used)
		for _, r := range used {
			chunkID := r.ChunkID
			if chunkID == "" {
				chunkID = r.PointID
			}
			msg.SourceChunkIDs = append(msg.SourceChunkIDs, chunkID)
			msg.ConfidenceScores[chunkID] = models.ClampScore(r.Score)
		}
	}

	if err := o.messages.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := o.sessions.touch(ctx, session); err != nil {
		o.logger.Warn("failed to bump session timestamp",
			zap.String("session_id", session.ID), zap.Error(err))
	}
	o.publishMessage(msg)

	return &AskResponse{
		SessionID: session.ID,
		Message:   *msg,
		Sources:   msg.SourceReferences,
		ModelUsed: modelUsed,
	}, nil
}

// materializeSources resolves document titles and page preview paths for
// the retrieved chunks. Lookups that fail leave those fields empty; the
// citation itself stays intact.
func (o *Orchestrator) materializeSources(ctx context.Context, used []retrieval.SearchResult) []models.SourceReference {
	titles := map[int]string{}
	previews := map[int]map[int]string{}

	refs := make([]models.SourceReference, 0, len(used))
	for _, r := range used {
		docID := r.Payload.DocumentID
		page := 0
		if len(r.Payload.PageNumbers) > 0 {
			page = r.Payload.PageNumbers[0]
		}

		chunkID := r.ChunkID
		if chunkID == "" {
			chunkID = r.PointID
		}
		ref := models.SourceReference{
			DocumentID:     docID,
			PageNumber:     page,
			ChunkID:        chunkID,
			RelevanceScore: models.ClampScore(r.Score),
			TextExcerpt:    truncate(r.Payload.ChunkText, excerptLimit),
		}

		if o.uploads != nil {
			if _, ok := titles[docID]; !ok {
				if doc, err := o.uploads.GetDocument(ctx, docID); err == nil {
					titles[docID] = doc.Title
					pages := map[int]string{}
					if uploadPages, err := o.uploads.GetPages(ctx, docID); err == nil {
						for _, p := range uploadPages {
							pages[p.PageNumber] = p.PreviewImagePath
						}
					}
					previews[docID] = pages
				} else {
					titles[docID] = ""
				}
			}
			ref.DocumentTitle = titles[docID]
			if pages, ok := previews[docID]; ok {
				ref.PreviewImagePath = pages[page]
			}
		}

		refs = append(refs, ref)
	}
	return refs
}

func (o *Orchestrator) publishMessage(msg *models.ChatMessage) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(models.ChatMessageCreated{
		SessionID: msg.SessionID,
		MessageID: msg.ID,
		Role:      msg.Role,
		Timestamp: time.Now(),
	})
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so umlauts are never split.
	end := limit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
