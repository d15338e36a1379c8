package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qms-rag/internal/chunking"
	"qms-rag/internal/embeddings"
	"qms-rag/internal/models"
	"qms-rag/internal/store"
	"qms-rag/internal/vectorstore"
)

// embedBatchSize bounds a single embedding request. Batches run
// sequentially so chunk order is preserved end to end.
const embedBatchSize = 32

// EventPublisher receives domain events from the pipeline.
type EventPublisher interface {
	Publish(event interface{})
}

// MetadataStore is the slice of the metadata store the pipeline writes to.
type MetadataStore interface {
	store.IndexedDocumentStore
	store.ChunkStore
}

// Service runs the indexing and re-index use cases. Runs for the same
// upload document are serialized by a per-document mutex; distinct
// documents index in parallel.
type Service struct {
	uploads    UploadSource
	prompts    PromptTemplateSource
	engine     *chunking.Engine
	embedder   embeddings.Provider
	vectors    vectorstore.Store
	meta       MetadataStore
	bus        EventPublisher
	collection string
	logger     *zap.Logger

	locks keyedMutex
}

func NewService(
	uploads UploadSource,
	prompts PromptTemplateSource,
	engine *chunking.Engine,
	embedder embeddings.Provider,
	vectors vectorstore.Store,
	meta MetadataStore,
	bus EventPublisher,
	collection string,
	logger *zap.Logger,
) *Service {
	return &Service{
		uploads:    uploads,
		prompts:    prompts,
		engine:     engine,
		embedder:   embedder,
		vectors:    vectors,
		meta:       meta,
		bus:        bus,
		collection: collection,
		logger:     logger,
	}
}

// Index ingests one approved upload document. When the document is already
// indexed and force is false, the run is skipped. With force it behaves
// like a re-index.
func (s *Service) Index(ctx context.Context, uploadDocumentID int, force bool) (*Result, error) {
	unlock := s.locks.lock(uploadDocumentID)
	defer unlock()

	existing, err := s.meta.GetIndexedDocumentByUpload(ctx, uploadDocumentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check index state: %w", err)
	}
	if existing != nil && !force {
		return &Result{
			IndexedDocumentID: existing.ID,
			UploadDocumentID:  uploadDocumentID,
			DocumentType:      existing.DocumentType,
			ChunkCount:        existing.TotalChunks,
			Skipped:           true,
		}, nil
	}

	result, err := s.run(ctx, uploadDocumentID, existing)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(models.DocumentIndexed{
		UploadDocumentID: uploadDocumentID,
		ChunkCount:       result.ChunkCount,
		Timestamp:        time.Now(),
	})
	return result, nil
}

// Reindex re-runs the pipeline for an already indexed document, repairing
// any partial state a failed run left behind.
func (s *Service) Reindex(ctx context.Context, indexedDocumentID string) (*Result, error) {
	existing, err := s.meta.GetIndexedDocument(ctx, indexedDocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("indexed document %s: %w", indexedDocumentID, ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to load indexed document: %w", err)
	}

	unlock := s.locks.lock(existing.UploadDocumentID)
	defer unlock()

	oldCount := existing.TotalChunks
	result, err := s.run(ctx, existing.UploadDocumentID, existing)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(models.DocumentReindexed{
		UploadDocumentID: existing.UploadDocumentID,
		OldChunkCount:    oldCount,
		NewChunkCount:    result.ChunkCount,
		Timestamp:        time.Now(),
	})
	return result, nil
}

// run executes pipeline steps 1 through 8. The existing row, when present,
// keeps its id so re-index updates in place.
func (s *Service) run(ctx context.Context, uploadDocumentID int, existing *models.IndexedDocument) (*Result, error) {
	doc, err := s.uploads.GetDocument(ctx, uploadDocumentID)
	if err != nil {
		return nil, fmt.Errorf("upload document %d: %w", uploadDocumentID, ErrDocumentNotFound)
	}
	if doc.Status != StatusApproved {
		return nil, fmt.Errorf("upload document %d has status %q: %w", uploadDocumentID, doc.Status, ErrNotApproved)
	}

	pages, err := s.uploads.GetPages(ctx, uploadDocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages for document %d: %w", uploadDocumentID, err)
	}

	prompt := ""
	if s.prompts != nil {
		prompt, err = s.prompts.ActiveTemplate(ctx, doc.DocumentType)
		if err != nil {
			s.logger.Warn("prompt template lookup failed, dispatching on JSON only",
				zap.String("document_type", doc.DocumentType), zap.Error(err))
			prompt = ""
		}
	}

	chunkPages := make([]chunking.Page, 0, len(pages))
	for _, p := range pages {
		chunkPages = append(chunkPages, chunking.Page{Number: p.PageNumber, VisionJSON: p.VisionJSON})
	}
	chunks := s.engine.ChunkPages(uploadDocumentID, doc.DocumentType, prompt, chunkPages)

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Idempotency: wipe prior state before inserting.
	if err := s.vectors.EnsureCollection(ctx, s.collection, s.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	if err := s.vectors.DeleteByDocument(ctx, s.collection, uploadDocumentID); err != nil {
		return nil, fmt.Errorf("failed to delete prior vector points: %w", err)
	}

	indexedID := uuid.NewString()
	indexedAt := time.Now()
	if existing != nil {
		indexedID = existing.ID
		indexedAt = existing.IndexedAt
		if err := s.meta.DeleteChunks(ctx, indexedID); err != nil {
			return nil, fmt.Errorf("failed to delete prior chunk rows: %w", err)
		}
	}

	if len(chunks) > 0 {
		points := make([]vectorstore.Point, len(chunks))
		for i, c := range chunks {
			points[i] = vectorstore.Point{
				ID:     c.PointID,
				Vector: vectors[i].Values,
				Payload: vectorstore.Payload{
					DocumentID:       uploadDocumentID,
					DocumentType:     doc.DocumentType,
					PageNumbers:      c.Metadata.PageNumbers,
					ChunkText:        c.Text,
					ChunkType:        string(c.Metadata.ChunkType),
					HeadingHierarchy: c.Metadata.HeadingHierarchy,
					TokenCount:       c.Metadata.TokenCount,
				},
			}
		}
		inserted, err := s.vectors.UpsertBatch(ctx, s.collection, points)
		if err != nil {
			return nil, fmt.Errorf("vector upsert failed after %d points: %w", inserted, err)
		}
	}

	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].IndexedDocumentID = indexedID
	}
	if err := s.meta.ReplaceChunks(ctx, indexedID, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunk rows: %w", err)
	}

	row := &models.IndexedDocument{
		ID:               indexedID,
		UploadDocumentID: uploadDocumentID,
		DocumentType:     doc.DocumentType,
		CollectionName:   s.collection,
		TotalChunks:      len(chunks),
		EmbeddingModel:   s.embedder.Model(),
		IndexedAt:        indexedAt,
		UpdatedAt:        time.Now(),
	}
	if err := s.meta.PutIndexedDocument(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store indexed document: %w", err)
	}

	s.logger.Info("document indexed",
		zap.Int("upload_document_id", uploadDocumentID),
		zap.String("document_type", doc.DocumentType),
		zap.Int("chunks", len(chunks)))

	return &Result{
		IndexedDocumentID: indexedID,
		UploadDocumentID:  uploadDocumentID,
		DocumentType:      doc.DocumentType,
		ChunkCount:        len(chunks),
	}, nil
}

func (s *Service) embedChunks(ctx context.Context, chunks []models.DocumentChunk) ([]models.EmbeddingVector, error) {
	vectors := make([]models.EmbeddingVector, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch starting at chunk %d failed: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// keyedMutex hands out one mutex per upload document id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (k *keyedMutex) lock(id int) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
