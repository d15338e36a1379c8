// Package store persists indexing metadata and chat history in Badger.
// Each record family lives under its own key prefix; cross-family
// consistency (document -> chunks, session -> messages) is enforced by
// cascade deletes inside a single transaction.
package store

import (
	"context"
	"errors"

	"qms-rag/internal/models"
)

// ErrNotFound is returned when a lookup key has no record.
var ErrNotFound = errors.New("record not found")

// IndexedDocumentStore tracks which upload documents have been indexed.
type IndexedDocumentStore interface {
	PutIndexedDocument(ctx context.Context, doc *models.IndexedDocument) error
	GetIndexedDocument(ctx context.Context, id string) (*models.IndexedDocument, error)
	GetIndexedDocumentByUpload(ctx context.Context, uploadDocumentID int) (*models.IndexedDocument, error)
	ListIndexedDocuments(ctx context.Context) ([]models.IndexedDocument, error)
	DeleteIndexedDocument(ctx context.Context, id string) error
}

// ChunkStore holds the chunk rows backing the vector points of a document.
// Chunks are replaced wholesale: indexing never updates a chunk in place.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, indexedDocumentID string, chunks []models.DocumentChunk) error
	GetChunks(ctx context.Context, indexedDocumentID string) ([]models.DocumentChunk, error)
	GetChunkByChunkID(ctx context.Context, chunkID string) (*models.DocumentChunk, error)
	GetChunkByPointID(ctx context.Context, pointID string) (*models.DocumentChunk, error)
	DeleteChunks(ctx context.Context, indexedDocumentID string) error
}

// SessionStore manages chat sessions. Deleting a session removes its
// messages in the same transaction.
type SessionStore interface {
	PutSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	ListSessions(ctx context.Context, userID string) ([]models.ChatSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// MessageStore appends and reads the message history of a session.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
}
