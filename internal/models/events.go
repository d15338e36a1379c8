package models

import "time"

// Domain events published on the internal event bus. Subscribers must not
// assume delivery ordering across documents or sessions.

type DocumentIndexed struct {
	UploadDocumentID int       `json:"upload_document_id"`
	ChunkCount       int       `json:"chunk_count"`
	Timestamp        time.Time `json:"timestamp"`
}

type DocumentReindexed struct {
	UploadDocumentID int       `json:"upload_document_id"`
	OldChunkCount    int       `json:"old_chunk_count"`
	NewChunkCount    int       `json:"new_chunk_count"`
	Timestamp        time.Time `json:"timestamp"`
}

type ChatMessageCreated struct {
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}
