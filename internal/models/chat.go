package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelNoContext tags assistant messages that were answered without calling
// an LLM because retrieval produced nothing.
const ModelNoContext = "no_context"

// ChatSession is an ordered conversation between one user and the chat
// orchestrator. Deleting a session cascades to its messages.
type ChatSession struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"session_name"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	Active        bool      `json:"active"`
}

func NewChatSession(userID, name string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		CreatedAt:     now,
		LastMessageAt: now,
		Active:        true,
	}
}

// SourceReference points a citation in an assistant answer back to the chunk
// and page preview it was grounded on.
type SourceReference struct {
	DocumentID       int     `json:"document_id"`
	DocumentTitle    string  `json:"document_title"`
	PageNumber       int     `json:"page_number"`
	ChunkID          string  `json:"chunk_id"`
	PreviewImagePath string  `json:"preview_image_path"`
	RelevanceScore   float64 `json:"relevance_score"`
	TextExcerpt      string  `json:"text_excerpt"`
}

// ClampScore forces a relevance score into [0,1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// ChatMessage is one turn of a session. User messages carry no source
// references; assistant messages record the model that actually answered so
// a session may mix models.
type ChatMessage struct {
	ID               string             `json:"id"`
	SessionID        string             `json:"session_id"`
	Role             string             `json:"role"`
	Content          string             `json:"content"`
	SourceChunkIDs   []string           `json:"source_chunk_ids,omitempty"`
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`
	SourceReferences []SourceReference  `json:"source_references,omitempty"`
	AIModelUsed      string             `json:"ai_model_used,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

func NewChatMessage(sessionID, role, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
