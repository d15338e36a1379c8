package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qms-rag/internal/models"
	"qms-rag/internal/store"
)

// ErrSessionNotFound is returned when a session id does not resolve.
var ErrSessionNotFound = errors.New("chat session not found")

// Sessions bundles the chat session use cases.
type Sessions struct {
	sessions store.SessionStore
	messages store.MessageStore
}

func NewSessions(sessions store.SessionStore, messages store.MessageStore) *Sessions {
	return &Sessions{sessions: sessions, messages: messages}
}

func (s *Sessions) Create(ctx context.Context, userID, name string) (*models.ChatSession, error) {
	if name == "" {
		name = "Neue Unterhaltung"
	}
	session := models.NewChatSession(userID, name)
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *Sessions) Get(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *Sessions) Rename(ctx context.Context, sessionID, name string) (*models.ChatSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Name = name
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to rename session: %w", err)
	}
	return session, nil
}

func (s *Sessions) List(ctx context.Context, userID string) ([]models.ChatSession, error) {
	return s.sessions.ListSessions(ctx, userID)
}

// Delete removes the session and all its messages.
func (s *Sessions) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.DeleteSession(ctx, sessionID)
}

// History returns the session's messages in chronological order.
func (s *Sessions) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.messages.GetMessages(ctx, sessionID)
}

// touch bumps the session's last-message timestamp.
func (s *Sessions) touch(ctx context.Context, session *models.ChatSession) error {
	session.LastMessageAt = time.Now()
	return s.sessions.PutSession(ctx, session)
}
