// Package llm abstracts chat-completion providers behind a single
// interface and routes model identifiers to the provider serving them.
package llm

import (
	"context"
	"errors"
)

// ErrNoProvider is returned when no configured provider can serve any model.
var ErrNoProvider = errors.New("no LLM provider configured")

// ErrEmptyResponse is returned when a provider answers with no content.
var ErrEmptyResponse = errors.New("empty LLM response")

// Known model identifiers.
const (
	ModelGPT4oMini   = "gpt-4o-mini"
	ModelGPT5Mini    = "gpt-5-mini"
	ModelGeminiFlash = "gemini-2.5-flash"
)

// Provider completes a prompt with one of its models.
type Provider interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
	Models() []string
}
