// Package embeddings provides the embedding provider contract and the
// OpenAI, Google and local implementations behind it.
package embeddings

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"qms-rag/internal/models"
)

var (
	// ErrRateLimited marks provider rejections the caller may retry with
	// backoff.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrProviderUnavailable marks transport or authorization failures.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// Info describes the active provider for diagnostics.
type Info struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Mock       bool   `json:"mock"`
}

// Provider produces embedding vectors for texts. Implementations must be
// safe for concurrent use and must preserve input order in EmbedBatch.
type Provider interface {
	Embed(ctx context.Context, text string) (models.EmbeddingVector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]models.EmbeddingVector, error)
	Dimensions() int
	Model() string
	Info() Info
}

// prepareTexts pads empty inputs to a single space and truncates long inputs
// to the provider's character cap. The cap sits well below real token limits
// so a pathological chunk cannot fail the whole batch.
func prepareTexts(texts []string, maxChars int) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			t = " "
		}
		if maxChars > 0 && len(t) > maxChars {
			// Back off to a rune boundary so the cut never produces
			// invalid UTF-8.
			end := maxChars
			for end > 0 && !utf8.RuneStart(t[end]) {
				end--
			}
			t = t[:end]
		}
		out[i] = t
	}
	return out
}
