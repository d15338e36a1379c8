package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"qms-rag/internal/llm"
)

// maxQueryVariants caps the expansion including the original query.
const maxQueryVariants = 5

const expansionPrompt = "Formuliere die folgende Frage in bis zu vier alternative Suchanfragen um. " +
	"Behalte Fachbegriffe bei. Antworte nur mit einer nummerierten Liste.\n\nFrage: %s"

var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// Expander proposes query variants through an LLM. Callers degrade to the
// original query when expansion fails.
type Expander struct {
	registry *llm.Registry
	model    string
}

func NewExpander(registry *llm.Registry, model string) *Expander {
	return &Expander{registry: registry, model: model}
}

// Expand returns up to maxQueryVariants deduplicated queries, the original
// always first. An LLM failure is returned to the caller.
func (e *Expander) Expand(ctx context.Context, query string) ([]string, error) {
	provider, model, err := e.registry.Resolve(e.model)
	if err != nil {
		return nil, fmt.Errorf("query expansion unavailable: %w", err)
	}

	response, err := provider.Complete(ctx, model, "", fmt.Sprintf(expansionPrompt, query))
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	variants := []string{query}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, line := range strings.Split(response, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		variant := strings.TrimSpace(m[1])
		key := strings.ToLower(variant)
		if variant == "" || seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, variant)
		if len(variants) >= maxQueryVariants {
			break
		}
	}
	return variants, nil
}
