package chat

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"qms-rag/internal/indexing"
)

// CachedTemplates fronts a PromptTemplateSource with a small LRU cache.
// Template rows change rarely; chat reads them on every question.
type CachedTemplates struct {
	source indexing.PromptTemplateSource
	cache  *lru.Cache[string, string]
}

func NewCachedTemplates(source indexing.PromptTemplateSource, size int) (*CachedTemplates, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedTemplates{source: source, cache: cache}, nil
}

func (c *CachedTemplates) ActiveTemplate(ctx context.Context, documentType string) (string, error) {
	if text, ok := c.cache.Get(documentType); ok {
		return text, nil
	}
	text, err := c.source.ActiveTemplate(ctx, documentType)
	if err != nil {
		return "", err
	}
	c.cache.Add(documentType, text)
	return text, nil
}

// Invalidate drops one document type from the cache, for template updates.
func (c *CachedTemplates) Invalidate(documentType string) {
	c.cache.Remove(documentType)
}
