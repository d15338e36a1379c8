package llm

import (
	"go.uber.org/zap"
)

// Registry routes model identifiers to providers, substituting a fallback
// model when the requested one is unavailable.
type Registry struct {
	providers []Provider
	byModel   map[string]Provider
	fallback  string
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger, providers ...Provider) *Registry {
	r := &Registry{byModel: make(map[string]Provider), logger: logger}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers = append(r.providers, p)
		for _, m := range p.Models() {
			if _, taken := r.byModel[m]; !taken {
				r.byModel[m] = p
			}
			if r.fallback == "" {
				r.fallback = m
			}
		}
	}
	return r
}

// Available reports whether any provider is configured.
func (r *Registry) Available() bool {
	return len(r.providers) > 0
}

// Models lists every servable model identifier.
func (r *Registry) Models() []string {
	var models []string
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}
	return models
}

// Resolve returns the provider for model and the model actually used. An
// unknown or unservable model falls back to the first available one; the
// substitution is logged so answer metadata stays honest.
func (r *Registry) Resolve(model string) (Provider, string, error) {
	if p, ok := r.byModel[model]; ok {
		return p, model, nil
	}
	if r.fallback == "" {
		return nil, "", ErrNoProvider
	}
	r.logger.Warn("requested model unavailable, substituting",
		zap.String("requested", model),
		zap.String("substituted", r.fallback))
	return r.byModel[r.fallback], r.fallback, nil
}
