package embeddings

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qms-rag/internal/config"
)

const probeTimeout = 10 * time.Second

// NewFromConfig selects the embedding backend. An explicit provider in the
// configuration wins; "auto" probes openai, then google, then local, each
// with a trivial call. When nothing answers, the deterministic mock provider
// takes over so indexing and retrieval stay functional in degraded mode.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) Provider {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if p, err := newOpenAI(cfg); err == nil {
			return p
		} else {
			logger.Warn("openai embedding provider unavailable, falling back to mock", zap.Error(err))
		}
	case config.ProviderGoogle:
		if p, err := newGoogle(ctx, cfg); err == nil {
			return p
		} else {
			logger.Warn("google embedding provider unavailable, falling back to mock", zap.Error(err))
		}
	case config.ProviderLocal:
		local := NewLocalProvider(cfg.OllamaURL, localModel(cfg))
		if err := probe(ctx, local); err == nil {
			return local
		} else {
			logger.Warn("local embedding provider unavailable, falling back to mock", zap.Error(err))
		}
	default: // auto
		if p, err := newOpenAI(cfg); err == nil {
			if perr := probe(ctx, p); perr == nil {
				logger.Info("embedding provider selected", zap.String("provider", "openai"), zap.String("model", p.Model()))
				return p
			} else {
				logger.Warn("openai embedding probe failed", zap.Error(perr))
			}
		}
		if p, err := newGoogle(ctx, cfg); err == nil {
			if perr := probe(ctx, p); perr == nil {
				logger.Info("embedding provider selected", zap.String("provider", "google"), zap.String("model", p.Model()))
				return p
			} else {
				logger.Warn("google embedding probe failed", zap.Error(perr))
			}
		}
		local := NewLocalProvider(cfg.OllamaURL, localModel(cfg))
		if err := probe(ctx, local); err == nil {
			logger.Info("embedding provider selected", zap.String("provider", "local"), zap.String("model", local.Model()))
			return local
		} else {
			logger.Warn("local embedding probe failed", zap.Error(err))
		}
	}

	mock := NewMockProvider(localModel(cfg), NewLocalProvider(cfg.OllamaURL, localModel(cfg)).Dimensions())
	logger.Warn("no embedding backend reachable, running degraded with mock embeddings",
		zap.String("model", mock.Model()))
	return mock
}

func newOpenAI(cfg config.EmbeddingConfig) (*OpenAIProvider, error) {
	model := cfg.OpenAIModel
	if model == "" {
		model = cfg.Model
	}
	return NewOpenAIProvider(cfg.OpenAIKey(), model)
}

func newGoogle(ctx context.Context, cfg config.EmbeddingConfig) (*GoogleProvider, error) {
	model := cfg.GoogleModel
	if model == "" {
		model = cfg.Model
	}
	return NewGoogleProvider(ctx, cfg.GoogleAPIKey, model)
}

func localModel(cfg config.EmbeddingConfig) string {
	if cfg.Provider == config.ProviderLocal && cfg.Model != "" {
		return cfg.Model
	}
	return ""
}

func probe(ctx context.Context, p Provider) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := p.Embed(ctx, "ping")
	return err
}
