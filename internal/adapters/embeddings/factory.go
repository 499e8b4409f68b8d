package embeddings

import (
	"time"

	"agora/internal/adapters/config"
	"agora/pkg/errors"
)

// NewProvider builds the embedding provider from config.
// Returns ErrUnavailable when no API key is configured; the knowledge store is then disabled.
func NewProvider(cfg config.EmbeddingConfig, timeout time.Duration) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrUnavailable, "EMBEDDING_API_KEY not set")
	}
	return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions, timeout)
}
