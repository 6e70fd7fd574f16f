package embedding

import (
	"fmt"
	"time"

	"edubot/internal/config"
	"edubot/internal/domain"
	"edubot/internal/embedding/hashing"
	"edubot/internal/embedding/openai"
)

// New selects the embedder named by cfg.Type. apiKey is only used by
// remote embedders and may be empty.
func New(cfg config.EmbedderConfig, apiKey string) (domain.Embedder, error) {
	switch cfg.Type {
	case "openai":
		return openai.New(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKey:    apiKey,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
	case "hashing":
		return hashing.New(cfg.Hashing.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder type: %s", cfg.Type)
	}
}
