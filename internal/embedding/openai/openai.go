package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"edubot/internal/domain"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultTimeout   = 30 * time.Second
	DefaultBatchSize = 32
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid embedder configuration")

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
}

// Validate validates the configuration. An empty API key is allowed here;
// it is reported when the first request is made.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Embedder embeds text through an OpenAI-compatible /embeddings endpoint.
// The underlying client is created on first use.
type Embedder struct {
	config Config

	mu       sync.Mutex
	embedder *embeddings.EmbedderImpl
}

var _ domain.Embedder = (*Embedder)(nil)

// New creates an embedder. It performs no network calls.
func New(cfg Config) (*Embedder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Embedder{config: cfg}, nil
}

// Name identifies the model so an index built with another one is detected.
func (e *Embedder) Name() string { return "openai:" + e.config.Model }

// EmbedDocuments embeds texts in batches.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	impl, err := e.client()
	if err != nil {
		return nil, err
	}
	vectors, err := impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding %d texts: %w", domain.ErrService, len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrService, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single question.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	impl, err := e.client()
	if err != nil {
		return nil, err
	}
	vector, err := impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", domain.ErrService, err)
	}
	return vector, nil
}

func (e *Embedder) client() (*embeddings.EmbedderImpl, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.embedder != nil {
		return e.embedder, nil
	}
	if e.config.APIKey == "" {
		return nil, fmt.Errorf("%w: %w: set OPENAI_API_KEY in .env or the secrets file", domain.ErrService, domain.ErrMissingAPIKey)
	}
	llm, err := openai.New(
		openai.WithBaseURL(e.config.BaseURL),
		openai.WithToken(e.config.APIKey),
		openai.WithEmbeddingModel(e.config.Model),
		openai.WithHTTPClient(&http.Client{Timeout: e.config.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenAI client: %w", domain.ErrService, err)
	}
	impl, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(e.config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("%w: creating embedder: %w", domain.ErrService, err)
	}
	e.embedder = impl
	return impl, nil
}
