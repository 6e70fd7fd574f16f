package answer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"edubot/internal/domain"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 60 * time.Second
)

// ModelConfig configures the OpenAI-compatible chat model.
type ModelConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LazyModel is an llms.Model that creates the OpenAI client on first use, so
// a missing API key is reported by the call that needs it.
type LazyModel struct {
	cfg ModelConfig

	mu  sync.Mutex
	llm *openai.LLM
}

var _ llms.Model = (*LazyModel)(nil)

func NewOpenAIModel(cfg ModelConfig) *LazyModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LazyModel{cfg: cfg}
}

func (m *LazyModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	llm, err := m.client()
	if err != nil {
		return nil, err
	}
	return llm.GenerateContent(ctx, messages, options...)
}

func (m *LazyModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *LazyModel) client() (*openai.LLM, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.llm != nil {
		return m.llm, nil
	}
	if m.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %w: set OPENAI_API_KEY in .env or the secrets file", domain.ErrService, domain.ErrMissingAPIKey)
	}
	llm, err := openai.New(
		openai.WithBaseURL(m.cfg.BaseURL),
		openai.WithToken(m.cfg.APIKey),
		openai.WithModel(m.cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: m.cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenAI client: %w", domain.ErrService, err)
	}
	m.llm = llm
	return llm, nil
}
