package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1500
)

const stuffTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`

// Options tune generation.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Answerer stuffs the retrieved chunks into a single prompt and asks the model.
type Answerer struct {
	model  llms.Model
	prompt prompts.PromptTemplate
	opts   Options
	logger *zap.Logger
}

var _ domain.Answerer = (*Answerer)(nil)

// New returns an answerer over model. A zero MaxTokens selects the default;
// Temperature is used as given.
func New(model llms.Model, opts Options, logger *zap.Logger) *Answerer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Answerer{
		model:  model,
		prompt: prompts.NewPromptTemplate(stuffTemplate, []string{"context", "question"}),
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

// Answer generates an answer from chunks only. Model failures are wrapped
// in domain.ErrService.
func (a *Answerer) Answer(ctx context.Context, question string, chunks []domain.SearchResult) (string, error) {
	prompt, err := a.Prompt(question, chunks)
	if err != nil {
		return "", err
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt,
		llms.WithTemperature(a.opts.Temperature),
		llms.WithMaxTokens(a.opts.MaxTokens),
	)
	if err != nil {
		if errors.Is(err, domain.ErrService) {
			return "", err
		}
		return "", fmt.Errorf("%w: generating answer: %w", domain.ErrService, err)
	}

	a.logger.Debug("answer generated",
		zap.Int("context_chunks", len(chunks)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("answer_chars", len(text)))
	return strings.TrimSpace(text), nil
}

// Prompt renders the prompt sent to the model.
func (a *Answerer) Prompt(question string, chunks []domain.SearchResult) (string, error) {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Chunk.Text)
	}
	prompt, err := a.prompt.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}
