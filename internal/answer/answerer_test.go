package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"

	"edubot/internal/domain"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	var prompt string
	if len(messages) == 1 && len(messages[0].Parts) == 1 {
		prompt = messages[0].Parts[0].(llms.TextContent).Text
	}
	args := m.Called(prompt, opts.Temperature, opts.MaxTokens)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: args.String(0)}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func results(texts ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(texts))
	for i, t := range texts {
		out[i] = domain.SearchResult{Chunk: domain.Chunk{Text: t, Metadata: map[string]string{domain.MetaSource: "s"}}}
	}
	return out
}

func TestAnswer_UsesFakeModel(t *testing.T) {
	a := New(fake.NewFakeLLM([]string{"  Transformers use self-attention.\n"}), Options{Temperature: DefaultTemperature}, nil)

	got, err := a.Answer(context.Background(), "What do transformers use?", results("chunk"))
	require.NoError(t, err)
	assert.Equal(t, "Transformers use self-attention.", got)
}

func TestAnswer_SendsRetrievedContextAndOptions(t *testing.T) {
	m := &mockModel{}
	m.On("GenerateContent", mock.MatchedBy(func(prompt string) bool {
		return assert.Contains(t, prompt, "first chunk\n\nsecond chunk") &&
			assert.Contains(t, prompt, "Question: Which chunk?\nHelpful Answer:") &&
			assert.Contains(t, prompt, "just say that you don't know")
	}), 0.2, 1500).Return("the first", nil).Once()

	a := New(m, Options{Temperature: 0.2}, nil)
	got, err := a.Answer(context.Background(), "Which chunk?", results("first chunk", "second chunk"))
	require.NoError(t, err)

	assert.Equal(t, "the first", got)
	m.AssertExpectations(t)
}

func TestAnswer_ModelErrorIsServiceError(t *testing.T) {
	m := &mockModel{}
	m.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

	a := New(m, Options{}, nil)
	_, err := a.Answer(context.Background(), "q", results("c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrService)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestPrompt_TemplateCharactersInContextAreLiteral(t *testing.T) {
	a := New(fake.NewFakeLLM([]string{"x"}), Options{}, nil)

	prompt, err := a.Prompt("what is {{.x}}?", results("uses {{ braces }} in LaTeX"))
	require.NoError(t, err)
	assert.Contains(t, prompt, "uses {{ braces }} in LaTeX")
	assert.Contains(t, prompt, "Question: what is {{.x}}?")
}
