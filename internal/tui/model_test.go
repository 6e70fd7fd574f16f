package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/domain"
	"edubot/internal/service"
	"edubot/internal/session"
)

type stubSession struct {
	state     session.State
	fields    []string
	uploads   []domain.Upload
	report    *domain.IngestReport
	ingestErr error
	answer    *domain.Answer
	askErr    error
}

func (s *stubSession) IngestURLs(_ context.Context, fields []string, progress service.ProgressFunc) (*domain.IngestReport, error) {
	s.fields = fields
	return s.ingest(progress)
}

func (s *stubSession) IngestUploads(_ context.Context, uploads []domain.Upload, progress service.ProgressFunc) (*domain.IngestReport, error) {
	s.uploads = uploads
	return s.ingest(progress)
}

func (s *stubSession) ingest(progress service.ProgressFunc) (*domain.IngestReport, error) {
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	for _, st := range []service.Stage{service.StageLoaded, service.StageSplit, service.StageIndexed} {
		progress(st)
	}
	return s.report, nil
}

func (s *stubSession) Ask(context.Context, string) (*domain.Answer, error) {
	return s.answer, s.askErr
}

func (s *stubSession) State() session.State { return s.state }

func newModel(s *stubSession) Model {
	m := New(context.Background(), s)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	case "ctrl+f":
		return tea.KeyMsg{Type: tea.KeyCtrlF}
	case "ctrl+e":
		return tea.KeyMsg{Type: tea.KeyCtrlE}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// drainIngest feeds every queued ingestion event back into the model.
func drainIngest(t *testing.T, m Model) (Model, []service.Stage) {
	t.Helper()
	require.True(t, m.busy)
	var stages []service.Stage
	for m.busy {
		msg := waitFor(m.events)()
		if st, ok := msg.(stageMsg); ok {
			stages = append(stages, st.stage)
		}
		m, _ = update(t, m, msg)
	}
	return m, stages
}

// runAsk executes the batched commands returned for a question.
func runAsk(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(answerMsg); ok {
			m, _ = update(t, m, msg)
			return m
		}
	}
	t.Fatal("no answer produced")
	return m
}

func TestView_Header(t *testing.T) {
	m := newModel(&stubSession{})
	view := m.View()

	assert.Contains(t, view, "EduBot: Academic Research Assistant")
	assert.Contains(t, view, "Summarize & Query Research Papers Instantly")
	assert.Contains(t, view, "URL 3:")
}

func TestView_BeforeWindowSize(t *testing.T) {
	m := New(context.Background(), &stubSession{})
	assert.Equal(t, "Loading...", m.View())
}

func TestProcessURLs_ShowsStagesAndSummary(t *testing.T) {
	s := &stubSession{report: &domain.IngestReport{
		Sources: []string{"https://arxiv.org/abs/1706.03762"},
		Chunks:  12,
		Summary: "The Transformer relies on attention.",
	}}
	m := newModel(s)
	m = typeText(t, m, "https://arxiv.org/abs/1706.03762")

	m, cmd := update(t, m, key("ctrl+u"))
	require.NotNil(t, cmd)
	m, stages := drainIngest(t, m)

	assert.Equal(t, []service.Stage{service.StageLoaded, service.StageSplit, service.StageIndexed}, stages)
	assert.Equal(t, []string{"https://arxiv.org/abs/1706.03762", "", ""}, s.fields)
	assert.Equal(t, askField, m.focus, "focus moves to the question box")
	content := m.renderResult()
	assert.Contains(t, content, "https://arxiv.org/abs/1706.03762")
	assert.Contains(t, content, "The Transformer relies on attention.")
	assert.Contains(t, m.status, "12 chunks")
}

func TestProcessURLs_ErrorShownInline(t *testing.T) {
	s := &stubSession{ingestErr: fmt.Errorf("%w: enter at least one URL", domain.ErrNoSources)}
	m := newModel(s)

	m, _ = update(t, m, key("enter"))
	m, stages := drainIngest(t, m)

	assert.Empty(t, stages)
	assert.Contains(t, m.renderResult(), "enter at least one URL")
	assert.Equal(t, "Check your input.", m.status)
}

func TestProcessFiles_ReadsPaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o600))

	s := &stubSession{report: &domain.IngestReport{Sources: []string{"a.txt"}}}
	m := newModel(s)
	for range filesField {
		m, _ = update(t, m, key("tab"))
	}
	m = typeText(t, m, a+", ")

	m, _ = update(t, m, key("ctrl+f"))
	_, _ = drainIngest(t, m)

	require.Len(t, s.uploads, 1)
	assert.Equal(t, "a.txt", s.uploads[0].Name)
	assert.Equal(t, []byte("alpha"), s.uploads[0].Content)
}

func TestProcessFiles_MissingFile(t *testing.T) {
	m := newModel(&stubSession{})
	m.inputs[filesField].SetValue(filepath.Join(t.TempDir(), "nope.pdf"))

	m, cmd := update(t, m, key("ctrl+f"))
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Contains(t, m.errText, "nope.pdf")
}

func TestAsk_NoIndexIsANotice(t *testing.T) {
	s := &stubSession{askErr: fmt.Errorf("%w: edu_index.gob does not exist", domain.ErrNoIndex)}
	m := newModel(s)
	m.setFocus(askField)
	m = typeText(t, m, "what is attention?")

	m, cmd := update(t, m, key("enter"))
	m = runAsk(t, m, cmd)

	assert.Empty(t, m.errText)
	assert.Contains(t, m.renderResult(), service.NoIndexNotice)
	assert.NotContains(t, m.renderResult(), "Error")
}

func TestAsk_SourcesCollapseAndExpand(t *testing.T) {
	chunk := func(src, text string) domain.SearchResult {
		return domain.SearchResult{Chunk: domain.Chunk{Text: text, Metadata: map[string]string{domain.MetaSource: src}}}
	}
	s := &stubSession{answer: &domain.Answer{
		Question: "what is attention?",
		Text:     "Attention weighs tokens.",
		Sources:  []string{"attention.pdf", "bert.pdf"},
		Chunks: []domain.SearchResult{
			chunk("attention.pdf", "Recurrence is slow. Attention weighs every token against the others."),
			chunk("bert.pdf", "BERT is bidirectional."),
		},
	}}
	m := newModel(s)
	m.setFocus(askField)
	m = typeText(t, m, "what is attention?")
	m, cmd := update(t, m, key("enter"))
	m = runAsk(t, m, cmd)

	collapsed := m.renderResult()
	assert.Contains(t, collapsed, "Attention weighs tokens.")
	assert.Contains(t, collapsed, "Sources Used (2)")
	assert.NotContains(t, collapsed, "bert.pdf")

	m, _ = update(t, m, key("ctrl+e"))
	expanded := m.renderResult()
	assert.Contains(t, expanded, "attention.pdf")
	assert.Contains(t, expanded, "bert.pdf")
	assert.Contains(t, expanded, "Attention weighs every token against the others.")
}

func TestAsk_NoSourcesNotice(t *testing.T) {
	s := &stubSession{answer: &domain.Answer{Text: "I don't know."}}
	m := newModel(s)
	m.setFocus(askField)
	m = typeText(t, m, "anything")
	m, cmd := update(t, m, key("enter"))
	m = runAsk(t, m, cmd)

	assert.Contains(t, m.renderResult(), service.NoSourcesNotice)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	m := newModel(&stubSession{})
	m.setFocus(askField)

	m, cmd := update(t, m, key("enter"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.errText, domain.ErrEmptyQuestion.Error())
}

func TestBusy_IgnoresKeysButQuits(t *testing.T) {
	m := newModel(&stubSession{})
	m.busy = true

	next, cmd := update(t, m, key("ctrl+u"))
	assert.Nil(t, cmd)
	assert.Equal(t, m.focus, next.focus)

	_, cmd = update(t, m, key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNew_ReadyStatus(t *testing.T) {
	m := New(context.Background(), &stubSession{state: session.Ready})
	assert.Contains(t, m.status, "Ask away")
}

func TestReadUploads(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "B.PDF")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("%PDF"), 0o600))

	uploads, err := readUploads(" " + a + " ,, " + b + ",")
	require.NoError(t, err)
	require.Len(t, uploads, 2)
	assert.Equal(t, domain.KindText, uploads[0].Kind())
	assert.Equal(t, domain.KindPDF, uploads[1].Kind())

	uploads, err = readUploads("  ")
	require.NoError(t, err)
	assert.Empty(t, uploads)

	_, err = readUploads(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, domain.ErrLoad)
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Intro sentence here. Neural nets are everywhere. Attention weighs tokens. Training is costly. Results follow. Conclusion."

	got := highlightBestSentence(text, "how does attention weigh tokens?")
	assert.Contains(t, got, "Attention weighs tokens.")
	assert.Contains(t, got, "Neural nets are everywhere.")
	assert.Contains(t, got, "Training is costly.")
	assert.NotContains(t, got, "Conclusion.")
	assert.True(t, strings.HasPrefix(got, "… "))
	assert.True(t, strings.HasSuffix(got, " …"))

	assert.Equal(t, "", highlightBestSentence("  ", "q"))
}
