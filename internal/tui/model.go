package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"edubot/internal/domain"
	"edubot/internal/service"
	"edubot/internal/session"
	"edubot/internal/textutil"
)

// Session is the TUI-facing subset of the session.
type Session interface {
	IngestURLs(ctx context.Context, fields []string, progress service.ProgressFunc) (*domain.IngestReport, error)
	IngestUploads(ctx context.Context, uploads []domain.Upload, progress service.ProgressFunc) (*domain.IngestReport, error)
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	State() session.State
}

const (
	urlFields   = 3
	filesField  = urlFields
	askField    = urlFields + 1
	fieldsCount = urlFields + 2
)

type stageMsg struct{ stage service.Stage }

type ingestDoneMsg struct {
	report *domain.IngestReport
	err    error
}

type answerMsg struct {
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx     context.Context
	session Session

	inputs   []textinput.Model
	focus    int
	viewport viewport.Model
	spinner  spinner.Model
	progress progress.Model

	busy     bool
	stage    service.Stage
	events   <-chan tea.Msg
	status   string
	errText  string
	notice   string
	report   *domain.IngestReport
	answer   *domain.Answer
	expanded bool
	ready    bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, s Session) Model {
	inputs := make([]textinput.Model, fieldsCount)
	for i := range urlFields {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("URL %d: ", i+1)
		ti.Placeholder = "https://arxiv.org/abs/..."
		inputs[i] = ti
	}
	files := textinput.New()
	files.Prompt = "Files: "
	files.Placeholder = "paper.pdf, notes.txt"
	inputs[filesField] = files

	ask := textinput.New()
	ask.Prompt = "> "
	ask.Placeholder = "Ask a question about your papers and press Enter"
	inputs[askField] = ask

	for i := range inputs {
		inputs[i].CharLimit = 0
	}
	inputs[0].Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))

	m := Model{
		ctx:      ctx,
		session:  s,
		inputs:   inputs,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:   "Enter paper URLs or file paths, then press Enter.",
	}
	if s.State() == session.Ready {
		m.status = "Processed papers found. Ask away."
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, fh := formBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		headerLines := 2
		formLines := fieldsCount - 1 + 2 // inputs + section labels
		footerLines := 2                 // status + help
		reserved := headerLines + formLines + fh + 1 + qh + footerLines
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		for i := range m.inputs {
			m.inputs[i].Width = max(10, msg.Width-16)
		}
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stageMsg:
		m.stage = msg.stage
		m.status = msg.stage.Label()
		return m, waitFor(m.events)

	case ingestDoneMsg:
		m.busy = false
		m.events = nil
		m.answer = nil
		m.notice = ""
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.errText = ""
			m.report = msg.report
			m.status = fmt.Sprintf("Processed %d source(s) into %d chunks.", len(msg.report.Sources), msg.report.Chunks)
			m.setFocus(askField)
		}
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil

	case answerMsg:
		m.busy = false
		m.notice = ""
		switch {
		case msg.err == nil:
			m.errText = ""
			m.answer = msg.answer
			m.expanded = false
			m.status = "Answer ready."
		case errors.Is(msg.err, domain.ErrNoIndex):
			m.errText = ""
			m.answer = nil
			m.notice = service.NoIndexNotice
			m.status = "Nothing to search yet."
		default:
			m.setError(msg.err)
		}
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			m.setFocus((m.focus + 1) % fieldsCount)
			return m, nil
		case "shift+tab", "up":
			m.setFocus((m.focus - 1 + fieldsCount) % fieldsCount)
			return m, nil
		case "ctrl+u":
			return m.processURLs()
		case "ctrl+f":
			return m.processFiles()
		case "ctrl+e":
			m.expanded = !m.expanded
			m.viewport.SetContent(m.renderResult())
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			switch {
			case m.focus < urlFields:
				return m.processURLs()
			case m.focus == filesField:
				return m.processFiles()
			default:
				return m.ask()
			}
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

func (m *Model) setError(err error) {
	m.errText = err.Error()
	switch {
	case domain.IsInputError(err):
		m.status = "Check your input."
	case errors.Is(err, domain.ErrMissingAPIKey):
		m.status = "Set OPENAI_API_KEY in .env or the secrets file."
	default:
		m.status = "Something went wrong; the previous papers are still searchable."
	}
}

func (m Model) processURLs() (tea.Model, tea.Cmd) {
	fields := make([]string, urlFields)
	for i := range urlFields {
		fields[i] = m.inputs[i].Value()
	}
	return m.startIngest("Loading papers...", func(ctx context.Context, p service.ProgressFunc) (*domain.IngestReport, error) {
		return m.session.IngestURLs(ctx, fields, p)
	})
}

func (m Model) processFiles() (tea.Model, tea.Cmd) {
	uploads, err := readUploads(m.inputs[filesField].Value())
	if err != nil {
		m.setError(err)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	}
	return m.startIngest("Loading files...", func(ctx context.Context, p service.ProgressFunc) (*domain.IngestReport, error) {
		return m.session.IngestUploads(ctx, uploads, p)
	})
}

// startIngest runs the ingestion off the UI goroutine. Stage events and the
// final result arrive on one channel and are read back one message at a time.
func (m Model) startIngest(status string, run func(context.Context, service.ProgressFunc) (*domain.IngestReport, error)) (tea.Model, tea.Cmd) {
	events := make(chan tea.Msg, 4)
	ctx := m.ctx
	go func() {
		defer close(events)
		report, err := run(ctx, func(s service.Stage) { events <- stageMsg{stage: s} })
		events <- ingestDoneMsg{report: report, err: err}
	}()

	m.busy = true
	m.stage = 0
	m.events = events
	m.status = status
	m.errText = ""
	return m, tea.Batch(m.spinner.Tick, waitFor(events))
}

func (m Model) ask() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.inputs[askField].Value())
	if question == "" {
		m.setError(domain.ErrEmptyQuestion)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	}
	m.busy = true
	m.stage = 0
	m.status = "Thinking..."
	m.errText = ""
	ctx, s := m.ctx, m.session
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		answer, err := s.Ask(ctx, question)
		return answerMsg{answer: answer, err: err}
	})
}

func waitFor(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// readUploads reads comma-separated paths from disk. Blank entries are skipped.
func readUploads(field string) ([]domain.Upload, error) {
	var uploads []domain.Upload
	for _, p := range strings.Split(field, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", domain.ErrLoad, p, err)
		}
		uploads = append(uploads, domain.Upload{Name: filepath.Base(p), Content: data})
	}
	return uploads, nil
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("EduBot: Academic Research Assistant") + "\n" +
		subtitleStyle.Render("Summarize & Query Research Papers Instantly")

	var form strings.Builder
	form.WriteString(labelStyle.Render("Research paper URLs (ctrl+u)") + "\n")
	for i := range urlFields {
		form.WriteString(m.inputs[i].View() + "\n")
	}
	form.WriteString(labelStyle.Render("Upload .pdf / .txt, comma-separated (ctrl+f)") + "\n")
	form.WriteString(m.inputs[filesField].View())

	results := resultBoxStyle.Render(m.viewport.View())
	query := queryBoxStyle.Render(m.inputs[askField].View())

	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + m.progress.ViewAs(m.stage.Percent()) + " " + status
	}
	help := helpStyle.Render("tab focus • enter run • ctrl+e sources • pgup/pgdn scroll • ctrl+c quit")

	return header + "\n" + formBoxStyle.Render(form.String()) + "\n" + results + "\n" + query + "\n" + status + "\n" + help
}

func (m Model) renderResult() string {
	var b strings.Builder
	if m.errText != "" {
		b.WriteString(errorStyle.Render("Error: "+m.errText) + "\n\n")
	}
	switch {
	case m.notice != "":
		b.WriteString(noticeStyle.Render(m.notice))
	case m.answer != nil:
		b.WriteString(sectionStyle.Render("Answer") + "\n")
		b.WriteString(m.answer.Text + "\n\n")
		b.WriteString(m.renderSources())
	case m.report != nil:
		b.WriteString(sectionStyle.Render("Processed") + "\n")
		for _, src := range m.report.Sources {
			b.WriteString("  • " + src + "\n")
		}
		if m.report.Summary != "" {
			b.WriteString("\n" + sectionStyle.Render("Summary") + "\n")
			b.WriteString(m.report.Summary + "\n")
		}
	case m.errText == "":
		b.WriteString("No results yet.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderSources() string {
	if len(m.answer.Sources) == 0 {
		return noticeStyle.Render(service.NoSourcesNotice)
	}
	title := fmt.Sprintf("Sources Used (%d)", len(m.answer.Sources))
	if !m.expanded {
		return sectionStyle.Render(title) + dimStyle.Render("  ctrl+e to show")
	}
	var b strings.Builder
	b.WriteString(sectionStyle.Render(title) + "\n")
	for _, src := range m.answer.Sources {
		b.WriteString("  • " + src + "\n")
		for _, r := range m.answer.Chunks {
			if r.Chunk.Source() == src {
				b.WriteString("    " + highlightBestSentence(r.Chunk.Text, m.answer.Question) + "\n")
				break
			}
		}
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	subtitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	formBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
)

// highlightBestSentence marks the sentence sharing the most content words
// with query. Text longer than a few sentences is trimmed around it.
func highlightBestSentence(text, query string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	qTerms := make(map[string]struct{})
	for _, t := range textutil.Terms(query) {
		qTerms[t] = struct{}{}
	}

	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTerms, s); score > bestScore {
			best, bestScore = i, score
		}
	}

	lo, hi := max(0, best-1), min(len(sentences), best+2)
	out := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		sent := strings.TrimSpace(sentences[i])
		if i == best && bestScore > 0 {
			sent = highlightStyle.Render(sent)
		}
		out = append(out, sent)
	}
	snippet := strings.Join(out, " ")
	if lo > 0 {
		snippet = "… " + snippet
	}
	if hi < len(sentences) {
		snippet += " …"
	}
	return snippet
}

func overlap(queryTerms map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range textutil.Terms(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTerms[t]; ok {
			score++
		}
	}
	return score
}
