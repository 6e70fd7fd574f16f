// Package session serialises user actions against the RAG service and
// tracks where the user is in the ingest/ask cycle.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
	"edubot/internal/service"
)

type State int

const (
	Idle State = iota
	Ingesting
	Ready
	Answering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ingesting:
		return "ingesting"
	case Ready:
		return "ready"
	case Answering:
		return "answering"
	default:
		return "unknown"
	}
}

// Busy reports whether an action is in flight.
func (s State) Busy() bool { return s == Ingesting || s == Answering }

// Service is the pipeline a session drives.
type Service interface {
	IngestURLs(ctx context.Context, fields []string, progress service.ProgressFunc) (*domain.IngestReport, error)
	IngestUploads(ctx context.Context, uploads []domain.Upload, progress service.ProgressFunc) (*domain.IngestReport, error)
	Ask(ctx context.Context, question string) (*domain.Answer, error)
	HasIndex() bool
}

// Session runs one action at a time. Actions attempted while another is in
// flight fail with domain.ErrBusy.
type Session struct {
	svc    Service
	logger *zap.Logger

	mu    sync.Mutex
	state State
}

// New starts in Ready when a usable index already exists, otherwise in Idle.
func New(svc Service, logger *zap.Logger) *Session {
	s := &Session{svc: svc, logger: logging.OrNop(logger), state: Idle}
	if svc.HasIndex() {
		s.state = Ready
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasIndex reports whether a usable index file exists right now.
func (s *Session) HasIndex() bool { return s.svc.HasIndex() }

func (s *Session) IngestURLs(ctx context.Context, fields []string, progress service.ProgressFunc) (*domain.IngestReport, error) {
	return s.ingest(func() (*domain.IngestReport, error) {
		return s.svc.IngestURLs(ctx, fields, progress)
	})
}

func (s *Session) IngestUploads(ctx context.Context, uploads []domain.Upload, progress service.ProgressFunc) (*domain.IngestReport, error) {
	return s.ingest(func() (*domain.IngestReport, error) {
		return s.svc.IngestUploads(ctx, uploads, progress)
	})
}

func (s *Session) ingest(run func() (*domain.IngestReport, error)) (*domain.IngestReport, error) {
	prev, err := s.begin(Ingesting)
	if err != nil {
		return nil, err
	}

	report, err := run()
	if err != nil {
		s.end(prev)
		return nil, err
	}
	s.end(Ready)
	return report, nil
}

// Ask answers from the current index. In Idle the index file is checked
// again, so an index written by another process is picked up.
func (s *Session) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}
	prev, err := s.begin(Answering)
	if err != nil {
		return nil, err
	}

	answer, err := s.svc.Ask(ctx, question)
	switch {
	case err == nil:
		s.end(Ready)
	case errors.Is(err, domain.ErrNoIndex):
		s.end(Idle)
	default:
		s.end(prev)
	}
	return answer, err
}

func (s *Session) begin(next State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return s.state, domain.ErrBusy
	}
	prev := s.state
	s.state = next
	s.logger.Debug("session transition", zap.Stringer("from", prev), zap.Stringer("to", next))
	return prev, nil
}

func (s *Session) end(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Debug("session transition", zap.Stringer("from", s.state), zap.Stringer("to", next))
	s.state = next
}
