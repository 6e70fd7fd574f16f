package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
	"edubot/internal/metrics"
	"edubot/internal/vectorstore"
)

const (
	DefaultTopK = 5

	NoSourcesNotice = "No sources found for this answer."
	NoIndexNotice   = "No processed papers found yet. Process URLs or files first."
)

// Collector turns user input into loaded documents.
type Collector interface {
	CollectURLs(ctx context.Context, fields []string) ([]domain.Document, error)
	CollectUploads(ctx context.Context, uploads []domain.Upload) ([]domain.Document, error)
}

// Deps are the pipeline components.
type Deps struct {
	Collector  Collector
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Store      vectorstore.Store
	Answerer   domain.Answerer
	Summarizer domain.Summarizer
}

// Options tune the pipeline.
type Options struct {
	IndexPath        string
	TopK             int
	SummarySentences int
}

// RAGService ingests sources into the persisted index and answers questions
// against it. Every ingestion is a full rebuild.
type RAGService struct {
	deps    Deps
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRAGService(deps Deps, opts Options, logger *zap.Logger, m *metrics.Metrics) (*RAGService, error) {
	switch {
	case deps.Collector == nil:
		return nil, errors.New("collector is required")
	case deps.Chunker == nil:
		return nil, errors.New("chunker is required")
	case deps.Embedder == nil:
		return nil, errors.New("embedder is required")
	case deps.Store == nil:
		return nil, errors.New("vector store is required")
	case deps.Answerer == nil:
		return nil, errors.New("answerer is required")
	case opts.IndexPath == "":
		return nil, errors.New("index path is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &RAGService{deps: deps, opts: opts, logger: logging.OrNop(logger), metrics: m}, nil
}

// IndexPath returns the file the index is persisted to.
func (s *RAGService) IndexPath() string { return s.opts.IndexPath }

// IngestURLs loads the non-blank URL fields and rebuilds the index from them.
func (s *RAGService) IngestURLs(ctx context.Context, fields []string, progress ProgressFunc) (*domain.IngestReport, error) {
	return s.ingest(ctx, "urls", progress, func() ([]domain.Document, error) {
		return s.deps.Collector.CollectURLs(ctx, fields)
	})
}

// IngestUploads loads .pdf and .txt uploads and rebuilds the index from them.
func (s *RAGService) IngestUploads(ctx context.Context, uploads []domain.Upload, progress ProgressFunc) (*domain.IngestReport, error) {
	return s.ingest(ctx, "files", progress, func() ([]domain.Document, error) {
		return s.deps.Collector.CollectUploads(ctx, uploads)
	})
}

func (s *RAGService) ingest(ctx context.Context, kind string, progress ProgressFunc, load func() ([]domain.Document, error)) (report *domain.IngestReport, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordIngestion(kind, resultLabel(err))
		if err != nil {
			s.logger.Warn("ingestion failed", zap.String("kind", kind), zap.Error(err))
		}
	}()

	docs, err := load()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no text could be extracted", domain.ErrNoSources)
	}
	s.reached(progress, StageLoaded, start)

	chunks, err := s.deps.Chunker.Chunk(docs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text could be extracted", domain.ErrNoSources)
	}
	s.reached(progress, StageSplit, start)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.deps.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	idx, err := s.deps.Store.Build(ctx, s.deps.Embedder.Name(), chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: build: %w", domain.ErrStorage, err)
	}
	if err := idx.Save(s.opts.IndexPath); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	s.metrics.SetIndexedChunks(idx.Len())
	s.reached(progress, StageIndexed, start)

	report = &domain.IngestReport{
		Kind:      kind,
		Documents: len(docs),
		Chunks:    len(chunks),
		Sources:   documentSources(docs),
		Summary:   s.summarize(docs),
		IndexPath: s.opts.IndexPath,
		Duration:  time.Since(start),
	}
	s.logger.Info("ingestion complete",
		zap.String("kind", kind),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Strings("sources", report.Sources),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (s *RAGService) reached(progress ProgressFunc, stage Stage, start time.Time) {
	s.metrics.ObserveStage(stage.String(), time.Since(start))
	s.logger.Debug("ingestion stage", zap.Stringer("stage", stage))
	if progress != nil {
		progress(stage)
	}
}

// summarize is best effort; a failure leaves the summary empty.
func (s *RAGService) summarize(docs []domain.Document) string {
	if s.deps.Summarizer == nil || s.opts.SummarySentences <= 0 {
		return ""
	}
	var all strings.Builder
	for _, d := range docs {
		all.WriteString(d.Content)
		all.WriteString("\n")
	}
	summary, err := s.deps.Summarizer.Summarize(all.String(), s.opts.SummarySentences)
	if err != nil {
		s.logger.Warn("summary failed", zap.Error(err))
		return ""
	}
	return summary
}

// Ask answers question from the top-k chunks of the persisted index. It
// returns domain.ErrNoIndex when nothing has been processed yet.
func (s *RAGService) Ask(ctx context.Context, question string) (answer *domain.Answer, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordQuery(resultLabel(err), time.Since(start))
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	idx, err := s.deps.Store.Open(s.opts.IndexPath, s.deps.Embedder.Name())
	if err != nil {
		if errors.Is(err, domain.ErrStaleIndex) {
			s.logger.Warn("index cannot be used", zap.String("path", s.opts.IndexPath), zap.Error(err))
		}
		return nil, err
	}

	vector, err := s.deps.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	results, err := idx.Search(ctx, vector, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	text, err := s.deps.Answerer.Answer(ctx, question, results)
	if err != nil {
		return nil, err
	}

	answer = &domain.Answer{
		Question: question,
		Text:     text,
		Sources:  DedupeSources(results),
		Chunks:   results,
	}
	s.logger.Info("question answered",
		zap.Int("chunks", len(results)),
		zap.Strings("sources", answer.Sources),
		zap.Duration("duration", time.Since(start)))
	return answer, nil
}

// HasIndex reports whether a usable index exists for the configured embedder.
func (s *RAGService) HasIndex() bool {
	_, err := s.deps.Store.Open(s.opts.IndexPath, s.deps.Embedder.Name())
	return err == nil
}

// DedupeSources lists the sources of results in first-seen order. Results
// without a source are skipped.
func DedupeSources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		src := r.Chunk.Source()
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

func documentSources(docs []domain.Document) []string {
	seen := make(map[string]struct{}, len(docs))
	var out []string
	for _, d := range docs {
		if _, ok := seen[d.Source()]; ok || d.Source() == "" {
			continue
		}
		seen[d.Source()] = struct{}{}
		out = append(out, d.Source())
	}
	return out
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsInputError(err):
		return "input_error"
	case errors.Is(err, domain.ErrNoIndex):
		return "no_index"
	case errors.Is(err, domain.ErrLoad):
		return "load_error"
	case errors.Is(err, domain.ErrService):
		return "service_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
