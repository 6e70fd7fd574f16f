package loader

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
)

// Collector gathers documents from the user's URL fields or uploads and
// routes each source to the matching loader.
type Collector struct {
	urls   *URLLoader
	pdf    *PDFLoader
	text   TextLoader
	logger *zap.Logger
}

func NewCollector(urls *URLLoader, pdfLoader *PDFLoader, logger *zap.Logger) *Collector {
	logger = logging.OrNop(logger)
	if pdfLoader == nil {
		pdfLoader = NewPDFLoader(logger)
	}
	if urls == nil {
		urls = NewURLLoader(URLConfig{}, pdfLoader, logger)
	}
	return &Collector{urls: urls, pdf: pdfLoader, logger: logger}
}

// CleanURLs trims the fields and drops blank ones.
func CleanURLs(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CollectURLs loads every non-blank URL field. It fails with ErrNoSources
// when all fields are blank and stops at the first URL that cannot be loaded.
func (c *Collector) CollectURLs(ctx context.Context, fields []string) ([]domain.Document, error) {
	urls := CleanURLs(fields)
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: enter at least one URL", domain.ErrNoSources)
	}

	var docs []domain.Document
	for _, u := range urls {
		loaded, err := c.urls.Load(ctx, u)
		if err != nil {
			return nil, err
		}
		c.logger.Info("url loaded", zap.String("source", u), zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
	}
	return docs, nil
}

// CollectUploads loads .txt and .pdf uploads and skips anything else.
func (c *Collector) CollectUploads(ctx context.Context, uploads []domain.Upload) ([]domain.Document, error) {
	if len(uploads) == 0 {
		return nil, domain.ErrNoUploads
	}

	var (
		docs    []domain.Document
		handled int
	)
	for _, up := range uploads {
		var (
			loaded []domain.Document
			err    error
		)
		switch up.Kind() {
		case domain.KindText:
			loaded, err = c.text.Load(ctx, up.Name, up.Content)
		case domain.KindPDF:
			loaded, err = c.pdf.Load(ctx, up.Name, up.Content)
		default:
			c.logger.Debug("skipping unsupported upload", zap.String("name", up.Name))
			continue
		}
		if err != nil {
			return nil, err
		}
		handled++
		c.logger.Info("file loaded",
			zap.String("source", up.Name),
			zap.Stringer("kind", up.Kind()),
			zap.Int("documents", len(loaded)))
		docs = append(docs, loaded...)
	}
	if handled == 0 {
		return nil, fmt.Errorf("%w: %w: only .pdf and .txt files are supported", domain.ErrNoSources, domain.ErrUnsupportedFile)
	}
	return docs, nil
}

func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
