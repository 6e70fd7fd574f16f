package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
)

const (
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
)

// PageExtractor returns the plain text of every page of the PDF at path.
type PageExtractor func(path string) ([]string, error)

// PDFLoader parses uploaded PDFs page by page. Content is staged in a private
// temporary directory that is removed when Load returns.
type PDFLoader struct {
	tempRoot string
	extract  PageExtractor
	logger   *zap.Logger
}

// PDFOption configures a PDFLoader.
type PDFOption func(*PDFLoader)

// WithTempRoot sets the parent directory for staging files. Defaults to os.TempDir().
func WithTempRoot(dir string) PDFOption {
	return func(l *PDFLoader) { l.tempRoot = dir }
}

// WithPageExtractor replaces the PDF text extractor.
func WithPageExtractor(fn PageExtractor) PDFOption {
	return func(l *PDFLoader) { l.extract = fn }
}

func NewPDFLoader(logger *zap.Logger, opts ...PDFOption) *PDFLoader {
	l := &PDFLoader{extract: extractPages, logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load writes content to a temporary file named after source, extracts each
// page and removes the file on every path. Blank pages are skipped; page
// numbers are zero-based.
func (l *PDFLoader) Load(ctx context.Context, source string, content []byte) (docs []domain.Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(l.tempRoot, "edubot-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("%w: staging %s: %w", domain.ErrLoad, source, err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			l.logger.Warn("failed to remove temporary PDF", zap.String("dir", dir), zap.Error(rmErr))
		}
	}()

	path := filepath.Join(dir, stagedName(source))
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("%w: staging %s: %w", domain.ErrLoad, source, err)
	}

	pages, err := l.extract(path)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrLoad, source, err)
	}

	total := strconv.Itoa(len(pages))
	for i, text := range pages {
		if isBlank(text) {
			continue
		}
		docs = append(docs, domain.Document{
			Content: strings.TrimSpace(text),
			Metadata: map[string]string{
				domain.MetaSource: source,
				MetaPage:          strconv.Itoa(i),
				MetaTotalPages:    total,
			},
		})
	}
	l.logger.Debug("pdf parsed",
		zap.String("source", source),
		zap.Int("pages", len(pages)),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// stagedName keeps the upload's base name so parser errors mention it.
func stagedName(source string) string {
	name := filepath.Base(filepath.Clean("/" + source))
	if name == "/" || name == "." {
		return "upload.pdf"
	}
	return name
}

// extractPages reads page text with ledongthuc/pdf. The library panics on some
// malformed input; that is reported as an error.
func extractPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
