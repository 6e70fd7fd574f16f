package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxBytes     = 20 << 20
	DefaultUserAgent    = "edubot/1.0"
)

// URLConfig controls how pages are fetched.
type URLConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int64
}

// URLLoader fetches a web page and extracts its text. PDF responses are
// handed to the PDF loader; plain text is used as is; everything else is
// treated as HTML.
type URLLoader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	pdf       *PDFLoader
	logger    *zap.Logger
}

func NewURLLoader(cfg URLConfig, pdfLoader *PDFLoader, logger *zap.Logger) *URLLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	logger = logging.OrNop(logger)
	if pdfLoader == nil {
		pdfLoader = NewPDFLoader(logger)
	}
	return &URLLoader{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
		pdf:       pdfLoader,
		logger:    logger,
	}
}

// Load fetches rawURL. The trimmed URL is the documents' source.
func (l *URLLoader) Load(ctx context.Context, rawURL string) ([]domain.Document, error) {
	source := strings.TrimSpace(rawURL)
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", domain.ErrLoad, source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrLoad, source, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/pdf,text/plain;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", domain.ErrLoad, source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetching %s: unexpected status %s", domain.ErrLoad, source, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrLoad, source, err)
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrLoad, source, l.maxBytes)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	l.logger.Debug("url fetched",
		zap.String("source", source),
		zap.String("content_type", mediaType),
		zap.Int("bytes", len(body)))

	switch {
	case isPDF(mediaType, u.Path):
		return l.pdf.Load(ctx, source, body)
	case mediaType == "text/plain":
		return TextLoader{}.Load(ctx, source, body)
	default:
		return loadHTML(ctx, source, body)
	}
}

func loadHTML(ctx context.Context, source string, body []byte) ([]domain.Document, error) {
	docs, err := documentloaders.NewHTML(bytes.NewReader(body)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrLoad, source, err)
	}
	return fromSchema(docs, source), nil
}

func isPDF(mediaType, urlPath string) bool {
	if mediaType == "application/pdf" {
		return true
	}
	generic := mediaType == "" || mediaType == "application/octet-stream"
	return generic && strings.EqualFold(path.Ext(urlPath), ".pdf")
}
