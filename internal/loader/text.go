package loader

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"edubot/internal/domain"
)

// TextLoader turns UTF-8 bytes into a single document.
type TextLoader struct{}

// Load decodes content as UTF-8 text. source becomes the document's provenance.
func (TextLoader) Load(ctx context.Context, source string, content []byte) ([]domain.Document, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrLoad, source)
	}
	docs, err := documentloaders.NewText(bytes.NewReader(content)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrLoad, source, err)
	}
	return fromSchema(docs, source), nil
}

// fromSchema converts loader output, tagging each document with source and
// dropping documents without text.
func fromSchema(docs []schema.Document, source string) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if isBlank(d.PageContent) {
			continue
		}
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		meta[domain.MetaSource] = source
		out = append(out, domain.Document{Content: d.PageContent, Metadata: meta})
	}
	return out
}
