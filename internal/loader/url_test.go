package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/domain"
)

func TestURLLoader_RoutesPDFResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "edubot-test", r.Header.Get("User-Agent"))
		if strings.HasSuffix(r.URL.Path, ".pdf") {
			w.Header().Set("Content-Type", "application/octet-stream")
		} else {
			w.Header().Set("Content-Type", "application/pdf")
		}
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	var extracted int
	pdfLoader := NewPDFLoader(nil, WithTempRoot(t.TempDir()), WithPageExtractor(func(string) ([]string, error) {
		extracted++
		return []string{"abstract text"}, nil
	}))
	l := NewURLLoader(URLConfig{UserAgent: "edubot-test"}, pdfLoader, nil)

	for _, path := range []string{"/pdf/1706.03762", "/files/paper.pdf"} {
		docs, err := l.Load(context.Background(), srv.URL+path)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, srv.URL+path, docs[0].Source())
		assert.Equal(t, "0", docs[0].Metadata[MetaPage])
	}
	assert.Equal(t, 2, extracted)
}

func TestURLLoader_RejectsNonHTTP(t *testing.T) {
	l := NewURLLoader(URLConfig{}, nil, nil)

	for _, raw := range []string{"ftp://example.com/paper", "not a url", "file:///etc/passwd", "https://"} {
		_, err := l.Load(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrLoad, raw)
	}
}

func TestURLLoader_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 64)))
	}))
	defer srv.Close()

	l := NewURLLoader(URLConfig{MaxBytes: 32}, nil, nil)
	_, err := l.Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.Contains(t, err.Error(), "exceeds 32 bytes")
}
