// Package chunker turns a contract document into candidate clause chunks.
// PDFs are validated with pdfcpu and their text is extracted page by page
// with ledongthuc/pdf; any other file is read as UTF-8 text.
package chunker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-covenant/internal/clause"
	"github.com/ahrav/go-covenant/internal/ports"
)

var _ ports.DocumentChunker = (*Chunker)(nil)

// Chunker implements ports.DocumentChunker.
type Chunker struct {
	splitter *Splitter
	minWords int
	logger   *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSplitter replaces the default 500/50 splitter.
func WithSplitter(s *Splitter) Option {
	return func(c *Chunker) {
		if s != nil {
			c.splitter = s
		}
	}
}

// WithLogger sets the logger used for extraction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chunker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Chunker with the default splitter. Chunks with fewer than
// clause.MinWords words are dropped.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		splitter: NewSplitter(),
		minWords: clause.MinWords,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractClauses reads the document at path and returns its chunks in
// document order.
func (c *Chunker) ExtractClauses(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	var text string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = c.pdfText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from %s: %w", path, err)
		}
	} else {
		text = string(data)
	}

	chunks := c.Chunk(text)
	c.logger.InfoContext(ctx, "document chunked",
		"path", path,
		"bytes", len(data),
		"chunks", len(chunks))
	return chunks, nil
}

// Chunk normalizes text and splits it into chunks, keeping those with at
// least the minimum word count.
func (c *Chunker) Chunk(text string) []string {
	text = norm.NFKC.String(text)

	var out []string
	for _, chunk := range c.splitter.Split(text) {
		chunk = strings.TrimSpace(chunk)
		if len(strings.Fields(chunk)) >= c.minWords {
			out = append(out, chunk)
		}
	}
	return out
}

// pdfText validates the document with pdfcpu and concatenates the plain
// text of every page, one page per line. Glyphs are mapped to text through
// each font's ToUnicode CMap or its declared encoding.
func (c *Chunker) pdfText(ctx context.Context, data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return "", err
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	pages = min(pages, doc.NumPage())

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := pageText(doc.Page(i))
		if err != nil {
			c.logger.WarnContext(ctx, "skipping unreadable page", "page", i, "error", err)
			continue
		}
		b.WriteString("\n")
		b.WriteString(text)
	}
	return b.String(), nil
}

// pageText extracts the text drawn on p. The reader panics on malformed
// content streams; that is reported as an error for the page.
func pageText(p pdf.Page) (text string, err error) {
	if p.V.IsNull() {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed page content: %v", r)
		}
	}()

	fonts := make(map[string]*pdf.Font)
	for _, name := range p.Fonts() {
		f := p.Font(name)
		fonts[name] = &f
	}
	return p.GetPlainText(fonts)
}
