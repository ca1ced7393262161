// Package extract converts uploaded files and fetched web pages into plain
// text for chunking.
//
// Text-like content types (plain text, markdown, CSV, HTML) are reduced to
// their textual content. Anything else is rejected with ErrUnsupportedType
// so the caller can decide between failing the file and indexing a
// placeholder.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrUnsupportedType indicates the content type has no text extraction
	// path.
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrTooLarge indicates the input exceeds the configured size limit.
	ErrTooLarge = errors.New("content exceeds size limit")

	// ErrEmptyContent indicates extraction produced no usable text.
	ErrEmptyContent = errors.New("no extractable text content")
)

// DefaultMaxSize bounds both uploaded files and fetched pages.
const DefaultMaxSize = 10 << 20 // 10 MB

// Extractor converts raw content to plain text. Safe for concurrent use.
type Extractor struct {
	maxSize int64
	client  *http.Client
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxSize sets the input size limit in bytes. Non-positive values keep
// the default.
func WithMaxSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// WithHTTPClient sets the client used for FromURL. Nil keeps the default.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Extractor) {
		if c != nil {
			e.client = c
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		maxSize: DefaultMaxSize,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsTextLike reports whether the content type has a text extraction path.
// The pipeline uses this to route non-text files to placeholder chunks
// instead of failing them.
func IsTextLike(contentType string) bool {
	mt := normalizeType(contentType)
	switch mt {
	case "text/plain", "text/markdown", "text/csv", "text/html":
		return true
	}
	return strings.HasPrefix(mt, "text/")
}

// Extract converts file content to plain text based on its content type.
// Unsupported types return ErrUnsupportedType; oversized input returns
// ErrTooLarge.
func (e *Extractor) Extract(contentType string, data []byte) (string, error) {
	if int64(len(data)) > e.maxSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), e.maxSize)
	}

	switch mt := normalizeType(contentType); mt {
	case "text/plain", "text/markdown":
		return string(data), nil
	case "text/csv":
		return csvToText(data)
	case "text/html":
		return htmlToText(data)
	default:
		if strings.HasPrefix(mt, "text/") {
			return string(data), nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

// FromURL fetches a web page and extracts its readable article text. The
// readability pass strips navigation, ads and boilerplate; when it cannot
// identify an article body the raw HTML's text is used instead.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (title, text string, err error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", "", fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxSize))
	if err != nil {
		return "", "", fmt.Errorf("read response: %w", err)
	}
	// Probe one extra byte to distinguish exactly-at-limit from truncated.
	if int64(len(body)) == e.maxSize {
		extra := make([]byte, 1)
		if n, _ := resp.Body.Read(extra); n > 0 {
			return "", "", fmt.Errorf("%w: response larger than %d bytes", ErrTooLarge, e.maxSize)
		}
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent), nil
	}

	text, err = htmlToText(body)
	if err != nil {
		return "", "", err
	}
	return "", text, nil
}

// htmlToText strips tags, scripts and styles, returning visible text.
func htmlToText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	text := strings.TrimSpace(doc.Find("body").Text())
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}
	if text == "" {
		return "", ErrEmptyContent
	}
	return collapseWhitespace(text), nil
}

// csvToText renders rows as comma-joined lines so embeddings see the cell
// values without quoting noise.
func csvToText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var b strings.Builder
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteByte('\n')
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyContent
	}
	return out, nil
}

func normalizeType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// collapseWhitespace reduces runs of blank lines and indentation left behind
// by tag removal.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
