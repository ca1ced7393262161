package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	e := New()

	tests := []struct {
		name        string
		contentType string
		data        string
		want        string
	}{
		{"plain", "text/plain", "hello world", "hello world"},
		{"plain with charset", "text/plain; charset=utf-8", "hello", "hello"},
		{"markdown", "text/markdown", "# Title\n\nBody text.", "# Title\n\nBody text."},
		{"unknown text subtype", "text/x-log", "log line", "log line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.contentType, []byte(tt.data))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractCSV(t *testing.T) {
	e := New()

	got, err := e.Extract("text/csv", []byte("name,age\nalice,30\nbob,25\n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "name, age\nalice, 30\nbob, 25"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

func TestExtractHTML(t *testing.T) {
	e := New()

	html := `<html><head><style>body{color:red}</style></head>
<body><script>alert(1)</script><h1>Heading</h1><p>Paragraph text.</p></body></html>`

	got, err := e.Extract("text/html", []byte(html))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(got, "Heading") || !strings.Contains(got, "Paragraph text.") {
		t.Errorf("visible text missing from %q", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Errorf("script/style content leaked into %q", got)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	e := New()

	for _, ct := range []string{"application/pdf", "image/png", "application/octet-stream"} {
		_, err := e.Extract(ct, []byte{0x00, 0x01})
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Extract(%q) error = %v, want ErrUnsupportedType", ct, err)
		}
	}
}

func TestExtractTooLarge(t *testing.T) {
	e := New(WithMaxSize(10))

	_, err := e.Extract("text/plain", []byte("this is more than ten bytes"))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("Extract() error = %v, want ErrTooLarge", err)
	}
}

func TestIsTextLike(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/markdown; charset=utf-8", true},
		{"text/csv", true},
		{"text/html", true},
		{"image/png", false},
		{"application/pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTextLike(tt.contentType); got != tt.want {
			t.Errorf("IsTextLike(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Test Article</title></head><body>
<nav>Home | About | Contact</nav>
<article><h1>Test Article</h1>
<p>This is the first paragraph of the article, long enough for the readability pass to keep it.</p>
<p>This is the second paragraph, also with enough substance to be considered article content.</p>
</article></body></html>`))
	}))
	defer srv.Close()

	e := New(WithHTTPClient(srv.Client()))

	_, text, err := e.FromURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FromURL() error = %v", err)
	}
	if !strings.Contains(text, "first paragraph") {
		t.Errorf("article text missing from %q", text)
	}
}

func TestFromURLBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(WithHTTPClient(srv.Client()))

	if _, _, err := e.FromURL(context.Background(), srv.URL); err == nil {
		t.Error("FromURL() expected error for 404 response")
	}
}

func TestFromURLInvalidScheme(t *testing.T) {
	e := New()

	for _, u := range []string{"ftp://example.com/file", "not a url", "file:///etc/passwd"} {
		if _, _, err := e.FromURL(context.Background(), u); err == nil {
			t.Errorf("FromURL(%q) expected error", u)
		}
	}
}

func TestFromURLTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 200)))
	}))
	defer srv.Close()

	e := New(WithHTTPClient(srv.Client()), WithMaxSize(100))

	_, _, err := e.FromURL(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("FromURL() error = %v, want ErrTooLarge", err)
	}
}
