package cmd

import (
	"testing"

	"github.com/google/uuid"

	"github.com/skald-ai/skald/internal/retrieval"
)

func TestThreadIDDefaultIsStable(t *testing.T) {
	threadFlag = ""
	t.Cleanup(func() { threadFlag = "" })

	a, err := threadID()
	if err != nil {
		t.Fatalf("threadID() error = %v", err)
	}
	b, err := threadID()
	if err != nil {
		t.Fatalf("threadID() error = %v", err)
	}
	if a != b {
		t.Errorf("default thread unstable: %s vs %s", a, b)
	}
	if a == uuid.Nil {
		t.Error("default thread is the nil uuid")
	}
}

func TestThreadIDParsesFlag(t *testing.T) {
	want := uuid.New()
	threadFlag = want.String()
	t.Cleanup(func() { threadFlag = "" })

	got, err := threadID()
	if err != nil {
		t.Fatalf("threadID() error = %v", err)
	}
	if got != want {
		t.Errorf("threadID() = %s, want %s", got, want)
	}
}

func TestThreadIDRejectsGarbage(t *testing.T) {
	threadFlag = "not-a-uuid"
	t.Cleanup(func() { threadFlag = "" })

	if _, err := threadID(); err == nil {
		t.Error("threadID() expected error for invalid uuid")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "text/plain"},
		{"README.md", "text/markdown"},
		{"data.CSV", "text/csv"},
		{"page.html", "text/html"},
		{"no-extension", "text/plain"},
	}
	for _, tt := range tests {
		if got := contentTypeFor(tt.path); got != tt.want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestContextProvider(t *testing.T) {
	if p, err := contextProvider(nil, "document"); err != nil {
		t.Errorf("contextProvider(document) error = %v", err)
	} else if _, ok := p.(*retrieval.DocumentProvider); !ok {
		t.Errorf("contextProvider(document) = %T, want *retrieval.DocumentProvider", p)
	}

	if p, err := contextProvider(nil, "link"); err != nil {
		t.Errorf("contextProvider(link) error = %v", err)
	} else if _, ok := p.(*retrieval.LinkProvider); !ok {
		t.Errorf("contextProvider(link) = %T, want *retrieval.LinkProvider", p)
	}

	if _, err := contextProvider(nil, "rss"); err == nil {
		t.Error("contextProvider(rss) expected error for unknown source")
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short stays whole", "one two", 10, "one two"},
		{"long is trimmed", "abcdefghij", 4, "abcd..."},
		{"newlines collapse", "line one\nline two", 20, "line one line two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := excerpt(tt.text, tt.n); got != tt.want {
				t.Errorf("excerpt(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}
