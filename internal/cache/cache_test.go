package cache

import (
	"fmt"
	"testing"
	"time"

	"marketwire/internal/core"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/News/Article", "https://example.com/News/Article"},
		{"strips trailing slash", "https://example.com/news/article/", "https://example.com/news/article"},
		{"strips utm params", "https://example.com/a?utm_source=x&utm_medium=y", "https://example.com/a"},
		{"strips tracking ids", "https://example.com/a?fbclid=123&gclid=456", "https://example.com/a"},
		{"keeps meaningful params", "https://example.com/a?id=42&utm_campaign=x", "https://example.com/a?id=42"},
		{"drops fragment", "https://example.com/a#section-2", "https://example.com/a"},
		{"invalid url passes through", "not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeEquivalentURLs(t *testing.T) {
	a := Normalize("https://Example.com/news/item/?utm_source=feed")
	b := Normalize("https://example.com/news/item")
	if a != b {
		t.Errorf("equivalent URLs normalize differently: %q vs %q", a, b)
	}
}

func TestGetPut(t *testing.T) {
	c := New(10, time.Minute)

	if _, ok := c.Get("https://example.com/a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	rc := core.RawContent{URL: "https://example.com/a", Text: "body", FetchedAt: time.Now()}
	c.Put("https://Example.com/a/", rc)

	// Cosmetically different URL hits the same entry.
	got, ok := c.Get("https://example.com/a?utm_source=x")
	if !ok {
		t.Fatal("expected hit for normalized-equivalent URL")
	}
	if got.Text != "body" {
		t.Errorf("unexpected cached text %q", got.Text)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %+v", stats)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, 20*time.Millisecond)
	c.Put("https://example.com/a", core.RawContent{Text: "body"})

	if _, ok := c.Get("https://example.com/a"); !ok {
		t.Fatal("expected hit before TTL elapses")
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("https://example.com/a"); ok {
		t.Error("expected expired entry to be treated as absent")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := New(3, time.Minute)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("https://example.com/%d", i), core.RawContent{Text: "x"})
	}

	if c.Len() != 3 {
		t.Fatalf("expected 3 live entries, got %d", c.Len())
	}
	// Least recently used entries go first.
	if _, ok := c.Get("https://example.com/0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("https://example.com/4"); !ok {
		t.Error("newest entry should survive")
	}
}
