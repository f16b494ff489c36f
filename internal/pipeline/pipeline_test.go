package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketwire/internal/core"
	"marketwire/internal/metrics"
)

type fakeAcquirer struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (f *fakeAcquirer) Fetch(ctx context.Context, pageURL string) (core.RawContent, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return core.RawContent{}, f.err
	}
	return core.RawContent{URL: pageURL, Text: "article body", Title: "fallback title"}, nil
}

type fakeClassifier struct {
	res core.ClassificationResult
	err error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (core.ClassificationResult, error) {
	return f.res, f.err
}

type fixedScorer struct{ score int }

func (f fixedScorer) Score(core.ClassificationResult) int { return f.score }

func testController(acq ContentAcquirer, cls Classifier, s Scorer) (*Controller, *metrics.Collector) {
	m := metrics.NewCollector(0, 0)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewController(acq, cls, s, m, log), m
}

func TestProcess(t *testing.T) {
	cls := &fakeClassifier{res: core.ClassificationResult{
		Title:      "Bank profits surge",
		Summary:    "Profits were up across the sector.",
		Tickers:    []string{"BBCA.JK"},
		Sector:     "financials",
		Dimensions: core.EmptyDimensions(),
	}}
	c, m := testController(&fakeAcquirer{}, cls, fixedScorer{score: 42})

	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	a, err := c.Process(context.Background(), "https://news.example.com/banks", ts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if a.Title != "Bank profits surge" || a.Body != "Profits were up across the sector." {
		t.Errorf("unexpected article content: %+v", a)
	}
	if a.Score != 42 {
		t.Errorf("score = %d, want 42", a.Score)
	}
	if !a.Timestamp.Equal(ts) {
		t.Errorf("timestamp should pass through unchanged, got %v", a.Timestamp)
	}

	for _, op := range []string{OpScraping, OpClassify, OpTotal} {
		r := m.ReportFor(op)
		if !r.Found || r.TotalCalls != 1 || r.SuccessCount != 1 {
			t.Errorf("metric %s not recorded: %+v", op, r)
		}
	}
}

func TestProcessTitleFallback(t *testing.T) {
	cls := &fakeClassifier{res: core.ClassificationResult{Dimensions: core.EmptyDimensions()}}
	c, _ := testController(&fakeAcquirer{}, cls, fixedScorer{})

	a, err := c.Process(context.Background(), "https://news.example.com/x", time.Now())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if a.Title != "fallback title" {
		t.Errorf("expected extracted page title as fallback, got %q", a.Title)
	}
}

func TestProcessFetchError(t *testing.T) {
	boom := errors.New("host unreachable")
	c, m := testController(&fakeAcquirer{err: boom}, &fakeClassifier{}, fixedScorer{})

	if _, err := c.Process(context.Background(), "https://news.example.com/x", time.Now()); !errors.Is(err, boom) {
		t.Fatalf("fetch error should pass through, got %v", err)
	}
	if r := m.ReportFor(OpTotal); r.ErrorCount != 1 {
		t.Errorf("total metric should record the failure: %+v", r)
	}
	if r := m.ReportFor(OpClassify); r.Found {
		t.Error("classification metric should not exist when fetch fails")
	}
}

func TestProcessEmptyURL(t *testing.T) {
	acq := &fakeAcquirer{}
	c, _ := testController(acq, &fakeClassifier{}, fixedScorer{})

	if _, err := c.Process(context.Background(), "  ", time.Now()); err == nil {
		t.Fatal("expected error for empty URL")
	}
	if acq.calls.Load() != 0 {
		t.Error("empty URL must not reach the acquirer")
	}
}

func TestProcessDeduplicatesInFlight(t *testing.T) {
	acq := &fakeAcquirer{delay: 50 * time.Millisecond}
	cls := &fakeClassifier{res: core.ClassificationResult{Dimensions: core.EmptyDimensions()}}
	c, _ := testController(acq, cls, fixedScorer{score: 7})

	// Cosmetically different spellings of the same URL must share one run.
	urls := []string{
		"https://news.example.com/a",
		"https://News.Example.com/a/",
		"https://news.example.com/a?utm_source=x",
	}

	var wg sync.WaitGroup
	results := make([]*core.Article, len(urls)*3)
	for i := 0; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := c.Process(context.Background(), urls[i%len(urls)], time.Now())
			if err != nil {
				t.Errorf("Process: %v", err)
				return
			}
			results[i] = a
		}(i)
	}
	wg.Wait()

	if got := acq.calls.Load(); got != 1 {
		t.Errorf("expected exactly one pipeline run, got %d fetches", got)
	}
	for i, a := range results {
		if a == nil || a.Score != 7 {
			t.Errorf("result %d missing or wrong: %+v", i, a)
		}
	}
}
