package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"marketwire/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleArticle(source string) *core.Article {
	seven := 7
	dims := core.EmptyDimensions()
	dims[core.DimensionFinancials] = &seven
	return &core.Article{
		Title:      "BCA earnings beat expectations",
		Body:       "Net income rose on strong loan growth.",
		Source:     source,
		Timestamp:  time.Date(2024, 4, 22, 10, 0, 0, 0, time.UTC),
		Sector:     "financials",
		SubSectors: []string{"banks"},
		Tags:       []string{"earnings-report", "bullish"},
		Tickers:    []string{"BBCA.JK"},
		Dimensions: dims,
		Score:      88,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)

	a := sampleArticle("https://news.example.com/bca")
	if err := s.Insert(a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("Insert should assign an ID")
	}

	got, err := s.Get(a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != a.Title || got.Source != a.Source || got.Score != 88 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.SubSectors) != 1 || got.SubSectors[0] != "banks" {
		t.Errorf("sub-sectors mismatch: %v", got.SubSectors)
	}
	if v := got.Dimensions[core.DimensionFinancials]; v == nil || *v != 7 {
		t.Errorf("dimensions mismatch: %v", got.Dimensions)
	}
	if v := got.Dimensions[core.DimensionValuation]; v != nil {
		t.Errorf("unscored dimension should stay null, got %v", *v)
	}
}

func TestInsertDuplicateSource(t *testing.T) {
	s := newTestStore(t)

	first := sampleArticle("https://news.example.com/dup")
	if err := s.Insert(first); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := s.Insert(sampleArticle("https://news.example.com/dup"))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.ExistingID != first.ID {
		t.Errorf("duplicate should name the existing row: got %d, want %d", dup.ExistingID, first.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)

	bank := sampleArticle("https://news.example.com/1")
	telco := sampleArticle("https://news.example.com/2")
	telco.SubSectors = []string{"telecommunication"}
	telco.Timestamp = telco.Timestamp.Add(time.Hour)
	for _, a := range []*core.Article{bank, telco} {
		if err := s.Insert(a); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	all, err := s.List(ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(all))
	}
	// Newest first.
	if all[0].ID != telco.ID {
		t.Errorf("expected newest article first, got id %d", all[0].ID)
	}

	banks, err := s.List(ListFilter{SubSector: "banks"})
	if err != nil {
		t.Fatalf("List(banks): %v", err)
	}
	if len(banks) != 1 || banks[0].ID != bank.ID {
		t.Errorf("sub-sector filter mismatch: %+v", banks)
	}

	byID, err := s.List(ListFilter{ID: telco.ID})
	if err != nil {
		t.Fatalf("List(id): %v", err)
	}
	if len(byID) != 1 || byID[0].ID != telco.ID {
		t.Errorf("id filter mismatch: %+v", byID)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)

	a := sampleArticle("https://news.example.com/up")
	if err := s.Insert(a); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	a.Title = "Revised title"
	a.Score = 95
	if err := s.Update(a); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get(a.ID)
	if got.Title != "Revised title" || got.Score != 95 {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := sampleArticle("https://news.example.com/none")
	missing.ID = 12345
	if err := s.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	a := sampleArticle("https://news.example.com/d1")
	b := sampleArticle("https://news.example.com/d2")
	for _, art := range []*core.Article{a, b} {
		if err := s.Insert(art); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	n, err := s.Delete(a.ID, b.ID, 999)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows deleted, got %d", n)
	}
	if _, err := s.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Error("deleted article should be gone")
	}
}

func TestRequestLogRetention(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().UTC().Add(-8 * 24 * time.Hour)
	for i := 0; i < 60; i++ {
		entry := RequestLog{Timestamp: old, Method: "POST", Path: "/url-article", Status: 200, Duration: 12.5}
		if err := s.LogRequest(entry); err != nil {
			t.Fatalf("LogRequest: %v", err)
		}
	}
	// Still under the row threshold, nothing trimmed yet.
	logs, err := s.ListLogs(200)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(logs) != 60 {
		t.Fatalf("expected 60 logs, got %d", len(logs))
	}

	// Pushing past the threshold with fresh rows trims only the stale ones.
	for i := 0; i < 50; i++ {
		entry := RequestLog{Timestamp: time.Now().UTC(), Method: "GET", Path: fmt.Sprintf("/articles/%d", i), Status: 200}
		if err := s.LogRequest(entry); err != nil {
			t.Fatalf("LogRequest: %v", err)
		}
	}
	logs, _ = s.ListLogs(200)
	if len(logs) != 50 {
		t.Errorf("expected stale rows trimmed leaving 50, got %d", len(logs))
	}
	for _, l := range logs {
		if l.Method != "GET" {
			t.Errorf("old row survived the trim: %+v", l)
		}
	}
}
