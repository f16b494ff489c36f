// Package fetch acquires and cleans article text from news URLs. An ordered
// list of extraction strategies is attempted until one yields usable text;
// successful fetches populate the shared content cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"marketwire/internal/cache"
	"marketwire/internal/core"
)

// Reason classifies why acquisition failed for a URL.
type Reason string

const (
	ReasonUnreachable  Reason = "unreachable"   // network error or non-2xx on every attempt
	ReasonBlocked      Reason = "blocked"       // the source refused us (401/403/429)
	ReasonEmpty        Reason = "empty"         // page fetched but no usable text found
	ReasonParseFailure Reason = "parse_failure" // page fetched but no strategy could parse it
)

// AcquisitionError reports that every extraction strategy was exhausted.
// It is terminal for the URL; retrying is the caller's decision.
type AcquisitionError struct {
	URL    string
	Reason Reason
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("content acquisition failed for %s (%s): %v", e.URL, e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Strategy extracts cleaned article text from a URL. Attempt returns
// errNoContent-wrapped errors when the page was reachable but yielded
// nothing usable, so the acquirer can distinguish empty from unreachable.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, pageURL string) (text, title string, err error)
}

// DefaultMinTextLength is the minimum cleaned-text size accepted from the
// full-content strategies.
const DefaultMinTextLength = 200

// Acquirer fetches article content, consulting the content cache first and
// walking its strategies in order on a miss.
type Acquirer struct {
	strategies []Strategy
	cache      *cache.ContentCache
	timeout    time.Duration
	minLength  int
	log        *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithTimeout sets the per-strategy attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Acquirer) { a.timeout = d }
}

// WithMinTextLength sets the minimum accepted cleaned-text length.
func WithMinTextLength(n int) Option {
	return func(a *Acquirer) { a.minLength = n }
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(a *Acquirer) { a.strategies = s }
}

// New creates an Acquirer with the default strategy chain: readability
// extraction, then a generic content-selector walk, then page metadata.
func New(contentCache *cache.ContentCache, log *slog.Logger, opts ...Option) *Acquirer {
	client := &http.Client{
		// Per-attempt deadlines come from the context; this is a hard cap.
		Timeout: 60 * time.Second,
	}

	a := &Acquirer{
		strategies: []Strategy{
			&readabilityStrategy{client: client},
			&selectorStrategy{client: client},
			&metadataStrategy{client: client},
		},
		cache:     contentCache,
		timeout:   20 * time.Second,
		minLength: DefaultMinTextLength,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch returns cleaned article content for the URL. The cache is consulted
// first; on a miss each strategy gets one attempt under its own timeout, and
// the first to yield text meeting the length threshold wins. All strategies
// failing is an AcquisitionError.
func (a *Acquirer) Fetch(ctx context.Context, pageURL string) (core.RawContent, error) {
	if rc, ok := a.cache.Get(pageURL); ok {
		a.log.Debug("content cache hit", "url", pageURL, "strategy", rc.StrategyUsed)
		return rc, nil
	}

	var attemptErrs []error
	sawBlocked := false
	sawReachable := false

	for _, strat := range a.strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		text, title, err := strat.Attempt(attemptCtx, pageURL)
		cancel()

		if err != nil {
			a.log.Warn("extraction strategy failed",
				"url", pageURL, "strategy", strat.Name(), "error", err)
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strat.Name(), err))
			var se *statusError
			if errors.As(err, &se) {
				sawReachable = true
				if se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden || se.Code == http.StatusTooManyRequests {
					sawBlocked = true
				}
			}
			if errors.Is(err, errNoContent) {
				sawReachable = true
			}
			continue
		}

		sawReachable = true
		if len(text) < a.minLength && !strategyLenient(strat) {
			a.log.Debug("strategy text below threshold",
				"url", pageURL, "strategy", strat.Name(), "length", len(text))
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strat.Name(), errNoContent))
			continue
		}
		if text == "" {
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", strat.Name(), errNoContent))
			continue
		}

		rc := core.RawContent{
			URL:          pageURL,
			Text:         text,
			Title:        title,
			FetchedAt:    time.Now().UTC(),
			StrategyUsed: strat.Name(),
		}
		a.cache.Put(pageURL, rc)
		a.log.Info("content acquired",
			"url", pageURL, "strategy", strat.Name(), "length", len(text))
		return rc, nil
	}

	reason := ReasonUnreachable
	switch {
	case sawBlocked:
		reason = ReasonBlocked
	case sawReachable:
		reason = ReasonEmpty
	}
	return core.RawContent{}, &AcquisitionError{
		URL:    pageURL,
		Reason: reason,
		Err:    errors.Join(attemptErrs...),
	}
}

// lenient lets strategies opt out of the minimum-length threshold.
// Page metadata is short by nature but still better than nothing.
type lenientStrategy interface{ lenient() bool }

func strategyLenient(s Strategy) bool {
	if l, ok := s.(lenientStrategy); ok {
		return l.lenient()
	}
	return false
}

func readBody(resp *http.Response) (string, error) {
	const maxBody = 8 << 20 // cap page size at 8 MiB
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
