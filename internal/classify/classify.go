// Package classify orchestrates the classification of article text: four
// sub-tasks (title/summary, tags, tickers, dimensions with sentiment) run
// concurrently against the text-analysis capability and their outputs are
// normalized and merged. Partial success is the expected common case; the
// whole call fails only when every sub-task does.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"marketwire/internal/core"
	"marketwire/internal/llm"
	"marketwire/internal/refdata"
)

// Analyzer is the external text-analysis capability. It is treated as
// unreliable: it may time out, return malformed output, or hallucinate.
type Analyzer interface {
	Analyze(ctx context.Context, req llm.Request) (string, error)
}

// ClassificationError reports that every classification sub-task failed or
// timed out. Individual sub-task failures are absorbed, not propagated.
type ClassificationError struct {
	Stages []string // names of the failed sub-tasks
	Err    error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed (%s): %v", strings.Join(e.Stages, ", "), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// DefaultDeadline bounds one whole Classify call.
const DefaultDeadline = 60 * time.Second

// Orchestrator fans the sub-tasks out and merges their results.
type Orchestrator struct {
	analyzer Analyzer
	ref      *refdata.Data
	deadline time.Duration
	log      *slog.Logger
}

// NewOrchestrator creates an orchestrator. A non-positive deadline falls
// back to DefaultDeadline.
func NewOrchestrator(analyzer Analyzer, ref *refdata.Data, deadline time.Duration, log *slog.Logger) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{
		analyzer: analyzer,
		ref:      ref,
		deadline: deadline,
		log:      log,
	}
}

// subtask names, also used as failure stages.
const (
	stageSummary    = "title_summary"
	stageTags       = "tags"
	stageTickers    = "tickers"
	stageDimensions = "dimensions"
)

// Classify runs the four sub-tasks concurrently and merges their output.
// A sub-task that fails or misses the deadline only defaults its own field.
func (o *Orchestrator) Classify(ctx context.Context, text string) (core.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	vocab := llm.Vocabulary{
		Tags:       o.ref.Tags(),
		Tickers:    o.ref.TickerSymbols(),
		SubSectors: o.ref.SubSectorSlugs(),
	}

	var (
		title, summary       string
		rawTags, rawTickers  string
		dims                 map[string]*int
		sentiment, subSector string
		errs                 [4]error
	)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		var titleErr, summaryErr error
		title, titleErr = o.analyzer.Analyze(ctx, llm.Request{Kind: llm.PromptTitle, Text: text})
		summary, summaryErr = o.analyzer.Analyze(ctx, llm.Request{Kind: llm.PromptSummary, Text: text})
		if titleErr != nil && summaryErr != nil {
			errs[0] = errors.Join(titleErr, summaryErr)
		}
	}()

	go func() {
		defer wg.Done()
		rawTags, errs[1] = o.analyzer.Analyze(ctx, llm.Request{Kind: llm.PromptTags, Text: text, Vocab: vocab})
	}()

	go func() {
		defer wg.Done()
		rawTickers, errs[2] = o.analyzer.Analyze(ctx, llm.Request{Kind: llm.PromptTickers, Text: text, Vocab: vocab})
	}()

	go func() {
		defer wg.Done()
		var raw string
		raw, errs[3] = o.analyzer.Analyze(ctx, llm.Request{Kind: llm.PromptDimensions, Text: text, Vocab: vocab})
		if errs[3] == nil {
			dims, sentiment, subSector = parseDimensions(raw)
		}
	}()

	wg.Wait()

	stages := []string{stageSummary, stageTags, stageTickers, stageDimensions}
	var failed []string
	var failures []error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, stages[i])
			failures = append(failures, err)
			o.log.Warn("classification sub-task failed", "stage", stages[i], "error", err)
		}
	}
	if len(failed) == len(stages) {
		return core.ClassificationResult{}, &ClassificationError{
			Stages: failed,
			Err:    errors.Join(failures...),
		}
	}

	res := core.ClassificationResult{
		Title:      strings.TrimSpace(title),
		Summary:    strings.TrimSpace(summary),
		Tags:       NormalizeTags(splitList(rawTags), o.ref.Tags()),
		Tickers:    NormalizeTickers(splitList(rawTickers), o.ref),
		Dimensions: core.EmptyDimensions(),
	}
	for k, v := range dims {
		res.Dimensions[k] = v
	}
	if sentiment != "" {
		res.Tags = appendUnique(res.Tags, sentiment)
	}

	res.SubSectors = o.resolveSubSectors(res.Tickers, subSector)
	res.Sector = o.resolveSector(res.SubSectors)
	return res, nil
}

// resolveSubSectors prefers the sub-sectors of the validated tickers'
// companies; only without any ticker does the model's own prediction count.
func (o *Orchestrator) resolveSubSectors(tickers []string, predicted string) []string {
	var out []string
	for _, t := range tickers {
		if ss := o.ref.SubSectorOf(t); ss != "" {
			out = appendUnique(out, ss)
		}
	}
	if len(out) > 0 {
		return out
	}

	predicted = strings.ToLower(strings.TrimSpace(predicted))
	if predicted == "" {
		return nil
	}
	return []string{predicted}
}

func (o *Orchestrator) resolveSector(subSectors []string) string {
	for _, ss := range subSectors {
		if sector := o.ref.SectorOf(ss); sector != "" {
			return sector
		}
	}
	return ""
}
