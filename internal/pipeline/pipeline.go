// Package pipeline wires acquisition, classification, and scoring into the
// single-article processing flow. Concurrent requests for the same URL are
// collapsed onto one in-flight run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"marketwire/internal/cache"
	"marketwire/internal/core"
	"marketwire/internal/metrics"
)

// Metric operation names recorded per processed article.
const (
	OpScraping = "web_scraping"
	OpClassify = "classification_and_scoring"
	OpTotal    = "generate_article_total"
)

// ContentAcquirer turns a URL into article text.
type ContentAcquirer interface {
	Fetch(ctx context.Context, pageURL string) (core.RawContent, error)
}

// Classifier enriches article text with title, summary, tags, tickers,
// sectors, and dimension scores.
type Classifier interface {
	Classify(ctx context.Context, text string) (core.ClassificationResult, error)
}

// Scorer computes the final article score from a classification.
type Scorer interface {
	Score(res core.ClassificationResult) int
}

// Controller runs the per-article pipeline.
type Controller struct {
	acquirer ContentAcquirer
	classify Classifier
	scorer   Scorer
	metrics  *metrics.Collector
	flight   singleflight.Group
	log      *slog.Logger
}

func NewController(acquirer ContentAcquirer, classifier Classifier, scorer Scorer, m *metrics.Collector, log *slog.Logger) *Controller {
	return &Controller{
		acquirer: acquirer,
		classify: classifier,
		scorer:   scorer,
		metrics:  m,
		log:      log,
	}
}

// Process runs the full pipeline for one article URL. Concurrent calls for
// the same URL (after normalization) share a single run and all receive its
// result. The timestamp is passed through to the article unchanged.
func (c *Controller) Process(ctx context.Context, source string, timestamp time.Time) (*core.Article, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty source URL")
	}

	v, err, shared := c.flight.Do(cache.Normalize(source), func() (any, error) {
		return c.run(ctx, source, timestamp)
	})
	if shared {
		c.log.Debug("joined in-flight run", "url", source)
	}
	if err != nil {
		return nil, err
	}
	return v.(*core.Article), nil
}

func (c *Controller) run(ctx context.Context, source string, timestamp time.Time) (*core.Article, error) {
	start := time.Now()
	c.log.Info("processing article", "url", source)

	fetchStart := time.Now()
	content, err := c.acquirer.Fetch(ctx, source)
	c.metrics.Observe(OpScraping, fetchStart, err)
	if err != nil {
		c.metrics.Observe(OpTotal, start, err)
		return nil, err
	}

	classifyStart := time.Now()
	res, err := c.classify.Classify(ctx, content.Text)
	if err != nil {
		c.metrics.Observe(OpClassify, classifyStart, err)
		c.metrics.Observe(OpTotal, start, err)
		return nil, err
	}
	score := c.scorer.Score(res)
	c.metrics.Observe(OpClassify, classifyStart, nil)

	article := &core.Article{
		Title:      res.Title,
		Body:       res.Summary,
		Source:     source,
		Timestamp:  timestamp,
		Sector:     res.Sector,
		SubSectors: res.SubSectors,
		Tags:       res.Tags,
		Tickers:    res.Tickers,
		Dimensions: res.Dimensions,
		Score:      score,
	}
	if article.Title == "" {
		article.Title = content.Title
	}

	c.metrics.Observe(OpTotal, start, nil)
	c.log.Info("article processed",
		"url", source,
		"score", score,
		"tickers", len(article.Tickers),
		"duration", time.Since(start))
	return article, nil
}
