package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// errNoContent marks attempts where the page was reachable but produced no
// usable text, as opposed to network failures.
var errNoContent = errors.New("no usable content")

// statusError reports a non-2xx response.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}

// browserHeaders help avoid trivial bot blocks on news sites.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Connection":      "keep-alive",
	"Cache-Control":   "max-age=0",
}

func fetchHTML(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid request for %s: %w", pageURL, err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{Code: resp.StatusCode}
	}
	return readBody(resp)
}

// readabilityStrategy runs the page through a readability extractor to strip
// boilerplate and keep the main article body.
type readabilityStrategy struct {
	client *http.Client
}

func (s *readabilityStrategy) Name() string { return "readability" }

func (s *readabilityStrategy) Attempt(ctx context.Context, pageURL string) (string, string, error) {
	html, err := fetchHTML(ctx, s.client, pageURL)
	if err != nil {
		return "", "", err
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", "", fmt.Errorf("readability: %w", err)
	}

	text := collapseWhitespace(article.TextContent)
	if text == "" {
		return "", "", fmt.Errorf("readability yielded nothing: %w", errNoContent)
	}
	return text, strings.TrimSpace(article.Title), nil
}

// mainContentSelectors are tried in order by the selector strategy.
var mainContentSelectors = []string{
	"article", "main",
	".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
	"[role='main']",
	".content", "#content",
}

// selectorStrategy is a generic HTML-text fallback: remove non-content
// elements, then walk common content containers collecting block text.
type selectorStrategy struct {
	client *http.Client
}

func (s *selectorStrategy) Name() string { return "selectors" }

func (s *selectorStrategy) Attempt(ctx context.Context, pageURL string) (string, string, error) {
	html, err := fetchHTML(ctx, s.client, pageURL)
	if err != nil {
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	var b strings.Builder
	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
				if t := strings.TrimSpace(item.Text()); t != "" {
					b.WriteString(t)
					b.WriteString("\n\n")
				}
			})
		})
		if b.Len() > 0 {
			break
		}
	}
	if b.Len() == 0 {
		doc.Find("body").Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, item *goquery.Selection) {
			if t := strings.TrimSpace(item.Text()); t != "" {
				b.WriteString(t)
				b.WriteString("\n\n")
			}
		})
	}

	text := collapseWhitespace(b.String())
	if text == "" {
		return "", "", fmt.Errorf("no content selectors matched: %w", errNoContent)
	}
	return text, extractTitle(doc), nil
}

// metadataStrategy is the last resort: page metadata (OpenGraph, Twitter
// Card, meta description) gives at least a title and a short description.
type metadataStrategy struct {
	client *http.Client
}

func (s *metadataStrategy) Name() string { return "metadata" }

func (s *metadataStrategy) lenient() bool { return true }

func (s *metadataStrategy) Attempt(ctx context.Context, pageURL string) (string, string, error) {
	html, err := fetchHTML(ctx, s.client, pageURL)
	if err != nil {
		return "", "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	desc := firstNonEmpty(
		metaContent(doc, "meta[property='og:description']"),
		metaContent(doc, "meta[name='twitter:description']"),
		metaContent(doc, "meta[name='description']"),
		metaContent(doc, "meta[itemprop='description']"),
	)
	if desc == "" {
		return "", "", fmt.Errorf("no descriptive metadata: %w", errNoContent)
	}
	return desc, extractTitle(doc), nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func extractTitle(doc *goquery.Document) string {
	candidates := []string{
		metaContent(doc, "meta[property='og:title']"),
		metaContent(doc, "meta[name='twitter:title']"),
		strings.TrimSpace(doc.Find("head title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	}
	return firstNonEmpty(candidates...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var multiNewline = regexp.MustCompile(`\n{3,}`)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
