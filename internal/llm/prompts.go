package llm

import (
	"fmt"
	"strings"
)

// PromptKind names one classification sub-task sent to the text-analysis
// capability.
type PromptKind string

const (
	PromptTitle      PromptKind = "title"
	PromptSummary    PromptKind = "summary"
	PromptTags       PromptKind = "tags"
	PromptTickers    PromptKind = "tickers"
	PromptDimensions PromptKind = "dimensions"
)

// Vocabulary carries the known-value lists embedded into classification
// prompts so the model picks from real tags, tickers, and sub-sectors.
type Vocabulary struct {
	Tags       []string
	Tickers    []string
	SubSectors []string
}

// Request is one analyze call: a prompt kind, the article text, and the
// vocabulary the prompt may reference.
type Request struct {
	Kind  PromptKind
	Text  string
	Vocab Vocabulary
}

const titlePrompt = `Provide a one sentence title for the news article, that is not misleading and should give a general understanding of the article. Give the title without quotation marks.

News:
%s`

const summaryPrompt = `Provide a concise, easily readable, maximum 2 sentences summary of the news article, highlighting the main points, key events, and any significant outcomes with a focus on financial metrics, excluding unnecessary details and noise. For every mentioned company name in the format 'Company Name (TICKER)', write it as it is. Give the summary without an intro.

News:
%s`

const tagsPrompt = `Classify the following news article into tags. Choose only from this list, and answer with the matching tags as a comma separated list with no explanation. If nothing fits, answer with an empty line.

Tags: %s

News:
%s`

const tickersPrompt = `List the stock ticker codes of every company explicitly mentioned in the following news article. Choose only from this list of known tickers, and answer as a comma separated list with no explanation. If no listed company is mentioned, answer with an empty line.

Tickers: %s

News:
%s`

const dimensionsPrompt = `Rate the following news article on each dimension from 0 to 10, where 0 means the dimension is not discussed at all and 10 means it is the central subject. Then name the overall sentiment for investors (bullish, bearish, or neutral) and the single best matching sub-sector.

Answer with exactly these lines, one per dimension, in the form "name: value", with no explanation:
valuation: <0-10>
future: <0-10>
technical: <0-10>
financials: <0-10>
dividend: <0-10>
management: <0-10>
ownership: <0-10>
sustainability: <0-10>
sentiment: <bullish|bearish|neutral>
sub_sector: <one of: %s>

Article:
%s`

func buildPrompt(req Request) (string, error) {
	switch req.Kind {
	case PromptTitle:
		return fmt.Sprintf(titlePrompt, req.Text), nil
	case PromptSummary:
		return fmt.Sprintf(summaryPrompt, req.Text), nil
	case PromptTags:
		return fmt.Sprintf(tagsPrompt, strings.Join(req.Vocab.Tags, ", "), req.Text), nil
	case PromptTickers:
		return fmt.Sprintf(tickersPrompt, strings.Join(req.Vocab.Tickers, ", "), req.Text), nil
	case PromptDimensions:
		return fmt.Sprintf(dimensionsPrompt, strings.Join(req.Vocab.SubSectors, ", "), req.Text), nil
	default:
		return "", fmt.Errorf("unknown prompt kind %q", req.Kind)
	}
}
