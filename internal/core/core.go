package core

import "time"

// Market-relevance dimensions scored independently for every article.
// Values are integers in the 0-10 range when present; a nil value means
// the dimension was not scored.
const (
	DimensionValuation      = "valuation"
	DimensionFuture         = "future"
	DimensionTechnical      = "technical"
	DimensionFinancials     = "financials"
	DimensionDividend       = "dividend"
	DimensionManagement     = "management"
	DimensionOwnership      = "ownership"
	DimensionSustainability = "sustainability"
)

// DimensionKeys lists every valid dimension name in canonical order.
var DimensionKeys = []string{
	DimensionValuation,
	DimensionFuture,
	DimensionTechnical,
	DimensionFinancials,
	DimensionDividend,
	DimensionManagement,
	DimensionOwnership,
	DimensionSustainability,
}

// EmptyDimensions returns a dimension map with every key present and unscored.
func EmptyDimensions() map[string]*int {
	m := make(map[string]*int, len(DimensionKeys))
	for _, k := range DimensionKeys {
		m[k] = nil
	}
	return m
}

// RawContent is the cleaned text fetched from a news URL. It is transient:
// it lives for one pipeline run, except when shared read-only through the
// content cache.
type RawContent struct {
	URL          string    `json:"url"`           // The URL the content was fetched from
	Text         string    `json:"text"`          // Cleaned article text
	Title        string    `json:"title"`         // Page title, if a strategy could extract one
	FetchedAt    time.Time `json:"fetched_at"`    // Timestamp of the fetch
	StrategyUsed string    `json:"strategy_used"` // Name of the extraction strategy that produced the text
}

// ClassificationResult holds the merged output of the classification sub-tasks.
type ClassificationResult struct {
	Title      string          `json:"title"`      // Generated one-sentence title
	Summary    string          `json:"summary"`    // Generated short summary
	Tags       []string        `json:"tags"`       // Deduplicated tags, order-irrelevant
	Tickers    []string        `json:"tickers"`    // Validated ticker symbols (uppercased, .JK suffixed)
	Sector     string          `json:"sector"`     // Sector derived from the first matched sub-sector
	SubSectors []string        `json:"sub_sector"` // Sub-sector slugs, possibly several per article
	Dimensions map[string]*int `json:"dimension"`  // Dimension name -> score (nil when unscored)
}

// Article is the final product of one pipeline run.
type Article struct {
	ID         int64           `json:"id,omitempty"` // Record store id, zero until persisted
	Title      string          `json:"title"`        // Article title
	Body       string          `json:"body"`         // Summarized article body
	Source     string          `json:"source"`       // Source URL
	Timestamp  time.Time       `json:"timestamp"`    // Publication timestamp supplied by the caller
	Sector     string          `json:"sector"`       // Sector classification
	SubSectors []string        `json:"sub_sector"`   // Sub-sector classifications
	Tags       []string        `json:"tags"`         // Tags including the sentiment label
	Tickers    []string        `json:"tickers"`      // Validated ticker symbols
	Dimensions map[string]*int `json:"dimension"`    // Dimension scores
	Score      int             `json:"score"`        // Relevance score, nominally 0-150 but not capped
}

// TaskStatus is the lifecycle state of a batch task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// BatchItem is one (url, timestamp) pair submitted as part of a batch.
type BatchItem struct {
	Source    string    `json:"source"`    // Article URL to process
	Timestamp time.Time `json:"timestamp"` // Publication timestamp for the article
}

// BatchItemResult records the outcome of one batch item. Exactly one of
// Article and Error is set.
type BatchItemResult struct {
	Index   int      `json:"index"`             // Index of the item in the submitted list
	Article *Article `json:"article,omitempty"` // Successful result
	Error   string   `json:"error,omitempty"`   // Failure message for this item only
}

// BatchTask tracks a batch submission. Item results may arrive out of
// submission order; each result is attributable through its index.
type BatchTask struct {
	ID          string                  `json:"task_id"`                // Unique task identifier
	Items       []BatchItem             `json:"items"`                  // Submitted items in order
	Status      TaskStatus              `json:"status"`                 // Current state
	Results     map[int]BatchItemResult `json:"results"`                // Item index -> outcome
	CreatedAt   time.Time               `json:"created_at"`             // Submission time
	CompletedAt *time.Time              `json:"completed_at,omitempty"` // Set once every item has an outcome
}

// Done reports whether every submitted item has a recorded outcome.
func (t *BatchTask) Done() bool {
	return len(t.Results) == len(t.Items)
}
