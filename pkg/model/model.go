package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Platform identifies an AI-answer platform whose response text is scraped.
type Platform string

const (
	PlatformChatGPT    Platform = "chatgpt"
	PlatformPerplexity Platform = "perplexity"
	PlatformGoogleAI   Platform = "google_ai"
)

// AllPlatforms returns every known platform in a stable order.
func AllPlatforms() []Platform {
	return []Platform{PlatformChatGPT, PlatformPerplexity, PlatformGoogleAI}
}

func (p Platform) String() string { return string(p) }

// QueryPriority orders queries within a pipeline run.
type QueryPriority string

const (
	PriorityHigh   QueryPriority = "high"
	PriorityMedium QueryPriority = "medium"
	PriorityLow    QueryPriority = "low"
)

// QueryCategory classifies a monitored query.
type QueryCategory string

const (
	CategoryProductComparison QueryCategory = "product_comparison"
	CategoryBrandSearch       QueryCategory = "brand_search"
	CategoryCategorySearch    QueryCategory = "category_search"
	CategoryGeneral           QueryCategory = "general"
)

// PipelineStatus is the terminal (or running) state of a pipeline run.
type PipelineStatus string

const (
	StatusRunning    PipelineStatus = "running"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
	StatusCostHalted PipelineStatus = "cost_halted"
)

// ScorePeriod is the aggregation granularity of a stored score.
type ScorePeriod string

const (
	PeriodRaw     ScorePeriod = "raw"
	PeriodDaily   ScorePeriod = "daily"
	PeriodWeekly  ScorePeriod = "weekly"
	PeriodMonthly ScorePeriod = "monthly"
)

// MaxQueryTextLen bounds vis_query.query_text.
const MaxQueryTextLen = 500

// Query is one monitored search phrase with its tracked brand list.
type Query struct {
	ID        int64         `db:"id"`
	QueryText string        `db:"query_text"`
	Category  QueryCategory `db:"category"`
	Priority  QueryPriority `db:"priority"`
	Brands    []string      `db:"-"`
	IsActive  bool          `db:"is_active"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// Validate checks the admin-supplied fields before insert.
func (q Query) Validate() error {
	if strings.TrimSpace(q.QueryText) == "" {
		return errors.New("query text must not be empty")
	}
	if n := len([]rune(q.QueryText)); n > MaxQueryTextLen {
		return errors.Errorf("query text is %d chars, max %d", n, MaxQueryTextLen)
	}
	seen := make(map[string]struct{}, len(q.Brands))
	for _, b := range q.Brands {
		lower := strings.ToLower(b)
		if _, ok := seen[lower]; ok {
			return errors.Errorf("duplicate brand %q", b)
		}
		seen[lower] = struct{}{}
	}
	return nil
}

// Brand is a tracked entity, unique by lowercased name. The primary brand
// anchors competitive-gap computation.
type Brand struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	IsPrimary bool      `db:"is_primary"`
	CreatedAt time.Time `db:"created_at"`
}

// Ranking is one observation of one brand within the AI answer for a single
// (query, platform) scrape. Immutable after insert.
type Ranking struct {
	ID            int64     `db:"id"`
	QueryID       int64     `db:"query_id"`
	Platform      Platform  `db:"platform"`
	Brand         string    `db:"brand"`
	RankPosition  int       `db:"rank_position"`
	Snippet       string    `db:"snippet"`
	SnapshotID    string    `db:"snapshot_id"`
	ScrapedAt     time.Time `db:"scraped_at"`
	PipelineRunID int64     `db:"pipeline_run_id"`
}

// Score is a weighted visibility number for one brand on one query.
// CompetitiveGap is populated only on the primary brand's row.
type Score struct {
	ID              int64       `db:"id"`
	QueryID         int64       `db:"query_id"`
	Brand           string      `db:"brand"`
	VisibilityScore float64     `db:"visibility_score"`
	CompetitiveGap  *float64    `db:"competitive_gap"`
	Period          ScorePeriod `db:"period"`
	ComputedAt      time.Time   `db:"computed_at"`
}

// PipelineRun records one invocation of a flow end to end.
type PipelineRun struct {
	ID              int64          `db:"id"`
	FlowName        string         `db:"flow_name"`
	Status          PipelineStatus `db:"status"`
	QueriesTotal    int            `db:"queries_total"`
	SuccessCount    int            `db:"success_count"`
	FailureCount    int            `db:"failure_count"`
	QuarantineCount int            `db:"quarantine_count"`
	CostUSD         float64        `db:"cost_usd"`
	DurationSec     *float64       `db:"duration_sec"`
	ErrorDetail     *string        `db:"error_detail"`
	StartedAt       time.Time      `db:"started_at"`
	CompletedAt     *time.Time     `db:"completed_at"`
}

// SnapshotMetadata carries transport-level facts about a scrape.
type SnapshotMetadata struct {
	URL           string `bson:"url"`
	StatusCode    int    `bson:"status_code"`
	ContentLength int    `bson:"content_length"`
}

// Snapshot is the immutable raw platform response for one scrape,
// stored in the document store with a 90 day TTL.
type Snapshot struct {
	ID               string           `bson:"_id,omitempty"`
	QueryText        string           `bson:"query_text"`
	Platform         Platform         `bson:"platform"`
	RawContent       string           `bson:"raw_content"`
	ContentHash      string           `bson:"content_hash"`
	ScrapedAt        time.Time        `bson:"scraped_at"`
	ScrapeDurationMS int64            `bson:"scrape_duration_ms"`
	Metadata         SnapshotMetadata `bson:"metadata"`
}

// QuarantineRecord is a failed scrape whose content was unusable,
// stored in the document store with a 30 day TTL.
type QuarantineRecord struct {
	ID          string    `bson:"_id,omitempty"`
	QueryID     int64     `bson:"query_id"`
	Platform    Platform  `bson:"platform"`
	ErrorKind   string    `bson:"error_kind"`
	ErrorDetail string    `bson:"error_detail"`
	RawContent  string    `bson:"raw_content"`
	CreatedAt   time.Time `bson:"created_at"`
}

// TimeseriesRank is a narrow row inserted per successful ranking with
// rank >= 1, consumed by the continuous-aggregate views.
type TimeseriesRank struct {
	Time            time.Time `db:"time"`
	QueryID         int64     `db:"query_id"`
	Platform        Platform  `db:"platform"`
	Brand           string    `db:"brand"`
	RankPosition    int       `db:"rank_position"`
	VisibilityScore float64   `db:"visibility_score"`
}
