// Package pipeline wires the full scrape-and-score flows together: fetch the
// monitored queries, halt on the cost budget, scrape, extract rankings,
// persist them, and compute visibility scores.
//
// Two flows share the same body. The hourly flow stops after raw scores; the
// daily flow additionally aggregates the day's timeseries rows into daily
// scores.
package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leapunion/visibility/modules/orchestrator"
	"github.com/leapunion/visibility/pkg/model"
	"github.com/leapunion/visibility/pkg/rank"
	"github.com/leapunion/visibility/pkg/score"
	"github.com/leapunion/visibility/visdb/timeseries"
)

const (
	FlowHourlyRankCheck = "hourly_rank_check"
	FlowDailyFullScan   = "daily_full_scan"
)

var metricFlowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "visibility",
	Name:      "flow_runs_total",
	Help:      "Pipeline flow executions by flow and terminal status.",
}, []string{"flow", "status"})

type relationalStore interface {
	ActiveQueries(ctx context.Context) ([]model.Query, error)
	PrimaryBrand(ctx context.Context) (*model.Brand, error)
	InsertRanking(ctx context.Context, r model.Ranking) error
	DistinctLatestRankings(ctx context.Context, queryID, runID int64) ([]model.Ranking, error)
	InsertScore(ctx context.Context, sc model.Score) error
	CreateRun(ctx context.Context, flowName string, queriesTotal int, startedAt time.Time) (int64, error)
	FinalizeRun(ctx context.Context, runID int64, status model.PipelineStatus, successCount, failureCount, quarantineCount int, costUSD float64, errorDetail *string, completedAt time.Time) error
}

type timeseriesStore interface {
	InsertRank(ctx context.Context, r model.TimeseriesRank) error
	DailyAverages(ctx context.Context, now time.Time) ([]timeseries.DailyAverage, error)
}

type costTracker interface {
	IsBudgetExceeded(ctx context.Context) (bool, error)
	Today(ctx context.Context) (float64, error)
}

type batchScraper interface {
	Run(ctx context.Context, queries []model.Query) (*orchestrator.Result, error)
}

// FlowResult summarizes one flow execution.
type FlowResult struct {
	RunID            int64
	Status           model.PipelineStatus
	Skipped          bool
	SkippedReason    string
	SuccessCount     int
	FailureCount     int
	QuarantineCount  int
	DailyScoresCount int
}

// Pipeline runs the scrape-and-score flows.
type Pipeline struct {
	cfg       *Config
	rel       relationalStore
	ts        timeseriesStore
	costs     costTracker
	scrapes   batchScraper
	extractor *rank.Extractor
	logger    log.Logger

	now func() time.Time
}

func New(cfg *Config, rel relationalStore, ts timeseriesStore, costs costTracker, scrapes batchScraper, logger log.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		rel:       rel,
		ts:        ts,
		costs:     costs,
		scrapes:   scrapes,
		extractor: rank.NewExtractor(cfg.SnippetRadius),
		logger:    logger,
		now:       time.Now,
	}
}

// HourlyRankCheck scrapes all active queries and computes raw scores.
func (p *Pipeline) HourlyRankCheck(ctx context.Context) (FlowResult, error) {
	return p.run(ctx, FlowHourlyRankCheck, false)
}

// DailyFullScan is the hourly flow plus the day's aggregated scores.
func (p *Pipeline) DailyFullScan(ctx context.Context) (FlowResult, error) {
	return p.run(ctx, FlowDailyFullScan, true)
}

func (p *Pipeline) run(ctx context.Context, flowName string, daily bool) (FlowResult, error) {
	logger := log.With(p.logger, "flow", flowName)

	queries, err := p.rel.ActiveQueries(ctx)
	if err != nil {
		return FlowResult{}, err
	}
	if len(queries) == 0 {
		level.Info(logger).Log("msg", "no active queries, skipping run")
		return FlowResult{Skipped: true, SkippedReason: "no_active_queries"}, nil
	}

	exceeded, err := p.costs.IsBudgetExceeded(ctx)
	if err != nil {
		return FlowResult{}, err
	}
	if exceeded {
		return p.haltOnBudget(ctx, logger, flowName, len(queries))
	}

	runID, err := p.rel.CreateRun(ctx, flowName, len(queries), p.now().UTC())
	if err != nil {
		return FlowResult{}, err
	}
	result := FlowResult{RunID: runID}

	orchResult, err := p.scrapeAndScore(ctx, queries, runID)
	if err != nil {
		p.finalizeFailed(ctx, logger, runID, err)
		result.Status = model.StatusFailed
		metricFlowRuns.WithLabelValues(flowName, string(model.StatusFailed)).Inc()
		return result, err
	}

	spent, err := p.costs.Today(ctx)
	if err != nil {
		level.Warn(logger).Log("msg", "reading today's cost failed", "err", err)
	}
	err = p.rel.FinalizeRun(ctx, runID, model.StatusCompleted,
		len(orchResult.Successes), len(orchResult.Failures), orchResult.Quarantined,
		spent, nil, p.now().UTC())
	if err != nil {
		return result, err
	}

	result.Status = model.StatusCompleted
	result.SuccessCount = len(orchResult.Successes)
	result.FailureCount = len(orchResult.Failures)
	result.QuarantineCount = orchResult.Quarantined

	if daily {
		count, err := p.computeDailyScores(ctx)
		if err != nil {
			return result, err
		}
		result.DailyScoresCount = count
	}

	metricFlowRuns.WithLabelValues(flowName, string(model.StatusCompleted)).Inc()
	level.Info(logger).Log("msg", "flow completed", "run_id", runID,
		"success", result.SuccessCount, "failed", result.FailureCount, "cost_usd", spent)
	return result, nil
}

// haltOnBudget records a cost_halted run without scraping anything.
func (p *Pipeline) haltOnBudget(ctx context.Context, logger log.Logger, flowName string, queriesTotal int) (FlowResult, error) {
	runID, err := p.rel.CreateRun(ctx, flowName, queriesTotal, p.now().UTC())
	if err != nil {
		return FlowResult{}, err
	}

	spent, err := p.costs.Today(ctx)
	if err != nil {
		return FlowResult{RunID: runID}, err
	}
	if err := p.rel.FinalizeRun(ctx, runID, model.StatusCostHalted, 0, 0, 0, spent, nil, p.now().UTC()); err != nil {
		return FlowResult{RunID: runID}, err
	}

	metricFlowRuns.WithLabelValues(flowName, string(model.StatusCostHalted)).Inc()
	level.Warn(logger).Log("msg", "daily budget exceeded, halting", "spent_usd", spent)
	return FlowResult{RunID: runID, Status: model.StatusCostHalted}, nil
}

func (p *Pipeline) finalizeFailed(ctx context.Context, logger log.Logger, runID int64, cause error) {
	spent, err := p.costs.Today(ctx)
	if err != nil {
		level.Warn(logger).Log("msg", "reading today's cost failed", "err", err)
	}
	detail := cause.Error()
	if err := p.rel.FinalizeRun(ctx, runID, model.StatusFailed, 0, 0, 0, spent, &detail, p.now().UTC()); err != nil {
		level.Error(logger).Log("msg", "finalizing failed run failed", "run_id", runID, "err", err)
	}
	level.Error(logger).Log("msg", "flow failed", "run_id", runID, "err", cause)
}

// scrapeAndScore runs the batch scrape, stores rankings and timeseries rows,
// and computes raw scores per query.
func (p *Pipeline) scrapeAndScore(ctx context.Context, queries []model.Query, runID int64) (*orchestrator.Result, error) {
	orchResult, err := p.scrapes.Run(ctx, queries)
	if err != nil {
		return nil, err
	}

	queryBrands := make(map[int64][]string, len(queries))
	for _, q := range queries {
		queryBrands[q.ID] = q.Brands
	}

	seen := map[int64]bool{}
	for _, s := range orchResult.Successes {
		if err := p.storeRankings(ctx, s, queryBrands[s.QueryID], runID); err != nil {
			return nil, err
		}
		seen[s.QueryID] = true
	}

	primary, err := p.rel.PrimaryBrand(ctx)
	if err != nil {
		return nil, err
	}

	for queryID := range seen {
		if err := p.computeRawScores(ctx, queryID, queryBrands[queryID], runID, primary); err != nil {
			return nil, err
		}
	}

	return orchResult, nil
}

// storeRankings extracts brand ranks from one scrape and persists the
// non-absent ones to both stores.
func (p *Pipeline) storeRankings(ctx context.Context, s orchestrator.Success, brands []string, runID int64) error {
	results := p.extractor.Extract(s.Processed.CleanText, brands)
	now := p.now().UTC()

	for _, rr := range results {
		if rr.RankPosition == 0 {
			continue
		}

		err := p.rel.InsertRanking(ctx, model.Ranking{
			QueryID:       s.QueryID,
			Platform:      s.Platform,
			Brand:         rr.Brand,
			RankPosition:  rr.RankPosition,
			Snippet:       rr.Snippet,
			SnapshotID:    s.Processed.SnapshotID,
			ScrapedAt:     now,
			PipelineRunID: runID,
		})
		if err != nil {
			return err
		}

		err = p.ts.InsertRank(ctx, model.TimeseriesRank{
			Time:            now,
			QueryID:         s.QueryID,
			Platform:        s.Platform,
			Brand:           rr.Brand,
			RankPosition:    rr.RankPosition,
			VisibilityScore: score.Visibility([]score.PlatformRanking{{Platform: s.Platform, RankPosition: rr.RankPosition}}),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// computeRawScores turns this run's latest rankings for one query into one
// vis_score row per configured brand.
func (p *Pipeline) computeRawScores(ctx context.Context, queryID int64, brands []string, runID int64, primary *model.Brand) error {
	rows, err := p.rel.DistinctLatestRankings(ctx, queryID, runID)
	if err != nil {
		return err
	}

	byBrand := map[string][]score.PlatformRanking{}
	for _, r := range rows {
		byBrand[r.Brand] = append(byBrand[r.Brand], score.PlatformRanking{Platform: r.Platform, RankPosition: r.RankPosition})
	}

	brandScores := make(map[string]float64, len(brands))
	for _, brand := range brands {
		brandScores[brand] = score.Visibility(byBrand[brand])
	}

	return p.insertScores(ctx, queryID, brandScores, model.PeriodRaw, primary)
}

// insertScores writes one score row per brand; the primary brand's row also
// carries the competitive gap.
func (p *Pipeline) insertScores(ctx context.Context, queryID int64, brandScores map[string]float64, period model.ScorePeriod, primary *model.Brand) error {
	var gap *float64
	if primary != nil {
		primaryScore := 0.0
		competitors := map[string]float64{}
		for brand, s := range brandScores {
			if strings.EqualFold(brand, primary.Name) {
				primaryScore = s
			} else {
				competitors[brand] = s
			}
		}
		g := score.CompetitiveGap(primaryScore, competitors)
		gap = &g
	}

	now := p.now().UTC()
	for brand, s := range brandScores {
		sc := model.Score{
			QueryID:         queryID,
			Brand:           brand,
			VisibilityScore: s,
			Period:          period,
			ComputedAt:      now,
		}
		if gap != nil && primary != nil && strings.EqualFold(brand, primary.Name) {
			sc.CompetitiveGap = gap
		}
		if err := p.rel.InsertScore(ctx, sc); err != nil {
			return err
		}
	}
	return nil
}

// computeDailyScores averages the day's timeseries rows per (query, brand)
// and stores them as daily scores.
func (p *Pipeline) computeDailyScores(ctx context.Context) (int, error) {
	averages, err := p.ts.DailyAverages(ctx, p.now())
	if err != nil {
		return 0, err
	}
	if len(averages) == 0 {
		return 0, nil
	}

	primary, err := p.rel.PrimaryBrand(ctx)
	if err != nil {
		return 0, err
	}

	byQuery := map[int64]map[string]float64{}
	for _, avg := range averages {
		if byQuery[avg.QueryID] == nil {
			byQuery[avg.QueryID] = map[string]float64{}
		}
		byQuery[avg.QueryID][avg.Brand] = math.Round(avg.AvgScore*100) / 100
	}

	count := 0
	for queryID, brandScores := range byQuery {
		if err := p.insertScores(ctx, queryID, brandScores, model.PeriodDaily, primary); err != nil {
			return count, err
		}
		count += len(brandScores)
	}
	return count, nil
}
