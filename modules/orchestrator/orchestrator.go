// Package orchestrator expands monitored queries into the query by platform
// task matrix and runs the scrapes concurrently. Per task it checks the dedup
// marker, waits for a rate-limit slot, then scrapes under the platform's
// concurrency cap. One task's failure never stops the batch.
package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/leapunion/visibility/pkg/content"
	"github.com/leapunion/visibility/pkg/model"
)

var metricTasks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "visibility",
	Name:      "orchestrator_tasks_total",
	Help:      "Scrape tasks by platform and outcome.",
}, []string{"platform", "outcome"})

// Scraper is one platform's scrape strategy.
type Scraper interface {
	Platform() model.Platform
	Scrape(ctx context.Context, query string) (content.Processed, error)
}

type rateLimiter interface {
	WaitAndAcquire(ctx context.Context, platform model.Platform, timeout time.Duration) (bool, error)
}

type dedupStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

type quarantineWriter interface {
	InsertQuarantine(ctx context.Context, rec model.QuarantineRecord) (string, error)
}

// Success is one completed scrape ready for rank extraction.
type Success struct {
	QueryID   int64
	Platform  model.Platform
	Processed content.Processed
}

// Failure records one scrape that produced nothing usable.
type Failure struct {
	QueryID     int64
	QueryText   string
	Platform    model.Platform
	ErrorKind   string
	ErrorDetail string
	Timestamp   time.Time
}

// Result aggregates one batch run.
type Result struct {
	Successes        []Success
	Failures         []Failure
	SkippedDedup     int
	SkippedRateLimit int
	Quarantined      int
}

func (r *Result) TotalTasks() int {
	return len(r.Successes) + len(r.Failures) + r.SkippedDedup + r.SkippedRateLimit
}

type task struct {
	queryID   int64
	queryText string
	platform  model.Platform
}

// Orchestrator fans scrape tasks out across platforms.
type Orchestrator struct {
	cfg        *Config
	scrapers   map[model.Platform]Scraper
	limiter    rateLimiter
	dedup      dedupStore
	quarantine quarantineWriter
	logger     log.Logger

	semaphores map[model.Platform]*semaphore.Weighted
}

func New(cfg *Config, scrapers []Scraper, limiter rateLimiter, dedup dedupStore, quarantine quarantineWriter, logger log.Logger) *Orchestrator {
	byPlatform := make(map[model.Platform]Scraper, len(scrapers))
	semaphores := make(map[model.Platform]*semaphore.Weighted, len(scrapers))
	for _, s := range scrapers {
		byPlatform[s.Platform()] = s
		semaphores[s.Platform()] = semaphore.NewWeighted(cfg.MaxConcurrentPerPlatform)
	}

	return &Orchestrator{
		cfg:        cfg,
		scrapers:   byPlatform,
		limiter:    limiter,
		dedup:      dedup,
		quarantine: quarantine,
		logger:     logger,
		semaphores: semaphores,
	}
}

// Run scrapes every (query, platform) combination across all configured
// platforms. The error return is reserved for context cancellation;
// individual scrape failures land in the result.
func (o *Orchestrator) Run(ctx context.Context, queries []model.Query) (*Result, error) {
	return o.RunPlatforms(ctx, queries, model.AllPlatforms())
}

// RunPlatforms is Run restricted to a platform subset. Platforms without a
// configured scraper are skipped.
func (o *Orchestrator) RunPlatforms(ctx context.Context, queries []model.Query, platforms []model.Platform) (*Result, error) {
	var tasks []task
	for _, q := range queries {
		for _, p := range platforms {
			if _, ok := o.scrapers[p]; !ok {
				continue
			}
			tasks = append(tasks, task{queryID: q.ID, queryText: q.QueryText, platform: p})
		}
	}

	level.Info(o.logger).Log("msg", "orchestrator starting", "tasks", len(tasks), "queries", len(queries))

	result := &Result{}
	var mtx sync.Mutex
	var wg sync.WaitGroup

	for _, tk := range tasks {
		wg.Add(1)
		go func(tk task) {
			defer wg.Done()
			o.executeTask(ctx, tk, result, &mtx)
		}(tk)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	level.Info(o.logger).Log("msg", "orchestrator complete",
		"success", len(result.Successes), "failed", len(result.Failures),
		"dedup_skipped", result.SkippedDedup, "rate_limited", result.SkippedRateLimit,
		"quarantined", result.Quarantined)
	return result, nil
}

func (o *Orchestrator) executeTask(ctx context.Context, tk task, result *Result, mtx *sync.Mutex) {
	dedupKey := dedupKey(tk.queryID, tk.platform)
	seen, err := o.dedup.Exists(ctx, dedupKey)
	if err != nil {
		o.recordFailure(result, mtx, tk, "coordination_error", err.Error())
		return
	}
	if seen {
		metricTasks.WithLabelValues(tk.platform.String(), "dedup_skipped").Inc()
		mtx.Lock()
		result.SkippedDedup++
		mtx.Unlock()
		return
	}

	acquired, err := o.limiter.WaitAndAcquire(ctx, tk.platform, o.cfg.RateLimitTimeout)
	if err != nil {
		o.recordFailure(result, mtx, tk, "coordination_error", err.Error())
		return
	}
	if !acquired {
		level.Warn(o.logger).Log("msg", "rate limit timeout", "query_id", tk.queryID, "platform", tk.platform)
		metricTasks.WithLabelValues(tk.platform.String(), "rate_limited").Inc()
		mtx.Lock()
		result.SkippedRateLimit++
		mtx.Unlock()
		return
	}

	sem := o.semaphores[tk.platform]
	if err := sem.Acquire(ctx, 1); err != nil {
		o.recordFailure(result, mtx, tk, "cancelled", err.Error())
		return
	}
	defer sem.Release(1)

	processed, err := o.scrapers[tk.platform].Scrape(ctx, tk.queryText)
	if err != nil {
		if qe, ok := content.AsQuarantine(err); ok {
			o.writeQuarantine(ctx, tk, qe)
			metricTasks.WithLabelValues(tk.platform.String(), "quarantined").Inc()
			mtx.Lock()
			result.Quarantined++
			mtx.Unlock()
			o.recordFailure(result, mtx, tk, qe.Kind, qe.Detail)
			return
		}

		level.Error(o.logger).Log("msg", "scrape failed", "query_id", tk.queryID, "platform", tk.platform, "err", err)
		o.recordFailure(result, mtx, tk, "scrape_error", err.Error())
		return
	}

	if err := o.dedup.SetWithTTL(ctx, dedupKey, "1", o.cfg.DedupTTL); err != nil {
		level.Warn(o.logger).Log("msg", "setting dedup marker failed", "key", dedupKey, "err", err)
	}

	metricTasks.WithLabelValues(tk.platform.String(), "success").Inc()
	mtx.Lock()
	result.Successes = append(result.Successes, Success{QueryID: tk.queryID, Platform: tk.platform, Processed: processed})
	mtx.Unlock()
}

func (o *Orchestrator) recordFailure(result *Result, mtx *sync.Mutex, tk task, kind, detail string) {
	if len(detail) > 500 {
		detail = detail[:500]
	}
	metricTasks.WithLabelValues(tk.platform.String(), "failed").Inc()
	mtx.Lock()
	result.Failures = append(result.Failures, Failure{
		QueryID:     tk.queryID,
		QueryText:   tk.queryText,
		Platform:    tk.platform,
		ErrorKind:   kind,
		ErrorDetail: detail,
		Timestamp:   time.Now().UTC(),
	})
	mtx.Unlock()
}

func (o *Orchestrator) writeQuarantine(ctx context.Context, tk task, qe *content.QuarantineError) {
	_, err := o.quarantine.InsertQuarantine(ctx, model.QuarantineRecord{
		QueryID:     tk.queryID,
		Platform:    tk.platform,
		ErrorKind:   qe.Kind,
		ErrorDetail: qe.Detail,
		RawContent:  qe.RawPrefix,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		level.Warn(o.logger).Log("msg", "writing quarantine record failed", "query_id", tk.queryID, "platform", tk.platform, "err", err)
	}
}

func dedupKey(queryID int64, platform model.Platform) string {
	return "dedup:" + strconv.FormatInt(queryID, 10) + ":" + platform.String()
}
