// Package app assembles the stores and modules into the running service: a
// scheduler that executes the hourly and daily flows, and an ops HTTP
// listener for metrics, readiness, and manual flow triggers.
package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leapunion/visibility/modules/cost"
	"github.com/leapunion/visibility/modules/limiter"
	"github.com/leapunion/visibility/modules/orchestrator"
	"github.com/leapunion/visibility/modules/pipeline"
	"github.com/leapunion/visibility/modules/scraper"
	"github.com/leapunion/visibility/pkg/model"
	"github.com/leapunion/visibility/visdb/coord"
	"github.com/leapunion/visibility/visdb/document"
	"github.com/leapunion/visibility/visdb/relational"
	"github.com/leapunion/visibility/visdb/timeseries"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// App is the assembled service.
type App struct {
	cfg    Config
	logger log.Logger

	coordination *coord.Store
	rel          *relational.Store
	ts           *timeseries.Store
	docs         *document.Store
	pipeline     *pipeline.Pipeline

	server *http.Server

	lastDailyDay string
}

// New connects every store and wires the modules together.
func New(cfg Config, logger log.Logger) (*App, error) {
	ctx := context.Background()

	coordination, err := coord.New(&cfg.Coordination, logger)
	if err != nil {
		return nil, err
	}

	rel, err := relational.New(ctx, &cfg.Relational, logger)
	if err != nil {
		return nil, err
	}

	ts, err := timeseries.New(ctx, &cfg.Timeseries, logger)
	if err != nil {
		return nil, err
	}

	docs, err := document.New(ctx, &cfg.Document, logger)
	if err != nil {
		return nil, err
	}
	if err := docs.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	rateLimiter := limiter.New(&cfg.RateLimits, coordination, logger)
	costTracker := cost.New(&cfg.Cost, coordination, logger)

	render := scraper.NewFirecrawlClient(&cfg.Scraper)
	scrapers := make([]orchestrator.Scraper, 0, len(model.AllPlatforms()))
	for _, p := range model.AllPlatforms() {
		scrapers = append(scrapers, scraper.NewPlatformScraper(p, &cfg.Scraper, render, docs, costTracker, logger))
	}

	orch := orchestrator.New(&cfg.Orchestrator, scrapers, rateLimiter, coordination, docs, logger)
	pipe := pipeline.New(&cfg.Pipeline, rel, ts, costTracker, orch, logger)

	app := &App{
		cfg:          cfg,
		logger:       logger,
		coordination: coordination,
		rel:          rel,
		ts:           ts,
		docs:         docs,
		pipeline:     pipe,
	}
	app.server = &http.Server{
		Addr:    cfg.HTTPListenAddress,
		Handler: app.router(),
	}
	return app, nil
}

// Run serves the ops listener and drives the flow scheduler until a
// termination signal arrives.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		level.Info(a.logger).Log("msg", "ops listener starting", "addr", a.cfg.HTTPListenAddress)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(a.cfg.HourlyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			level.Info(a.logger).Log("msg", "shutting down")
			return a.shutdown()
		case err := <-errCh:
			return errors.Wrap(err, "ops listener failed")
		case <-ticker.C:
			a.runScheduledFlow(ctx)
		}
	}
}

// runScheduledFlow runs the hourly flow, or the daily full scan the first
// time the configured UTC hour comes around each day.
func (a *App) runScheduledFlow(ctx context.Context) {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	var (
		result pipeline.FlowResult
		err    error
	)
	if now.Hour() == a.cfg.DailyRunHour && a.lastDailyDay != day {
		result, err = a.pipeline.DailyFullScan(ctx)
		if err == nil {
			a.lastDailyDay = day
		}
	} else {
		result, err = a.pipeline.HourlyRankCheck(ctx)
	}

	if err != nil {
		level.Error(a.logger).Log("msg", "scheduled flow failed", "err", err)
		return
	}
	level.Info(a.logger).Log("msg", "scheduled flow finished", "run_id", result.RunID, "status", result.Status,
		"success", result.SuccessCount, "failed", result.FailureCount)
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)

	a.coordination.Close()
	a.rel.Close()
	a.ts.Close()
	a.docs.Close(ctx)
	return err
}

func (a *App) router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", a.readyHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/flows/{flow}", a.triggerFlowHandler).Methods(http.MethodPost)
	return r
}

func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

// triggerFlowHandler runs a flow on demand and returns its summary.
func (a *App) triggerFlowHandler(w http.ResponseWriter, r *http.Request) {
	var (
		result pipeline.FlowResult
		err    error
	)

	switch mux.Vars(r)["flow"] {
	case pipeline.FlowHourlyRankCheck:
		result, err = a.pipeline.HourlyRankCheck(r.Context())
	case pipeline.FlowDailyFullScan:
		result, err = a.pipeline.DailyFullScan(r.Context())
	default:
		http.Error(w, "unknown flow", http.StatusNotFound)
		return
	}

	if err != nil {
		level.Error(a.logger).Log("msg", "triggered flow failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		level.Warn(a.logger).Log("msg", "encoding flow result failed", "err", err)
	}
}
