// Package scraper fetches AI answer pages for one platform at a time through
// the render service, persists the immutable raw snapshot, and hands the
// cleaned content back to the caller.
//
// Transient failures are retried with fixed delays. Content failures
// (quarantine) are terminal for the attempt and never retried.
package scraper

import (
	"context"
	"net/url"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leapunion/visibility/pkg/content"
	"github.com/leapunion/visibility/pkg/model"
)

var (
	metricScrapes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visibility",
		Name:      "scrapes_total",
		Help:      "Scrape attempts by platform and outcome.",
	}, []string{"platform", "outcome"})

	metricScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "visibility",
		Name:      "scrape_duration_seconds",
		Help:      "End-to-end scrape latency including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"platform"})
)

// SearchURL builds the platform's public search URL for a query.
func SearchURL(platform model.Platform, query string) string {
	encoded := url.QueryEscape(query)
	switch platform {
	case model.PlatformChatGPT:
		return "https://chatgpt.com/search?q=" + encoded
	case model.PlatformPerplexity:
		return "https://www.perplexity.ai/search?q=" + encoded
	default:
		return "https://www.google.com/search?q=" + encoded
	}
}

type renderClient interface {
	Scrape(ctx context.Context, url string) (content.RawScrape, error)
}

type snapshotWriter interface {
	InsertSnapshot(ctx context.Context, snap model.Snapshot) (string, error)
}

type costRecorder interface {
	Add(ctx context.Context, amountUSD float64) (float64, error)
}

// PlatformScraper scrapes one platform. Safe for concurrent use.
type PlatformScraper struct {
	platform  model.Platform
	cfg       *Config
	client    renderClient
	snapshots snapshotWriter
	costs     costRecorder
	logger    log.Logger
}

func NewPlatformScraper(platform model.Platform, cfg *Config, client renderClient, snapshots snapshotWriter, costs costRecorder, logger log.Logger) *PlatformScraper {
	return &PlatformScraper{
		platform:  platform,
		cfg:       cfg,
		client:    client,
		snapshots: snapshots,
		costs:     costs,
		logger:    log.With(logger, "platform", platform),
	}
}

func (s *PlatformScraper) Platform() model.Platform {
	return s.platform
}

// Scrape renders the platform's answer for query, stores the raw snapshot,
// and returns processed content carrying the snapshot id. Quarantine errors
// come back as *content.QuarantineError and are not retried; after the last
// transient failure the last error is returned.
func (s *PlatformScraper) Scrape(ctx context.Context, query string) (content.Processed, error) {
	searchURL := SearchURL(s.platform, query)
	start := time.Now()
	defer func() {
		metricScrapeDuration.WithLabelValues(s.platform.String()).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		processed, err := s.attempt(ctx, searchURL, query)
		if err == nil {
			metricScrapes.WithLabelValues(s.platform.String(), "success").Inc()
			return processed, nil
		}

		if _, ok := content.AsQuarantine(err); ok {
			metricScrapes.WithLabelValues(s.platform.String(), "quarantined").Inc()
			return content.Processed{}, err
		}

		lastErr = err
		if attempt < s.cfg.MaxAttempts-1 {
			delay := s.retryDelay(attempt)
			level.Warn(s.logger).Log("msg", "scrape attempt failed, retrying", "query", query, "attempt", attempt+1, "delay", delay, "err", err)
			if err := sleepCtx(ctx, delay); err != nil {
				metricScrapes.WithLabelValues(s.platform.String(), "failed").Inc()
				return content.Processed{}, err
			}
		}
	}

	metricScrapes.WithLabelValues(s.platform.String(), "failed").Inc()
	level.Error(s.logger).Log("msg", "all scrape attempts failed", "query", query, "attempts", s.cfg.MaxAttempts, "err", lastErr)
	return content.Processed{}, errors.Wrapf(lastErr, "scraping %q on %s", query, s.platform)
}

func (s *PlatformScraper) attempt(ctx context.Context, searchURL, query string) (content.Processed, error) {
	raw, err := s.client.Scrape(ctx, searchURL)
	if err != nil {
		return content.Processed{}, err
	}

	// Every successful render call costs money even when the content later
	// turns out unusable.
	if _, err := s.costs.Add(ctx, s.cfg.CostPerScrapeUSD); err != nil {
		level.Warn(s.logger).Log("msg", "recording scrape cost failed", "err", err)
	}

	snapshotID, err := s.snapshots.InsertSnapshot(ctx, model.Snapshot{
		QueryText:        query,
		Platform:         s.platform,
		RawContent:       raw.Content,
		ContentHash:      content.Hash(raw.Content),
		ScrapedAt:        raw.ScrapedAt,
		ScrapeDurationMS: raw.ScrapeDurationMS,
		Metadata: model.SnapshotMetadata{
			URL:           raw.URL,
			StatusCode:    raw.StatusCode,
			ContentLength: raw.ContentLength,
		},
	})
	if err != nil {
		return content.Processed{}, err
	}

	processed, err := content.Process(raw)
	if err != nil {
		return content.Processed{}, err
	}

	processed.SnapshotID = snapshotID
	return processed, nil
}

func (s *PlatformScraper) retryDelay(attempt int) time.Duration {
	if len(s.cfg.RetryDelays) == 0 {
		return 0
	}
	if attempt >= len(s.cfg.RetryDelays) {
		attempt = len(s.cfg.RetryDelays) - 1
	}
	return s.cfg.RetryDelays[attempt]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
