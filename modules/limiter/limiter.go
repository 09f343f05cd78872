// Package limiter provides per-platform sliding-window admission control
// backed by the shared coordination store, so independent worker processes
// draw from the same hourly budget.
//
// Each platform owns a sorted set keyed rl:<platform>. Members are unique
// per call (timestamp plus a random suffix) and scored by insertion time; a
// call is admitted when, after pruning entries older than the window, the
// set's cardinality is below the platform's cap. Over-admission by the
// number of racing callers is tolerated.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leapunion/visibility/pkg/model"
	"github.com/leapunion/visibility/visdb/coord"
)

// keyTTLSlack keeps unused keys alive slightly past the window so they
// self-reap instead of lingering.
const keyTTLSlack = 60 * time.Second

// defaultLimit applies to platforms without a configured cap.
const defaultLimit = 10

var metricAcquires = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "visibility",
	Name:      "rate_limiter_acquires_total",
	Help:      "Rate limiter admission attempts by platform and outcome.",
}, []string{"platform", "outcome"})

// RateLimiter admits at most limit(platform) requests per sliding window.
type RateLimiter struct {
	cfg    *Config
	store  *coord.Store
	logger log.Logger

	now func() time.Time
}

func New(cfg *Config, store *coord.Store, logger log.Logger) *RateLimiter {
	return &RateLimiter{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Limit returns the configured cap for a platform.
func (l *RateLimiter) Limit(platform model.Platform) int {
	switch platform {
	case model.PlatformChatGPT:
		return l.cfg.ChatGPTPerHour
	case model.PlatformPerplexity:
		return l.cfg.PerplexityPerHour
	case model.PlatformGoogleAI:
		return l.cfg.GoogleAIPerHour
	default:
		return defaultLimit
	}
}

// TryAcquire attempts to take one slot for platform at the current
// wall-clock time. Coordination-store errors are returned as-is; the caller
// decides how to treat them.
func (l *RateLimiter) TryAcquire(ctx context.Context, platform model.Platform) (bool, error) {
	key := l.key(platform)
	now := l.now()
	windowStart := float64(now.UnixNano()) / float64(time.Second)
	windowStart -= l.cfg.Window.Seconds()

	count, err := l.store.ZPruneAndCount(ctx, key, windowStart)
	if err != nil {
		return false, err
	}

	if count >= int64(l.Limit(platform)) {
		metricAcquires.WithLabelValues(platform.String(), "denied").Inc()
		return false, nil
	}

	score := float64(now.UnixNano()) / float64(time.Second)
	member := fmt.Sprintf("%.6f:%s", score, uuid.NewString()[:8])
	if err := l.store.ZAdd(ctx, key, score, member); err != nil {
		return false, err
	}
	if err := l.store.Expire(ctx, key, l.cfg.Window+keyTTLSlack); err != nil {
		return false, err
	}

	metricAcquires.WithLabelValues(platform.String(), "allowed").Inc()
	return true, nil
}

// WaitAndAcquire polls TryAcquire until a slot opens or timeout elapses.
// It returns false on timeout or cancellation and an error only on
// coordination-store failure.
func (l *RateLimiter) WaitAndAcquire(ctx context.Context, platform model.Platform, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.New(ctx, backoff.Config{
		MinBackoff: l.cfg.PollInterval,
		MaxBackoff: l.cfg.PollInterval,
	})

	for b.Ongoing() {
		ok, err := l.TryAcquire(ctx, platform)
		if err != nil {
			// A store call cut short by the deadline is a timeout, not a
			// transport failure.
			if ctx.Err() != nil {
				break
			}
			return false, err
		}
		if ok {
			return true, nil
		}
		b.Wait()
	}

	level.Debug(l.logger).Log("msg", "rate limit wait timed out", "platform", platform)
	return false, nil
}

// Remaining returns the number of slots left in the current window.
func (l *RateLimiter) Remaining(ctx context.Context, platform model.Platform) (int, error) {
	windowStart := float64(l.now().UnixNano())/float64(time.Second) - l.cfg.Window.Seconds()
	count, err := l.store.ZPruneAndCount(ctx, l.key(platform), windowStart)
	if err != nil {
		return 0, err
	}

	remaining := l.Limit(platform) - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the window for a platform. Operations and tests only.
func (l *RateLimiter) Reset(ctx context.Context, platform model.Platform) error {
	return l.store.Del(ctx, l.key(platform))
}

func (l *RateLimiter) key(platform model.Platform) string {
	return "rl:" + platform.String()
}
