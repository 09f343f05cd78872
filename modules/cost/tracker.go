// Package cost tracks cumulative scrape spend per UTC calendar day in the
// coordination store and enforces the daily budget.
//
// The counter key is cost:daily:<YYYY-MM-DD> with a 48 hour TTL so timezone
// edges never orphan a live counter.
package cost

import (
	"context"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/leapunion/visibility/visdb/coord"
)

const keyTTL = 48 * time.Hour

// ErrNegativeAmount is returned when Add is called with a negative cost.
var ErrNegativeAmount = errors.New("cost amount must be non-negative")

// Tracker accumulates daily cost and answers budget queries. Safe for
// concurrent use from multiple processes; the store serializes increments.
type Tracker struct {
	cfg    *Config
	store  *coord.Store
	logger log.Logger

	now func() time.Time
}

func New(cfg *Config, store *coord.Store, logger log.Logger) *Tracker {
	return &Tracker{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Add increases today's cumulative cost and returns the new total. The TTL
// is set only on the key's first write.
func (t *Tracker) Add(ctx context.Context, amountUSD float64) (float64, error) {
	if amountUSD < 0 {
		return 0, ErrNegativeAmount
	}

	key := t.key()
	total, err := t.store.IncrByFloat(ctx, key, amountUSD)
	if err != nil {
		return 0, err
	}

	ttl, err := t.store.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		if err := t.store.Expire(ctx, key, keyTTL); err != nil {
			return 0, err
		}
	}

	level.Debug(t.logger).Log("msg", "cost added", "amount_usd", amountUSD, "total_usd", total)
	return total, nil
}

// Today returns today's cumulative cost.
func (t *Tracker) Today(ctx context.Context) (float64, error) {
	return t.store.GetFloat(ctx, t.key())
}

// IsBudgetExceeded reports whether today's spend has reached the daily
// budget.
func (t *Tracker) IsBudgetExceeded(ctx context.Context) (bool, error) {
	spent, err := t.Today(ctx)
	if err != nil {
		return false, err
	}
	return spent >= t.cfg.DailyBudgetUSD, nil
}

// RemainingBudget returns how much of today's budget is left.
func (t *Tracker) RemainingBudget(ctx context.Context) (float64, error) {
	spent, err := t.Today(ctx)
	if err != nil {
		return 0, err
	}

	remaining := t.cfg.DailyBudgetUSD - spent
	if remaining < 0 {
		return 0, nil
	}
	return math.Round(remaining*10000) / 10000, nil
}

// ResetToday clears today's counter. Operations and tests only.
func (t *Tracker) ResetToday(ctx context.Context) error {
	return t.store.Del(ctx, t.key())
}

func (t *Tracker) key() string {
	return "cost:daily:" + t.now().UTC().Format("2006-01-02")
}
