package cost

import (
	"context"
	"flag"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapunion/visibility/visdb/coord"
)

func testTracker(t *testing.T, budget float64) (*Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{}
	cfg.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.PanicOnError))
	cfg.DailyBudgetUSD = budget

	return New(cfg, coord.NewWithClient(client, log.NewNopLogger()), log.NewNopLogger()), mr
}

func TestAddAccumulates(t *testing.T) {
	tr, _ := testTracker(t, 10)
	ctx := context.Background()

	total, err := tr.Add(ctx, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, total, 1e-9)

	total, err = tr.Add(ctx, 1.75)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, total, 1e-9)

	today, err := tr.Today(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, today, 1e-9)
}

func TestAddRejectsNegative(t *testing.T) {
	tr, _ := testTracker(t, 10)

	_, err := tr.Add(context.Background(), -0.5)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	today, err := tr.Today(context.Background())
	require.NoError(t, err)
	assert.Zero(t, today)
}

func TestAddIsMonotonic(t *testing.T) {
	tr, _ := testTracker(t, 10)
	ctx := context.Background()

	prev := 0.0
	for _, amount := range []float64{0.1, 0, 2.5, 0.004} {
		total, err := tr.Add(ctx, amount)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, prev)
		prev = total
	}
}

func TestBudgetExceeded(t *testing.T) {
	tr, _ := testTracker(t, 2)
	ctx := context.Background()

	exceeded, err := tr.IsBudgetExceeded(ctx)
	require.NoError(t, err)
	assert.False(t, exceeded)

	_, err = tr.Add(ctx, 1.99)
	require.NoError(t, err)
	exceeded, err = tr.IsBudgetExceeded(ctx)
	require.NoError(t, err)
	assert.False(t, exceeded)

	// Budget is inclusive: spend >= budget halts.
	_, err = tr.Add(ctx, 0.01)
	require.NoError(t, err)
	exceeded, err = tr.IsBudgetExceeded(ctx)
	require.NoError(t, err)
	assert.True(t, exceeded)
}

func TestRemainingBudget(t *testing.T) {
	tr, _ := testTracker(t, 10)
	ctx := context.Background()

	remaining, err := tr.RemainingBudget(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, remaining, 1e-9)

	_, err = tr.Add(ctx, 4.5)
	require.NoError(t, err)
	remaining, err = tr.RemainingBudget(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.5, remaining, 1e-9)

	_, err = tr.Add(ctx, 100)
	require.NoError(t, err)
	remaining, err = tr.RemainingBudget(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestKeyRollsOverAtUTCMidnight(t *testing.T) {
	tr, _ := testTracker(t, 10)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 24, 23, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return day1 }
	_, err := tr.Add(ctx, 3)
	require.NoError(t, err)

	tr.now = func() time.Time { return day1.Add(2 * time.Hour) }
	today, err := tr.Today(ctx)
	require.NoError(t, err)
	assert.Zero(t, today, "new UTC day starts a fresh counter")
}

func TestTTLSetOnlyOnFirstWrite(t *testing.T) {
	tr, mr := testTracker(t, 10)
	ctx := context.Background()

	_, err := tr.Add(ctx, 1)
	require.NoError(t, err)

	key := tr.key()
	first := mr.TTL(key)
	assert.Equal(t, keyTTL, first)

	mr.FastForward(time.Hour)
	_, err = tr.Add(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, keyTTL-time.Hour, mr.TTL(key), "second write must not refresh the TTL")
}

func TestResetToday(t *testing.T) {
	tr, _ := testTracker(t, 10)
	ctx := context.Background()

	_, err := tr.Add(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, tr.ResetToday(ctx))

	today, err := tr.Today(ctx)
	require.NoError(t, err)
	assert.Zero(t, today)
}
