package coord

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, log.NewNopLogger()), mr
}

func TestGetSetWithTTL(t *testing.T) {
	s, mr := testStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", time.Minute))
	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrByFloatAndGetFloat(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	total, err := s.IncrByFloat(ctx, "cost", 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, total, 1e-9)

	total, err = s.IncrByFloat(ctx, "cost", 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, total, 1e-9)

	got, err := s.GetFloat(ctx, "cost")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, got, 1e-9)

	got, err = s.GetFloat(ctx, "absent")
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestTTLAndExpire(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "v", 0))
	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Negative(t, int64(ttl))

	require.NoError(t, s.Expire(ctx, "k", time.Hour))
	ttl, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Positive(t, int64(ttl))
}

func TestZPruneAndCount(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.ZAdd(ctx, "z", 10, "old"))
	require.NoError(t, s.ZAdd(ctx, "z", 100, "recent-a"))
	require.NoError(t, s.ZAdd(ctx, "z", 110, "recent-b"))

	n, err := s.ZPruneAndCount(ctx, "z", 50)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.ZPruneAndCount(ctx, "z", 200)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestExistsAndDel(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWithTTL(ctx, "k", "1", time.Hour))
	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Del(ctx, "k"))
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
