// Package coord wraps the shared coordination store (Redis) behind the small
// interface the pipeline needs: keys with TTLs, a float counter, and sorted
// sets. Rate-limit windows, the daily cost counter, and dedup markers all
// live here so independent worker processes share the same state.
package coord

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

type Store struct {
	client *redis.Client
	logger log.Logger
}

// New connects to the coordination store and verifies the connection.
func New(cfg *Config, logger log.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "pinging coordination store")
	}

	level.Info(logger).Log("msg", "connected to coordination store", "address", cfg.Address, "db", cfg.DB)
	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, logger log.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the value for key and whether the key exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// GetFloat returns the value for key parsed as a float, or 0 if absent.
func (s *Store) GetFloat(ctx context.Context, key string) (float64, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s as float", key)
	}
	return f, nil
}

// SetWithTTL stores value under key with the given expiry.
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Del removes the given keys.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// IncrByFloat atomically adds amount to the float counter at key and returns
// the new total.
func (s *Store) IncrByFloat(ctx context.Context, key string, amount float64) (float64, error) {
	return s.client.IncrByFloat(ctx, key, amount).Result()
}

// TTL returns the remaining TTL of key. A negative duration means no expiry
// is set (or the key does not exist).
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

// Expire sets the expiry on key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// ZPruneAndCount removes sorted-set entries with score <= maxScore and
// returns the remaining cardinality. The two steps run in one transactional
// pipeline so concurrent callers observe a consistent window.
func (s *Store) ZPruneAndCount(ctx context.Context, key string, maxScore float64) (int64, error) {
	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatFloat(maxScore, 'f', -1, 64))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// ZAdd inserts member with the given score.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.client.ZAdd(ctx, key, &redis.Z{Score: score, Member: member}).Err()
}
