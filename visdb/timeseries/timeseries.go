// Package timeseries writes per-scrape rank observations to the TimescaleDB
// hypertable ts_search_rank and reads the per-day averages the daily flow
// aggregates into vis_score.
package timeseries

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/leapunion/visibility/pkg/model"
)

type Store struct {
	db     *sqlx.DB
	logger log.Logger
}

// New opens a connection pool and verifies it.
func New(ctx context.Context, cfg *Config, logger log.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to timeseries store")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	level.Info(logger).Log("msg", "connected to timeseries store")
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, logger log.Logger) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx"), logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the hypertable, the daily continuous aggregate, and the
// retention policy. Idempotent; requires the timescaledb extension.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "applying timeseries schema")
		}
	}
	return nil
}

// InsertRank stores one observation. Callers skip rank-0 results.
func (s *Store) InsertRank(ctx context.Context, r model.TimeseriesRank) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ts_search_rank (time, query_id, platform, brand, rank_position, visibility_score)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Time, r.QueryID, r.Platform, r.Brand, r.RankPosition, r.VisibilityScore)
	return errors.Wrap(err, "inserting timeseries rank")
}

// DailyAverage is the mean visibility score of one brand on one query over
// a day's observations.
type DailyAverage struct {
	QueryID  int64   `db:"query_id"`
	Brand    string  `db:"brand"`
	AvgScore float64 `db:"avg_score"`
}

// DailyAverages averages visibility_score per (query, brand) over the UTC
// calendar day containing now.
func (s *Store) DailyAverages(ctx context.Context, now time.Time) ([]DailyAverage, error) {
	dayStart := now.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []DailyAverage
	err := s.db.SelectContext(ctx, &rows,
		`SELECT query_id, brand, AVG(visibility_score) AS avg_score
		 FROM ts_search_rank
		 WHERE time >= $1 AND time < $2
		 GROUP BY query_id, brand`,
		dayStart, dayEnd)
	return rows, errors.Wrap(err, "fetching daily averages")
}
