// Package relational is the access layer for the Postgres tables: monitored
// queries, tracked brands, per-scrape rankings, visibility scores, and the
// pipeline run log.
package relational

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/leapunion/visibility/pkg/model"
)

// maxErrorDetailLen bounds vis_pipeline_run.error_detail.
const maxErrorDetailLen = 500

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	db     *sqlx.DB
	logger log.Logger
}

// New opens a connection pool and verifies it.
func New(ctx context.Context, cfg *Config, logger log.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to relational store")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	level.Info(logger).Log("msg", "connected to relational store")
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB, logger log.Logger) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx"), logger: logger}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema applies the table DDL. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "applying relational schema")
}

// queryRow carries vis_query's JSONB brands column through the scan.
type queryRow struct {
	ID        int64  `db:"id"`
	QueryText string `db:"query_text"`
	Category  string `db:"category"`
	Priority  string `db:"priority"`
	Brands    []byte `db:"brands"`
}

// ActiveQueries returns all active queries ordered high, medium, low.
func (s *Store) ActiveQueries(ctx context.Context) ([]model.Query, error) {
	var rows []queryRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, query_text, category, priority, brands
		 FROM vis_query WHERE is_active = TRUE
		 ORDER BY CASE priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END`)
	if err != nil {
		return nil, errors.Wrap(err, "fetching active queries")
	}

	queries := make([]model.Query, 0, len(rows))
	for _, r := range rows {
		q := model.Query{
			ID:        r.ID,
			QueryText: r.QueryText,
			Category:  model.QueryCategory(r.Category),
			Priority:  model.QueryPriority(r.Priority),
			IsActive:  true,
		}
		if len(r.Brands) > 0 {
			if err := json.Unmarshal(r.Brands, &q.Brands); err != nil {
				return nil, errors.Wrapf(err, "decoding brands for query %d", r.ID)
			}
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// InsertQuery validates and stores a monitored query and returns its id.
func (s *Store) InsertQuery(ctx context.Context, q model.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	brands, err := json.Marshal(q.Brands)
	if err != nil {
		return 0, errors.Wrap(err, "encoding brands")
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO vis_query (query_text, category, priority, brands, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		q.QueryText, q.Category, q.Priority, brands, q.IsActive).Scan(&id)
	return id, errors.Wrap(err, "inserting query")
}

// InsertBrand stores a tracked brand and returns its id.
func (s *Store) InsertBrand(ctx context.Context, name string, isPrimary bool) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO vis_brand (name, is_primary) VALUES ($1, $2) RETURNING id`,
		name, isPrimary).Scan(&id)
	return id, errors.Wrap(err, "inserting brand")
}

// PrimaryBrand returns the brand anchoring competitive-gap computation, or
// nil when none is configured.
func (s *Store) PrimaryBrand(ctx context.Context) (*model.Brand, error) {
	var b model.Brand
	err := s.db.GetContext(ctx, &b,
		`SELECT id, name, is_primary, created_at FROM vis_brand WHERE is_primary = TRUE LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching primary brand")
	}
	return &b, nil
}

// InsertRanking stores one brand observation. Rank-0 rows are the caller's
// responsibility to skip.
func (s *Store) InsertRanking(ctx context.Context, r model.Ranking) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vis_ranking
		 (query_id, platform, brand, rank_position, snippet, snapshot_id, scraped_at, pipeline_run_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.QueryID, r.Platform, r.Brand, r.RankPosition, r.Snippet, r.SnapshotID, r.ScrapedAt, r.PipelineRunID)
	return errors.Wrap(err, "inserting ranking")
}

// DistinctLatestRankings returns, for one (query, run), the most recent
// ranking per (platform, brand). Feeds score computation.
func (s *Store) DistinctLatestRankings(ctx context.Context, queryID, runID int64) ([]model.Ranking, error) {
	var rows []model.Ranking
	err := s.db.SelectContext(ctx, &rows,
		`SELECT DISTINCT ON (platform, brand) query_id, platform, brand, rank_position, scraped_at
		 FROM vis_ranking
		 WHERE query_id = $1 AND pipeline_run_id = $2
		 ORDER BY platform, brand, scraped_at DESC`,
		queryID, runID)
	return rows, errors.Wrap(err, "fetching latest rankings")
}

// InsertScore stores one visibility score row.
func (s *Store) InsertScore(ctx context.Context, sc model.Score) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vis_score (query_id, brand, visibility_score, competitive_gap, period, computed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sc.QueryID, sc.Brand, sc.VisibilityScore, sc.CompetitiveGap, sc.Period, sc.ComputedAt)
	return errors.Wrap(err, "inserting score")
}

// LatestScores returns the most recent scores for a query, newest first.
func (s *Store) LatestScores(ctx context.Context, queryID int64, period model.ScorePeriod, limit int) ([]model.Score, error) {
	var rows []model.Score
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, query_id, brand, visibility_score, competitive_gap, period, computed_at
		 FROM vis_score
		 WHERE query_id = $1 AND period = $2
		 ORDER BY computed_at DESC
		 LIMIT $3`,
		queryID, period, limit)
	return rows, errors.Wrap(err, "fetching scores")
}

// CreateRun inserts a running vis_pipeline_run row and returns its id.
func (s *Store) CreateRun(ctx context.Context, flowName string, queriesTotal int, startedAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO vis_pipeline_run (flow_name, status, queries_total, started_at)
		 VALUES ($1, 'running', $2, $3) RETURNING id`,
		flowName, queriesTotal, startedAt).Scan(&id)
	return id, errors.Wrap(err, "creating pipeline run")
}

// FinalizeRun moves a run to its terminal status and records counts, cost,
// and wall-clock duration. Error detail is truncated to fit the column.
func (s *Store) FinalizeRun(ctx context.Context, runID int64, status model.PipelineStatus, successCount, failureCount, quarantineCount int, costUSD float64, errorDetail *string, completedAt time.Time) error {
	if errorDetail != nil && len(*errorDetail) > maxErrorDetailLen {
		truncated := (*errorDetail)[:maxErrorDetailLen]
		errorDetail = &truncated
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE vis_pipeline_run SET
		 status = $2, success_count = $3, failure_count = $4, quarantine_count = $5,
		 cost_usd = $6, error_detail = $7, completed_at = $8,
		 duration_sec = EXTRACT(EPOCH FROM ($8::timestamptz - started_at))
		 WHERE id = $1`,
		runID, status, successCount, failureCount, quarantineCount, costUSD, errorDetail, completedAt)
	return errors.Wrap(err, "finalizing pipeline run")
}

// GetRun fetches one pipeline run by id.
func (s *Store) GetRun(ctx context.Context, runID int64) (*model.PipelineRun, error) {
	var run model.PipelineRun
	err := s.db.GetContext(ctx, &run,
		`SELECT id, flow_name, status, queries_total, success_count, failure_count,
		        quarantine_count, cost_usd, duration_sec, error_detail, started_at, completed_at
		 FROM vis_pipeline_run WHERE id = $1`,
		runID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching pipeline run")
	}
	return &run, nil
}
