package timeseries

// schemaStatements is the hypertable DDL. Statements run one at a time
// because the TimescaleDB policy functions cannot share a multi-statement
// exec with plain DDL.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE`,

	`CREATE TABLE IF NOT EXISTS ts_search_rank (
	    time              TIMESTAMPTZ  NOT NULL,
	    query_id          INTEGER      NOT NULL,
	    platform          VARCHAR(20)  NOT NULL,
	    brand             VARCHAR(100) NOT NULL,
	    rank_position     INTEGER      NOT NULL DEFAULT 0,
	    visibility_score  FLOAT        NOT NULL DEFAULT 0
	)`,

	`SELECT create_hypertable('ts_search_rank', 'time', if_not_exists => TRUE)`,

	`CREATE INDEX IF NOT EXISTS idx_ts_rank_query ON ts_search_rank(query_id, time DESC)`,

	`CREATE MATERIALIZED VIEW IF NOT EXISTS ts_daily_rank
	 WITH (timescaledb.continuous) AS
	 SELECT
	     time_bucket('1 day', time) AS day,
	     query_id,
	     brand,
	     AVG(rank_position)    AS avg_rank,
	     AVG(visibility_score) AS avg_score,
	     COUNT(*)              AS sample_count
	 FROM ts_search_rank
	 GROUP BY day, query_id, brand
	 WITH NO DATA`,

	`SELECT add_continuous_aggregate_policy('ts_daily_rank',
	     start_offset  => INTERVAL '3 days',
	     end_offset    => INTERVAL '1 hour',
	     schedule_interval => INTERVAL '1 hour',
	     if_not_exists => TRUE)`,

	`SELECT add_retention_policy('ts_search_rank',
	     INTERVAL '1 year',
	     if_not_exists => TRUE)`,
}
