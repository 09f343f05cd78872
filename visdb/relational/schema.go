package relational

// Schema is the DDL for the relational tables. Applied by the init-schema
// command; every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS vis_query (
    id          SERIAL PRIMARY KEY,
    query_text  VARCHAR(500) NOT NULL,
    category    VARCHAR(50)  NOT NULL DEFAULT 'general',
    priority    VARCHAR(10)  NOT NULL DEFAULT 'medium',
    brands      JSONB        NOT NULL DEFAULT '[]',
    is_active   BOOLEAN      NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vis_query_active_priority ON vis_query (is_active, priority);

CREATE TABLE IF NOT EXISTS vis_brand (
    id          SERIAL PRIMARY KEY,
    name        VARCHAR(100) NOT NULL,
    is_primary  BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vis_brand_name_lower ON vis_brand (LOWER(name));

CREATE TABLE IF NOT EXISTS vis_ranking (
    id               BIGSERIAL PRIMARY KEY,
    query_id         INTEGER      NOT NULL,
    platform         VARCHAR(20)  NOT NULL,
    brand            VARCHAR(100) NOT NULL,
    rank_position    INTEGER      NOT NULL DEFAULT 0,
    snippet          TEXT,
    snapshot_id      VARCHAR(24),
    scraped_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    pipeline_run_id  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_vis_ranking_query_time ON vis_ranking (query_id, scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_vis_ranking_brand_time ON vis_ranking (brand, scraped_at DESC);

CREATE TABLE IF NOT EXISTS vis_score (
    id                BIGSERIAL PRIMARY KEY,
    query_id          INTEGER      NOT NULL,
    brand             VARCHAR(100) NOT NULL,
    visibility_score  FLOAT        NOT NULL DEFAULT 0,
    competitive_gap   FLOAT,
    period            VARCHAR(10)  NOT NULL DEFAULT 'raw',
    computed_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_vis_score_query_brand ON vis_score (query_id, brand, computed_at DESC);

CREATE TABLE IF NOT EXISTS vis_pipeline_run (
    id                SERIAL PRIMARY KEY,
    flow_name         VARCHAR(50) NOT NULL,
    status            VARCHAR(20) NOT NULL DEFAULT 'running',
    queries_total     INTEGER     NOT NULL DEFAULT 0,
    success_count     INTEGER     NOT NULL DEFAULT 0,
    failure_count     INTEGER     NOT NULL DEFAULT 0,
    quarantine_count  INTEGER     NOT NULL DEFAULT 0,
    cost_usd          FLOAT       NOT NULL DEFAULT 0,
    duration_sec      FLOAT,
    error_detail      TEXT,
    started_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at      TIMESTAMPTZ
);
`
