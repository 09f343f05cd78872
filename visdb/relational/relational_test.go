package relational

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapunion/visibility/pkg/model"
)

func testStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db, log.NewNopLogger()), mock
}

func TestActiveQueriesOrderAndBrandDecode(t *testing.T) {
	s, mock := testStore(t)

	mock.ExpectQuery(`SELECT id, query_text, category, priority, brands\s+FROM vis_query WHERE is_active = TRUE\s+ORDER BY CASE priority`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "query_text", "category", "priority", "brands"}).
			AddRow(4, "is levoit a good brand", "brand_search", "high", []byte(`["Levoit","Dyson"]`)).
			AddRow(6, "air purifier for allergies", "category_search", "medium", []byte(`["Levoit","Coway"]`)).
			AddRow(9, "do air purifiers really work", "general", "low", []byte(`[]`)))

	queries, err := s.ActiveQueries(context.Background())
	require.NoError(t, err)
	require.Len(t, queries, 3)

	assert.Equal(t, model.PriorityHigh, queries[0].Priority)
	assert.Equal(t, []string{"Levoit", "Dyson"}, queries[0].Brands)
	assert.Equal(t, model.PriorityLow, queries[2].Priority)
	assert.Empty(t, queries[2].Brands)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertQueryRejectsOverlongText(t *testing.T) {
	s, mock := testStore(t)

	_, err := s.InsertQuery(context.Background(), model.Query{
		QueryText: strings.Repeat("q", model.MaxQueryTextLen+1),
		Brands:    []string{"Levoit"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "no statement may reach the store")
}

func TestPrimaryBrand(t *testing.T) {
	s, mock := testStore(t)

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, name, is_primary, created_at FROM vis_brand WHERE is_primary = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_primary", "created_at"}).
			AddRow(1, "Levoit", true, created))

	b, err := s.PrimaryBrand(context.Background())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "Levoit", b.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrimaryBrandAbsent(t *testing.T) {
	s, mock := testStore(t)

	mock.ExpectQuery(`SELECT id, name, is_primary, created_at FROM vis_brand WHERE is_primary = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_primary", "created_at"}))

	b, err := s.PrimaryBrand(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestInsertRanking(t *testing.T) {
	s, mock := testStore(t)

	scraped := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO vis_ranking`).
		WithArgs(int64(4), model.PlatformChatGPT, "Levoit", 1, "...Levoit Core 300S...", "66cf01ab12cd34ef56ab78cd", scraped, int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.InsertRanking(context.Background(), model.Ranking{
		QueryID:       4,
		Platform:      model.PlatformChatGPT,
		Brand:         "Levoit",
		RankPosition:  1,
		Snippet:       "...Levoit Core 300S...",
		SnapshotID:    "66cf01ab12cd34ef56ab78cd",
		ScrapedAt:     scraped,
		PipelineRunID: 12,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDistinctLatestRankings(t *testing.T) {
	s, mock := testStore(t)

	scraped := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT DISTINCT ON \(platform, brand\) query_id, platform, brand, rank_position, scraped_at\s+FROM vis_ranking`).
		WithArgs(int64(4), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"query_id", "platform", "brand", "rank_position", "scraped_at"}).
			AddRow(4, "chatgpt", "Levoit", 1, scraped).
			AddRow(4, "perplexity", "Levoit", 2, scraped))

	rows, err := s.DistinctLatestRankings(context.Background(), 4, 12)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.PlatformChatGPT, rows[0].Platform)
	assert.Equal(t, 1, rows[0].RankPosition)
}

func TestCreateAndFinalizeRun(t *testing.T) {
	s, mock := testStore(t)

	started := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	completed := started.Add(95 * time.Second)

	mock.ExpectQuery(`INSERT INTO vis_pipeline_run \(flow_name, status, queries_total, started_at\)`).
		WithArgs("hourly_rank_check", 10, started).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	runID, err := s.CreateRun(context.Background(), "hourly_rank_check", 10, started)
	require.NoError(t, err)
	assert.Equal(t, int64(12), runID)

	mock.ExpectExec(`UPDATE vis_pipeline_run SET`).
		WithArgs(int64(12), model.StatusCompleted, 28, 2, 1, 0.42, nil, completed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.FinalizeRun(context.Background(), runID, model.StatusCompleted, 28, 2, 1, 0.42, nil, completed)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRunTruncatesErrorDetail(t *testing.T) {
	s, mock := testStore(t)

	long := strings.Repeat("x", 900)
	completed := time.Date(2026, 8, 24, 9, 2, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE vis_pipeline_run SET`).
		WithArgs(int64(7), model.StatusFailed, 0, 0, 0, 1.5, strings.Repeat("x", 500), completed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.FinalizeRun(context.Background(), 7, model.StatusFailed, 0, 0, 0, 1.5, &long, completed)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScoreNilGap(t *testing.T) {
	s, mock := testStore(t)

	computed := time.Date(2026, 8, 24, 10, 5, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO vis_score`).
		WithArgs(int64(4), "Dyson", 36.25, nil, model.PeriodRaw, computed).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.InsertScore(context.Background(), model.Score{
		QueryID:         4,
		Brand:           "Dyson",
		VisibilityScore: 36.25,
		Period:          model.PeriodRaw,
		ComputedAt:      computed,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
