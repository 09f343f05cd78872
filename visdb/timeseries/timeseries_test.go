package timeseries

import (
	"context"
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

func TestInsertRank(t *testing.T) {
	s, mock := testStore(t)

	at := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO ts_search_rank`).
		WithArgs(at, int64(4), model.PlatformPerplexity, "Coway", 3, 17.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertRank(context.Background(), model.TimeseriesRank{
		Time:            at,
		QueryID:         4,
		Platform:        model.PlatformPerplexity,
		Brand:           "Coway",
		RankPosition:    3,
		VisibilityScore: 17.5,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyAveragesBoundsAreUTCCalendarDay(t *testing.T) {
	s, mock := testStore(t)

	now := time.Date(2026, 8, 24, 15, 42, 7, 0, time.UTC)
	dayStart := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	dayEnd := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT query_id, brand, AVG\(visibility_score\) AS avg_score\s+FROM ts_search_rank`).
		WithArgs(dayStart, dayEnd).
		WillReturnRows(sqlmock.NewRows([]string{"query_id", "brand", "avg_score"}).
			AddRow(4, "Levoit", 72.5).
			AddRow(4, "Dyson", 40.0))

	rows, err := s.DailyAverages(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Levoit", rows[0].Brand)
	assert.InDelta(t, 72.5, rows[0].AvgScore, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}
