package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoodx/roulettebot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(roundID string, win bool) domain.HistoryEntry {
	profit := 1.0
	if !win {
		profit = -1.0
	}
	return domain.HistoryEntry{
		ID:        "id-" + roundID,
		Timestamp: time.Now(),
		Level:     0,
		Selection: domain.SelectionRed,
		RoundID:   roundID,
		Number:    14,
		Color:     domain.ColorRed,
		IsWin:     win,
		BetAmount: 1.0,
		Profit:    profit,
	}
}

func TestSQLiteStore_SaveReportUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Hour)
	err := s.SaveReport(ctx, "u1", domain.Stats{TotalBets: 1, Wins: 1, Profit: 1, StartedAt: started}, "OPERATING")
	require.NoError(t, err)

	// Segunda escritura actualiza la misma fila
	err = s.SaveReport(ctx, "u1", domain.Stats{TotalBets: 3, Wins: 2, Losses: 1, Profit: 1.5, StartedAt: started}, "ANALYZING")
	require.NoError(t, err)

	stats, status, err := s.Report(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBets)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 1.5, stats.Profit, 1e-9)
	assert.Equal(t, "ANALYZING", status)
}

func TestSQLiteStore_ReportUnknownUser(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Report(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSQLiteStore_SaveEntryIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := testEntry("r1", true)
	require.NoError(t, s.SaveEntry(ctx, "u1", entry))
	// Replay de la misma ronda: no-op
	require.NoError(t, s.SaveEntry(ctx, "u1", entry))

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM history_entries WHERE user_id = 'u1'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_HistoryReadsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := testEntry("r1", true)
	e1.Timestamp = time.Now().Add(-2 * time.Minute)
	e2 := testEntry("r2", false)
	e2.Timestamp = time.Now().Add(-time.Minute)
	require.NoError(t, s.SaveEntry(ctx, "u1", e1))
	require.NoError(t, s.SaveEntry(ctx, "u1", e2))

	entries, err := s.History(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Orden cronológico, más antigua primero
	assert.Equal(t, "r1", entries[0].RoundID)
	assert.True(t, entries[0].IsWin)
	assert.Equal(t, domain.SelectionRed, entries[0].Selection)
	assert.Equal(t, "r2", entries[1].RoundID)
	assert.False(t, entries[1].IsWin)
}

func TestSQLiteStore_EntriesIsolatedPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEntry(ctx, "u1", testEntry("r1", true)))
	require.NoError(t, s.SaveEntry(ctx, "u2", testEntry("r1", false)))

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM history_entries`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "same round for different users must both persist")
}
