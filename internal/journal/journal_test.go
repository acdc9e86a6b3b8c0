package journal

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-us/internal/marketclock"
	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/database"
)

var (
	_ marketclock.FiredStore = (*Memory)(nil)
	_ marketclock.FiredStore = (*Postgres)(nil)
	_ Store                  = (*Memory)(nil)
	_ Store                  = (*Postgres)(nil)
)

// exerciseStore runs the shared Store contract against s
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	_, ok, err := s.LastFired(ctx, "pre_open")
	require.NoError(t, err)
	assert.False(t, ok, "unknown phase")

	session := time.Date(2024, 3, 1, 0, 0, 0, 0, loc)
	firedAt := time.Date(2024, 3, 1, 9, 15, 0, 0, loc)
	require.NoError(t, s.MarkFired(ctx, "pre_open", session, firedAt))

	date, ok, err := s.LastFired(ctx, "pre_open")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", date.Format(dateLayout))

	require.NoError(t, s.RecordResult(ctx, "pre_open", errors.New("no candidates")))
	require.NoError(t, s.MarkFired(ctx, "pre_open", session.AddDate(0, 0, 3), firedAt.AddDate(0, 0, 3)))
	require.NoError(t, s.MarkFired(ctx, "intraday_0", session, firedAt.Add(16*time.Minute)))
	require.NoError(t, s.RecordResult(ctx, "intraday_0", nil))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "intraday_0", entries[0].Phase)
	assert.Equal(t, StatusOK, entries[0].Status)

	assert.Equal(t, "pre_open", entries[1].Phase)
	assert.Equal(t, "2024-03-04", entries[1].Date)
	assert.Equal(t, 2, entries[1].Runs)
	assert.Equal(t, StatusRunning, entries[1].Status, "a new firing clears the previous outcome")
	assert.Empty(t, entries[1].Error)
	assert.True(t, firedAt.AddDate(0, 0, 3).Equal(entries[1].FiredAt))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_RecordResultUnknownPhase(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.RecordResult(context.Background(), "post_close", errors.New("x")))

	entries, err := m.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPostgres(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, config.DatabaseConfig{URL: dbURL, MaxConns: 2, MinConns: 1})
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgres(db.Pool)
	require.NoError(t, store.EnsureSchema(ctx))

	_, err = db.Pool.Exec(ctx, `DELETE FROM phase_journal WHERE phase IN ('pre_open', 'intraday_0')`)
	require.NoError(t, err)
	defer func() {
		_, _ = db.Pool.Exec(ctx, `DELETE FROM phase_journal WHERE phase IN ('pre_open', 'intraday_0')`)
	}()

	exerciseStore(t, store)
}
