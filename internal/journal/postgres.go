package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS phase_journal (
		phase        TEXT PRIMARY KEY,
		session_date DATE NOT NULL,
		fired_at     TIMESTAMPTZ NOT NULL,
		runs         INTEGER NOT NULL DEFAULT 1,
		status       TEXT NOT NULL DEFAULT 'running',
		error        TEXT NOT NULL DEFAULT ''
	)
`

// Postgres is a Store backed by the phase_journal table
// ⭐ SSOT: phase_journal reads and writes happen here only
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres journal. Call EnsureSchema before use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the phase_journal table if it does not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create phase_journal: %w", err)
	}
	return nil
}

func (p *Postgres) LastFired(ctx context.Context, phase string) (time.Time, bool, error) {
	query := `SELECT session_date FROM phase_journal WHERE phase = $1`

	var date time.Time
	err := p.pool.QueryRow(ctx, query, phase).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read phase %s: %w", phase, err)
	}
	return date, true, nil
}

func (p *Postgres) MarkFired(ctx context.Context, phase string, date, at time.Time) error {
	query := `
		INSERT INTO phase_journal (phase, session_date, fired_at, runs, status, error)
		VALUES ($1, $2::date, $3, 1, 'running', '')
		ON CONFLICT (phase) DO UPDATE SET
			session_date = EXCLUDED.session_date,
			fired_at = EXCLUDED.fired_at,
			runs = phase_journal.runs + 1,
			status = 'running',
			error = ''
	`

	if _, err := p.pool.Exec(ctx, query, phase, date.Format(dateLayout), at); err != nil {
		return fmt.Errorf("failed to mark phase %s: %w", phase, err)
	}
	return nil
}

func (p *Postgres) RecordResult(ctx context.Context, phase string, runErr error) error {
	status, message := outcome(runErr)
	query := `UPDATE phase_journal SET status = $2, error = $3 WHERE phase = $1`

	if _, err := p.pool.Exec(ctx, query, phase, status, message); err != nil {
		return fmt.Errorf("failed to record phase %s result: %w", phase, err)
	}
	return nil
}

func (p *Postgres) Entries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT phase, session_date, fired_at, runs, status, error
		FROM phase_journal
		ORDER BY phase
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var date time.Time
		if err := rows.Scan(&e.Phase, &date, &e.FiredAt, &e.Runs, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan phase journal: %w", err)
		}
		e.Date = date.Format(dateLayout)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
