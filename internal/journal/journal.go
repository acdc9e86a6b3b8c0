// Package journal records when each trading phase last fired.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// Run outcomes
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Entry is the latest run of one phase
type Entry struct {
	Phase   string    `json:"phase"`
	Date    string    `json:"session_date"`
	FiredAt time.Time `json:"fired_at"`
	Runs    int       `json:"runs"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
}

// Store persists phase runs. It satisfies marketclock.FiredStore.
type Store interface {
	LastFired(ctx context.Context, phase string) (time.Time, bool, error)
	MarkFired(ctx context.Context, phase string, date, at time.Time) error
	RecordResult(ctx context.Context, phase string, runErr error) error
	Entries(ctx context.Context) ([]Entry, error)
}

// Memory is an in-process Store
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory journal
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) LastFired(_ context.Context, phase string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[phase]
	if !ok {
		return time.Time{}, false, nil
	}
	date, err := time.Parse(dateLayout, e.Date)
	if err != nil {
		return time.Time{}, false, err
	}
	return date, true, nil
}

func (m *Memory) MarkFired(_ context.Context, phase string, date, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entries[phase]
	m.entries[phase] = Entry{
		Phase:   phase,
		Date:    date.Format(dateLayout),
		FiredAt: at,
		Runs:    e.Runs + 1,
		Status:  StatusRunning,
	}
	return nil
}

func (m *Memory) RecordResult(_ context.Context, phase string, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[phase]
	if !ok {
		return nil
	}
	e.Status, e.Error = outcome(runErr)
	m.entries[phase] = e
	return nil
}

// Entries returns every phase's latest run, ordered by phase name
func (m *Memory) Entries(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Phase < entries[j].Phase })
	return entries, nil
}

func outcome(runErr error) (status, message string) {
	if runErr != nil {
		return StatusError, runErr.Error()
	}
	return StatusOK, ""
}
