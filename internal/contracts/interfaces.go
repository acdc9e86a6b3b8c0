package contracts

import (
	"context"
	"time"
)

// Broker is the brokerage account, market and order surface
// ⭐ SSOT: every brokerage read goes through this interface
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	ListAssets(ctx context.Context, status, class string) ([]Asset, error)
	// GetCalendar returns trading sessions from start; a zero end leaves the range open.
	GetCalendar(ctx context.Context, start, end time.Time) ([]CalendarDay, error)
	GetClock(ctx context.Context) (Clock, error)
	ListOrders(ctx context.Context, status string) ([]Order, error)
	ListPositions(ctx context.Context) ([]Position, error)
	CancelOrder(ctx context.Context, order Order) error
}

// SymbolSource lists external symbol metadata across all pages
type SymbolSource interface {
	ListSymbols(ctx context.Context) ([]Symbol, error)
}

// BarSource serves historic aggregates
type BarSource interface {
	HistoricAgg(ctx context.Context, size, symbol string, from, to time.Time, limit int) ([]Bar, error)
}

// EarningsSource lists earnings announcements in [from, to]
type EarningsSource interface {
	EarningsBetween(ctx context.Context, from, to time.Time) ([]EarningsEvent, error)
}

// Aggregate sizes accepted by BarSource
const (
	BarSizeDay    = "day"
	BarSizeMinute = "minute"
)
