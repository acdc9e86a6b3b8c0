package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/pkg/logger"
)

// Build steps, in call order
const (
	StepAccount   = "account"
	StepAssets    = "assets"
	StepCalendar  = "calendar"
	StepClock     = "clock"
	StepEarnings  = "earnings"
	StepOrders    = "orders"
	StepSymbols   = "symbols"
	StepPositions = "positions"
)

// StepError names the build step that failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("snapshot %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Builder assembles snapshots from the brokerage and data sources
// ⭐ SSOT: snapshots are only constructed here
type Builder struct {
	broker   contracts.Broker
	symbols  contracts.SymbolSource
	earnings contracts.EarningsSource
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

// NewBuilder creates a new snapshot builder
func NewBuilder(broker contracts.Broker, symbols contracts.SymbolSource, earnings contracts.EarningsSource, loc *time.Location, log *logger.Logger) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{
		broker:   broker,
		symbols:  symbols,
		earnings: earnings,
		loc:      loc,
		logger:   log.WithComponent("snapshot"),
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Broker returns the brokerage the builder reads from
func (b *Builder) Broker() contracts.Broker {
	return b.broker
}

// CalendarStart is the first date requested from the trading calendar
func (b *Builder) CalendarStart() time.Time {
	return time.Date(2018, 1, 1, 0, 0, 0, 0, b.loc)
}

// Build reads every source in order and returns a complete snapshot.
// Position ages are diffed against prev, which may be nil. Any failing
// step aborts the build with a *StepError.
func (b *Builder) Build(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
	start := b.now()
	snap := &Snapshot{CreatedAt: start}
	var err error

	// 1. Account
	if snap.Account, err = b.broker.GetAccount(ctx); err != nil {
		return nil, &StepError{Step: StepAccount, Err: err}
	}

	// 2. Active US equities
	if snap.Assets, err = b.broker.ListAssets(ctx, contracts.AssetStatusActive, contracts.AssetClassUSEquity); err != nil {
		return nil, &StepError{Step: StepAssets, Err: err}
	}

	// 3. Calendar, open ended
	if snap.Calendar, err = b.broker.GetCalendar(ctx, b.CalendarStart(), time.Time{}); err != nil {
		return nil, &StepError{Step: StepCalendar, Err: err}
	}

	// 4. Clock
	if snap.Clock, err = b.broker.GetClock(ctx); err != nil {
		return nil, &StepError{Step: StepClock, Err: err}
	}

	// 5. Earnings
	from, to := EarningsWindow(start, b.loc)
	if snap.Earnings, err = b.earnings.EarningsBetween(ctx, from, to); err != nil {
		return nil, &StepError{Step: StepEarnings, Err: err}
	}

	// 6. Orders
	if snap.Orders, err = b.broker.ListOrders(ctx, contracts.OrderQueryAll); err != nil {
		return nil, &StepError{Step: StepOrders, Err: err}
	}

	// 7. External symbols
	if snap.Symbols, err = b.symbols.ListSymbols(ctx); err != nil {
		return nil, &StepError{Step: StepSymbols, Err: err}
	}

	// 8. Positions, aged against the previous snapshot
	fresh, err := b.broker.ListPositions(ctx)
	if err != nil {
		return nil, &StepError{Step: StepPositions, Err: err}
	}
	var prevPositions []contracts.Position
	if prev != nil {
		prevPositions = prev.Positions
	}
	snap.Positions = AgePositions(prevPositions, fresh)

	b.logger.WithFields(map[string]interface{}{
		"assets":    len(snap.Assets),
		"calendar":  len(snap.Calendar),
		"earnings":  len(snap.Earnings),
		"orders":    len(snap.Orders),
		"symbols":   len(snap.Symbols),
		"positions": len(snap.Positions),
		"duration":  time.Since(start).String(),
	}).Info("Snapshot built")

	return snap, nil
}
