// Package snapshottest provides in-memory brokerage and data sources for tests.
package snapshottest

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

// Broker is an in-memory contracts.Broker. Errs maps a method name
// ("account", "assets", "calendar", "clock", "orders", "positions",
// "cancel") to the error it returns.
type Broker struct {
	mu sync.Mutex

	Account   contracts.Account
	Assets    []contracts.Asset
	Calendar  []contracts.CalendarDay
	Clock     contracts.Clock
	Orders    []contracts.Order
	Positions []contracts.Position
	Errs      map[string]error

	calls    []string
	canceled []string
}

var _ contracts.Broker = (*Broker)(nil)

func (b *Broker) record(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
	return b.Errs[name]
}

// Calls returns the methods called so far, in order
func (b *Broker) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Canceled returns the ids passed to CancelOrder
func (b *Broker) Canceled() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.canceled...)
}

// SetClock replaces the clock returned by GetClock
func (b *Broker) SetClock(clock contracts.Clock) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Clock = clock
}

// SetPositions replaces the positions returned by ListPositions
func (b *Broker) SetPositions(positions []contracts.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Positions = positions
}

func (b *Broker) GetAccount(context.Context) (contracts.Account, error) {
	if err := b.record("account"); err != nil {
		return contracts.Account{}, err
	}
	return b.Account, nil
}

func (b *Broker) ListAssets(_ context.Context, _, _ string) ([]contracts.Asset, error) {
	if err := b.record("assets"); err != nil {
		return nil, err
	}
	return append([]contracts.Asset(nil), b.Assets...), nil
}

func (b *Broker) GetCalendar(_ context.Context, _, _ time.Time) ([]contracts.CalendarDay, error) {
	if err := b.record("calendar"); err != nil {
		return nil, err
	}
	return append([]contracts.CalendarDay(nil), b.Calendar...), nil
}

func (b *Broker) GetClock(context.Context) (contracts.Clock, error) {
	if err := b.record("clock"); err != nil {
		return contracts.Clock{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock, nil
}

func (b *Broker) ListOrders(_ context.Context, _ string) ([]contracts.Order, error) {
	if err := b.record("orders"); err != nil {
		return nil, err
	}
	return append([]contracts.Order(nil), b.Orders...), nil
}

func (b *Broker) ListPositions(context.Context) ([]contracts.Position, error) {
	if err := b.record("positions"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]contracts.Position(nil), b.Positions...), nil
}

func (b *Broker) CancelOrder(_ context.Context, order contracts.Order) error {
	if err := b.record("cancel"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.canceled = append(b.canceled, order.ID)
	return nil
}

// Symbols is an in-memory contracts.SymbolSource
type Symbols struct {
	List []contracts.Symbol
	Err  error
}

func (s *Symbols) ListSymbols(context.Context) ([]contracts.Symbol, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]contracts.Symbol(nil), s.List...), nil
}

// Earnings is an in-memory contracts.EarningsSource that remembers the
// last window it was asked for
type Earnings struct {
	mu     sync.Mutex
	Events []contracts.EarningsEvent
	Err    error
	From   time.Time
	To     time.Time
}

func (e *Earnings) EarningsBetween(_ context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.From, e.To = from, to
	if e.Err != nil {
		return nil, e.Err
	}
	return append([]contracts.EarningsEvent(nil), e.Events...), nil
}

// Bars is an in-memory contracts.BarSource keyed by symbol
type Bars struct {
	mu   sync.Mutex
	Data map[string][]contracts.Bar
	Errs map[string]error
}

func (b *Bars) HistoricAgg(_ context.Context, _, symbol string, _, _ time.Time, _ int) ([]contracts.Bar, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Errs[symbol]; err != nil {
		return nil, err
	}
	return append([]contracts.Bar(nil), b.Data[symbol]...), nil
}
