// Package snapshot builds consistent point-in-time reads of the account,
// market and order state that the trading loop and its strategy act on.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

// Snapshot is one consistent read of brokerage and market data. A snapshot
// is never modified after it is built; refreshes return a new one.
type Snapshot struct {
	CreatedAt time.Time                 `json:"created_at"`
	Account   contracts.Account         `json:"account"`
	Assets    []contracts.Asset         `json:"assets"`
	Calendar  []contracts.CalendarDay   `json:"calendar"`
	Clock     contracts.Clock           `json:"clock"`
	Earnings  []contracts.EarningsEvent `json:"earnings"`
	Orders    []contracts.Order         `json:"orders"`
	Symbols   []contracts.Symbol        `json:"symbols"`
	Positions []contracts.Position      `json:"positions"`
}

// CanTradeSymbol reports whether symbol is a known, tradable asset.
// Unknown symbols are not tradable.
func (s *Snapshot) CanTradeSymbol(symbol string) bool {
	for _, a := range s.Assets {
		if a.Symbol == symbol {
			return a.Tradable
		}
	}
	return false
}

// Position returns the open position in symbol
func (s *Snapshot) Position(symbol string) (contracts.Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return contracts.Position{}, false
}

// OpenOrders returns the orders that can still be canceled
func (s *Snapshot) OpenOrders() []contracts.Order {
	open := make([]contracts.Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if o.Cancelable() {
			open = append(open, o)
		}
	}
	return open
}

// CanSellShares reports whether the position in symbol may be sold today
func (s *Snapshot) CanSellShares(symbol string) bool {
	pos, ok := s.Position(symbol)
	if !ok {
		return false
	}
	return pos.CanSellShares(s.Orders, s.Account.CanDayTrade())
}

// WithClock returns a copy of the snapshot carrying clock
func (s *Snapshot) WithClock(clock contracts.Clock) *Snapshot {
	next := *s
	next.Clock = clock
	return &next
}

// WithPositions returns a copy of the snapshot carrying positions
func (s *Snapshot) WithPositions(positions []contracts.Position) *Snapshot {
	next := *s
	next.Positions = positions
	return &next
}

// RefreshClock fetches the clock and returns a copy of the snapshot with it
func (s *Snapshot) RefreshClock(ctx context.Context, broker contracts.Broker) (*Snapshot, error) {
	clock, err := broker.GetClock(ctx)
	if err != nil {
		return nil, &StepError{Step: StepClock, Err: err}
	}
	return s.WithClock(clock), nil
}

// RefreshPositions fetches positions, ages them against this snapshot's
// positions, and returns a copy of the snapshot with them
func (s *Snapshot) RefreshPositions(ctx context.Context, broker contracts.Broker) (*Snapshot, error) {
	fresh, err := broker.ListPositions(ctx)
	if err != nil {
		return nil, &StepError{Step: StepPositions, Err: err}
	}
	return s.WithPositions(AgePositions(s.Positions, fresh)), nil
}

// AgePositions sets each fresh position's age: one more than the previous
// age when the symbol was already held, otherwise zero. fresh is not
// modified and its order is kept.
func AgePositions(prev, fresh []contracts.Position) []contracts.Position {
	ages := make(map[string]int, len(prev))
	for _, p := range prev {
		ages[p.Symbol] = p.Age
	}

	aged := make([]contracts.Position, len(fresh))
	for i, p := range fresh {
		if age, ok := ages[p.Symbol]; ok {
			p.Age = age + 1
		} else {
			p.Age = 0
		}
		aged[i] = p
	}
	return aged
}

// Rebase returns built with the updates current received since base was
// read: a newer clock wins, and positions refreshed in between are aged
// once more on top of the built positions.
func Rebase(built, base, current *Snapshot) *Snapshot {
	next := *built
	if current.Clock.Timestamp.After(built.Clock.Timestamp) {
		next.Clock = current.Clock
	}
	if base == nil || !sameAges(base.Positions, current.Positions) {
		next.Positions = AgePositions(current.Positions, built.Positions)
	}
	return &next
}

func sameAges(a, b []contracts.Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol || a[i].Age != b[i].Age {
			return false
		}
	}
	return true
}

// EarningsWindow returns today 00:00 through the next trading day 23:59 in
// loc. On Fridays the window runs through Monday.
func EarningsWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, loc)

	days := 1
	if local.Weekday() == time.Friday {
		days = 3
	}
	end := from.AddDate(0, 0, days)
	to = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 0, 0, loc)
	return from, to
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{created_at=%s assets=%d calendar=%d earnings=%d orders=%d symbols=%d positions=%d clock=%s}",
		s.CreatedAt.Format(time.RFC3339), len(s.Assets), len(s.Calendar), len(s.Earnings),
		len(s.Orders), len(s.Symbols), len(s.Positions), s.Clock)
}
