// Package marketclock decides when trading-day phases are due.
//
// Gate is the field-exact predicate set over the brokerage clock. The
// trading loop schedules phases through Session, Trigger and Guard instead,
// which fire a phase at most once per session however the loop is polled.
package marketclock

import (
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

// DefaultTimezone is the exchange time zone
const DefaultTimezone = "America/New_York"

// Offset is an {hour, minute, second} shift applied to an open or close instant
type Offset struct {
	Hour   int
	Minute int
	Second int
}

// Minutes returns an offset of m minutes
func Minutes(m int) Offset {
	return Offset{Minute: m}
}

// Duration converts the offset to a time.Duration
func (o Offset) Duration() time.Duration {
	return time.Duration(o.Hour)*time.Hour +
		time.Duration(o.Minute)*time.Minute +
		time.Duration(o.Second)*time.Second
}

// OffsetOf splits a non-negative duration into an Offset, dropping fractions of a second
func OffsetOf(d time.Duration) Offset {
	return Offset{
		Hour:   int(d / time.Hour),
		Minute: int(d % time.Hour / time.Minute),
		Second: int(d % time.Minute / time.Second),
	}
}

// Gate evaluates clock predicates against the caller's wall time
type Gate struct {
	clock contracts.Clock
	loc   *time.Location
}

// NewGate creates a gate over clock in loc (UTC when nil)
func NewGate(clock contracts.Clock, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{clock: clock, loc: loc}
}

// Clock returns the clock the gate evaluates
func (g *Gate) Clock() contracts.Clock {
	return g.clock
}

// AfterOpen is true during the single second that matches next open plus offset
func (g *Gate) AfterOpen(now time.Time, offset Offset) bool {
	return g.sameSecond(now, g.clock.NextOpen.Add(offset.Duration()))
}

// AfterClose is true during the single second that matches next close plus offset
func (g *Gate) AfterClose(now time.Time, offset Offset) bool {
	return g.sameSecond(now, g.clock.NextClose.Add(offset.Duration()))
}

// BeforeOpen is true during the single second that matches next open minus offset
func (g *Gate) BeforeOpen(now time.Time, offset Offset) bool {
	return g.sameSecond(now, g.clock.NextOpen.Add(-offset.Duration()))
}

// BeforeClose is true during the single second that matches next close minus offset
func (g *Gate) BeforeClose(now time.Time, offset Offset) bool {
	return g.sameSecond(now, g.clock.NextClose.Add(-offset.Duration()))
}

// DuringMarketHoursPerMinute is true once a minute, at the given second,
// while the market is open on the open's calendar date.
func (g *Gate) DuringMarketHoursPerMinute(now time.Time, second int) bool {
	n, open, closeAt := g.fields(now)

	if !sameDate(n, open) || n.Hour() < open.Hour() || n.Hour() > closeAt.Hour() || n.Second() != second {
		return false
	}

	// final partial hour after close, first partial hour before open
	if (closeAt.Hour() == n.Hour() && closeAt.Minute() < n.Minute()) ||
		(open.Hour() == n.Hour() && open.Minute() > n.Minute()) {
		return false
	}

	// same minute as close or open, outside by seconds
	if (closeAt.Hour() == n.Hour() && closeAt.Minute() == n.Minute() && closeAt.Second() < second) ||
		(open.Hour() == n.Hour() && open.Minute() == n.Minute() && open.Second() > second) {
		return false
	}

	return true
}

// DuringMarketHoursPerHour is true once an hour, at minute:second, while
// the market is open on the open's calendar date.
func (g *Gate) DuringMarketHoursPerHour(now time.Time, minute, second int) bool {
	n, open, closeAt := g.fields(now)

	if !sameDate(n, open) || n.Hour() < open.Hour() || n.Hour() > closeAt.Hour() ||
		n.Minute() != minute || n.Second() != second {
		return false
	}

	if (closeAt.Hour() == n.Hour() && closeAt.Minute() < n.Minute()) ||
		(open.Hour() == n.Hour() && open.Minute() > n.Minute()) {
		return false
	}

	if (closeAt.Hour() == n.Hour() && closeAt.Minute() == n.Minute() && closeAt.Second() < second) ||
		(open.Hour() == n.Hour() && open.Minute() == n.Minute() && open.Second() > second) {
		return false
	}

	return true
}

// Matches reports whether the field-exact predicate for t holds at now.
// Negative offsets map to BeforeOpen/BeforeClose.
func (g *Gate) Matches(now time.Time, t Trigger) bool {
	d := t.Offset
	before := d < 0
	if before {
		d = -d
	}
	off := OffsetOf(d)

	switch {
	case t.Anchor == AnchorClose && before:
		return g.BeforeClose(now, off)
	case t.Anchor == AnchorClose:
		return g.AfterClose(now, off)
	case before:
		return g.BeforeOpen(now, off)
	default:
		return g.AfterOpen(now, off)
	}
}

// GateReport is the gate evaluated at one instant
type GateReport struct {
	At         time.Time `json:"at"`
	Matching   []string  `json:"matching"`    // triggers whose predicate holds
	MinuteTick bool      `json:"minute_tick"` // DuringMarketHoursPerMinute(at, 0)
	HourTick   bool      `json:"hour_tick"`   // DuringMarketHoursPerHour(at, 0, 0)
}

// Report evaluates every trigger and the market-hours ticks at now
func (g *Gate) Report(now time.Time, triggers []Trigger) GateReport {
	r := GateReport{
		At:         now.In(g.loc),
		Matching:   []string{},
		MinuteTick: g.DuringMarketHoursPerMinute(now, 0),
		HourTick:   g.DuringMarketHoursPerHour(now, 0, 0),
	}
	for _, t := range triggers {
		if g.Matches(now, t) {
			r.Matching = append(r.Matching, t.Name)
		}
	}
	return r
}

func (g *Gate) fields(now time.Time) (n, open, closeAt time.Time) {
	return now.In(g.loc), g.clock.NextOpen.In(g.loc), g.clock.NextClose.In(g.loc)
}

// sameSecond compares calendar date, hour, minute and second in the gate's location
func (g *Gate) sameSecond(now, target time.Time) bool {
	n := now.In(g.loc)
	t := target.In(g.loc)
	return sameDate(n, t) && n.Hour() == t.Hour() && n.Minute() == t.Minute() && n.Second() == t.Second()
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
