package marketclock

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

// DateLayout is the session date key format
const DateLayout = "2006-01-02"

// Session is one trading day
type Session struct {
	Date  time.Time `json:"date"`
	Open  time.Time `json:"open"`
	Close time.Time `json:"close"`
}

// Key returns the session date as YYYY-MM-DD
func (s Session) Key() string {
	return s.Date.Format(DateLayout)
}

func (s Session) String() string {
	return fmt.Sprintf("Session{date=%s open=%s close=%s}",
		s.Key(), s.Open.Format(time.RFC3339), s.Close.Format(time.RFC3339))
}

// SessionFor finds today's session in loc. The calendar is searched first;
// when it has no entry for today, a clock whose next open and next close
// both fall on today is used instead.
func SessionFor(now time.Time, calendar []contracts.CalendarDay, clock contracts.Clock, loc *time.Location) (Session, bool) {
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc)

	// calendar is ascending; today is near the end
	for i := len(calendar) - 1; i >= 0; i-- {
		day := calendar[i]
		date := day.Date.In(loc)
		if sameDate(date, today) {
			return Session{
				Date:  midnight(date),
				Open:  day.Open.In(loc),
				Close: day.Close.In(loc),
			}, true
		}
		if date.Before(midnight(today)) {
			break
		}
	}

	open := clock.NextOpen.In(loc)
	closeAt := clock.NextClose.In(loc)
	if !clock.NextOpen.IsZero() && sameDate(open, today) && sameDate(closeAt, today) {
		return Session{Date: midnight(today), Open: open, Close: closeAt}, true
	}

	return Session{}, false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Anchor names the session boundary a trigger is relative to
type Anchor string

const (
	AnchorOpen  Anchor = "open"
	AnchorClose Anchor = "close"
)

// Trigger is a named phase due at a signed offset from open or close
type Trigger struct {
	Name   string
	Anchor Anchor
	Offset time.Duration
}

// At returns the instant the trigger becomes due in session s
func (t Trigger) At(s Session) time.Time {
	base := s.Open
	if t.Anchor == AnchorClose {
		base = s.Close
	}
	return base.Add(t.Offset)
}

func (t Trigger) String() string {
	return fmt.Sprintf("Trigger{name=%s anchor=%s offset=%s}", t.Name, t.Anchor, t.Offset)
}

// FiredStore records the last session date each phase fired on
type FiredStore interface {
	LastFired(ctx context.Context, phase string) (date time.Time, ok bool, err error)
	MarkFired(ctx context.Context, phase string, date, at time.Time) error
}

// DefaultWindow is how long after its instant a trigger stays due
const DefaultWindow = 10 * time.Minute

// Guard decides whether a trigger is due, allowing one firing per session date
type Guard struct {
	store  FiredStore
	window time.Duration
}

// NewGuard creates a guard. A non-positive window uses DefaultWindow.
func NewGuard(store FiredStore, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{store: store, window: window}
}

// Due is true iff At(s) <= now < At(s)+window and the trigger has not
// fired on the session date.
func (g *Guard) Due(ctx context.Context, t Trigger, s Session, now time.Time) (bool, error) {
	at := t.At(s)
	if now.Before(at) || !now.Before(at.Add(g.window)) {
		return false, nil
	}

	last, ok, err := g.store.LastFired(ctx, t.Name)
	if err != nil {
		return false, fmt.Errorf("last fired %s: %w", t.Name, err)
	}
	if ok && last.Format(DateLayout) == s.Key() {
		return false, nil
	}

	return true, nil
}

// MarkFired records that t fired for session s at now
func (g *Guard) MarkFired(ctx context.Context, t Trigger, s Session, now time.Time) error {
	if err := g.store.MarkFired(ctx, t.Name, s.Date, now); err != nil {
		return fmt.Errorf("mark fired %s: %w", t.Name, err)
	}
	return nil
}
