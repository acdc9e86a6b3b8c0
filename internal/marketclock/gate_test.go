package marketclock

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-us/internal/contracts"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)
	return loc
}

func regularClock(loc *time.Location) contracts.Clock {
	return contracts.Clock{
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, loc),
		NextOpen:  time.Date(2024, 3, 1, 9, 30, 0, 0, loc),
		NextClose: time.Date(2024, 3, 1, 16, 0, 0, 0, loc),
	}
}

func TestGate_OpenAndClose(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(regularClock(loc), loc)
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, loc) }

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"before open 15m exact", gate.BeforeOpen(at(9, 15, 0), Minutes(15)), true},
		{"before open 15m one second late", gate.BeforeOpen(at(9, 15, 1), Minutes(15)), false},
		{"after open 1m", gate.AfterOpen(at(9, 31, 0), Minutes(1)), true},
		{"after open 1h1m", gate.AfterOpen(at(10, 31, 0), Offset{Hour: 1, Minute: 1}), true},
		{"after open 61m normalizes", gate.AfterOpen(at(10, 31, 0), Minutes(61)), true},
		{"after open is not has-passed", gate.AfterOpen(at(11, 0, 0), Minutes(1)), false},
		{"before close 10m", gate.BeforeClose(at(15, 50, 0), Minutes(10)), true},
		{"after close 30m", gate.AfterClose(at(16, 30, 0), Minutes(30)), true},
		{"after close wrong day", gate.AfterClose(time.Date(2024, 3, 2, 16, 30, 0, 0, loc), Minutes(30)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestGate_ComparesInGateLocation(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(regularClock(loc), loc)

	// 09:15 New York is 14:15 UTC in March before DST
	now := time.Date(2024, 3, 1, 14, 15, 0, 0, time.UTC)
	assert.True(t, gate.BeforeOpen(now, Minutes(15)))
}

func TestGate_DuringMarketHoursPerMinute(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(regularClock(loc), loc)
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, loc) }

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before open in open hour", at(9, 29, 1), false},
		{"open minute", at(9, 30, 1), true},
		{"midday", at(12, 15, 1), true},
		{"wrong second", at(12, 15, 2), false},
		{"close minute past close second", at(16, 0, 1), false},
		{"after close in close hour", at(16, 1, 1), false},
		{"before open hour", at(8, 45, 1), false},
		{"other day", time.Date(2024, 3, 4, 12, 15, 1, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.DuringMarketHoursPerMinute(tt.now, 1))
		})
	}
}

func TestGate_DuringMarketHoursPerHour(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(regularClock(loc), loc)
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, loc) }

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"open hour before open minute", at(9, 1, 1), false},
		{"first full hour", at(10, 1, 1), true},
		{"last full hour", at(15, 1, 1), true},
		{"close hour after close", at(16, 1, 1), false},
		{"wrong minute", at(11, 2, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gate.DuringMarketHoursPerHour(tt.now, 1, 1))
		})
	}
}

func TestGate_BeforeAndAfterOpenExclusive(t *testing.T) {
	loc, err := time.LoadLocation(DefaultTimezone)
	require.NoError(t, err)

	properties := gopter.NewProperties(nil)

	clockFor := func(openSec, lengthSec int) contracts.Clock {
		open := time.Date(2024, 3, 1, 0, 0, 0, 0, loc).Add(time.Duration(openSec) * time.Second)
		return contracts.Clock{NextOpen: open, NextClose: open.Add(time.Duration(lengthSec) * time.Second)}
	}

	properties.Property("beforeOpen(m) and afterOpen(m) never both hold for m > 0", prop.ForAll(
		func(openSec, lengthSec, m, offsetSec int) bool {
			gate := NewGate(clockFor(openSec, lengthSec), loc)
			offset := Minutes(m)

			candidates := []time.Time{
				gate.Clock().NextOpen.Add(-offset.Duration()),
				gate.Clock().NextOpen.Add(offset.Duration()),
				gate.Clock().NextOpen.Add(time.Duration(offsetSec) * time.Second),
			}
			for _, now := range candidates {
				if gate.BeforeOpen(now, offset) && gate.AfterOpen(now, offset) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 12*3600),
		gen.IntRange(60, 11*3600),
		gen.IntRange(1, 600),
		gen.IntRange(-36000, 36000),
	))

	properties.Property("each open predicate fires on its own instant", prop.ForAll(
		func(openSec, m int) bool {
			gate := NewGate(clockFor(openSec, 6*3600), loc)
			offset := Minutes(m)
			before := gate.Clock().NextOpen.Add(-offset.Duration())
			after := gate.Clock().NextOpen.Add(offset.Duration())
			return gate.BeforeOpen(before, offset) && !gate.AfterOpen(before, offset) &&
				gate.AfterOpen(after, offset) && !gate.BeforeOpen(after, offset)
		},
		gen.IntRange(0, 12*3600),
		gen.IntRange(1, 600),
	))

	properties.TestingRun(t)
}

func TestOffsetOf(t *testing.T) {
	assert.Equal(t, Offset{Hour: 1, Minute: 1}, OffsetOf(61*time.Minute))
	assert.Equal(t, Offset{Minute: 15, Second: 30}, OffsetOf(15*time.Minute+30*time.Second+400*time.Millisecond))
	assert.Equal(t, 2*time.Hour+3*time.Second, OffsetOf(2*time.Hour+3*time.Second).Duration())
}

func TestGate_MatchesTriggers(t *testing.T) {
	loc := newYork(t)
	gate := NewGate(regularClock(loc), loc)
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, loc) }

	preOpen := Trigger{Name: "pre_open", Anchor: AnchorOpen, Offset: -15 * time.Minute}
	intraday := Trigger{Name: "intraday_2", Anchor: AnchorOpen, Offset: 2*time.Hour + time.Minute}
	preClose := Trigger{Name: "pre_close", Anchor: AnchorClose, Offset: -10 * time.Minute}
	postClose := Trigger{Name: "post_close", Anchor: AnchorClose, Offset: 30 * time.Minute}

	assert.True(t, gate.Matches(at(9, 15, 0), preOpen))
	assert.False(t, gate.Matches(at(9, 15, 1), preOpen))
	assert.True(t, gate.Matches(at(11, 31, 0), intraday))
	assert.True(t, gate.Matches(at(15, 50, 0), preClose))
	assert.False(t, gate.Matches(at(16, 10, 0), preClose), "sign matters")
	assert.True(t, gate.Matches(at(16, 30, 0), postClose))

	report := gate.Report(at(11, 31, 0), []Trigger{preOpen, intraday, preClose, postClose})
	assert.Equal(t, []string{"intraday_2"}, report.Matching)
	assert.True(t, report.MinuteTick)
	assert.False(t, report.HourTick)
	assert.True(t, gate.Report(at(12, 0, 0), nil).HourTick)

	quiet := gate.Report(at(8, 0, 0), []Trigger{preOpen, intraday})
	assert.Empty(t, quiet.Matching)
	assert.NotNil(t, quiet.Matching)
	assert.False(t, quiet.MinuteTick)
	assert.False(t, quiet.HourTick)
}
