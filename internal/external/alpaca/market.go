package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
)

const dateLayout = "2006-01-02"

// calendarDay is the wire form of one calendar entry; open and close are
// wall times on the session date in the exchange time zone.
type calendarDay struct {
	Date  string `json:"date"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

func (d calendarDay) toContract(loc *time.Location) (contracts.CalendarDay, error) {
	date, err := time.ParseInLocation(dateLayout, d.Date, loc)
	if err != nil {
		return contracts.CalendarDay{}, fmt.Errorf("parse calendar date %q: %w", d.Date, err)
	}

	open, err := time.ParseInLocation(dateLayout+" 15:04", d.Date+" "+d.Open, loc)
	if err != nil {
		return contracts.CalendarDay{}, fmt.Errorf("parse open %q on %s: %w", d.Open, d.Date, err)
	}

	closeAt, err := time.ParseInLocation(dateLayout+" 15:04", d.Date+" "+d.Close, loc)
	if err != nil {
		return contracts.CalendarDay{}, fmt.Errorf("parse close %q on %s: %w", d.Close, d.Date, err)
	}

	return contracts.CalendarDay{Date: date, Open: open, Close: closeAt}, nil
}

// GetCalendar returns trading sessions starting at start. A zero end
// leaves the range to the API default.
func (c *Client) GetCalendar(ctx context.Context, start, end time.Time) ([]contracts.CalendarDay, error) {
	query := url.Values{}
	if !start.IsZero() {
		query.Set("start", start.In(c.loc).Format(dateLayout))
	}
	if !end.IsZero() {
		query.Set("end", end.In(c.loc).Format(dateLayout))
	}

	var wire []calendarDay
	if err := c.request(ctx, http.MethodGet, "/v2/calendar", query, &wire); err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}

	days := make([]contracts.CalendarDay, 0, len(wire))
	for _, d := range wire {
		day, err := d.toContract(c.loc)
		if err != nil {
			return nil, fmt.Errorf("get calendar: %w", err)
		}
		days = append(days, day)
	}

	return days, nil
}

// GetClock returns the market clock
func (c *Client) GetClock(ctx context.Context) (contracts.Clock, error) {
	var clock contracts.Clock
	if err := c.request(ctx, http.MethodGet, "/v2/clock", nil, &clock); err != nil {
		return contracts.Clock{}, fmt.Errorf("get clock: %w", err)
	}
	return clock, nil
}
