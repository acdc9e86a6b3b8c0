package contracts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Clock is the brokerage's view of the market clock
type Clock struct {
	Timestamp time.Time `json:"timestamp"`
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

func (c Clock) String() string {
	return fmt.Sprintf("Clock{timestamp=%s is_open=%t next_open=%s next_close=%s}",
		formatTime(c.Timestamp), c.IsOpen, formatTime(c.NextOpen), formatTime(c.NextClose))
}

// CalendarDay is one trading session. Open and Close are full instants in
// the market time zone; Date is midnight of the session date there.
type CalendarDay struct {
	Date  time.Time `json:"date"`
	Open  time.Time `json:"open"`
	Close time.Time `json:"close"`
}

func (d CalendarDay) String() string {
	return fmt.Sprintf("CalendarDay{date=%s open=%s close=%s}",
		d.Date.Format("2006-01-02"), d.Open.Format("15:04"), d.Close.Format("15:04"))
}

// Bar is one historic aggregate
type Bar struct {
	Time   time.Time       `json:"t"`
	Open   decimal.Decimal `json:"o"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Close  decimal.Decimal `json:"c"`
	Volume int64           `json:"v"`
}

func (b Bar) String() string {
	return fmt.Sprintf("Bar{t=%s o=%s h=%s l=%s c=%s v=%d}",
		formatTime(b.Time), b.Open, b.High, b.Low, b.Close, b.Volume)
}

// EarningsEvent is one row of the earnings calendar. JSON keys match the
// calendar's own row keys.
type EarningsEvent struct {
	Ticker                string              `json:"ticker"`
	CompanyShortName      string              `json:"companyshortname"`
	StartDateTime         time.Time           `json:"startdatetime"`
	StartDateTimeType     string              `json:"startdatetimetype"`
	EPSEstimate           decimal.NullDecimal `json:"epsestimate"`
	EPSActual             decimal.NullDecimal `json:"epsactual"`
	EPSSurprisePct        decimal.NullDecimal `json:"epssurprisepct"`
	GMTOffsetMilliSeconds int64               `json:"gmtOffsetMilliSeconds"`
}

func (e EarningsEvent) String() string {
	return fmt.Sprintf(
		"EarningsEvent{ticker=%s company=%q start=%s type=%s eps_estimate=%s eps_actual=%s eps_surprise_pct=%s gmt_offset_ms=%d}",
		e.Ticker, e.CompanyShortName, formatTime(e.StartDateTime), e.StartDateTimeType,
		formatNullDecimal(e.EPSEstimate), formatNullDecimal(e.EPSActual), formatNullDecimal(e.EPSSurprisePct),
		e.GMTOffsetMilliSeconds,
	)
}
