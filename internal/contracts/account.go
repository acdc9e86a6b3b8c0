package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayTradeEquityMinimum is the portfolio value above which the pattern day
// trader rule no longer restricts same-day round trips.
var DayTradeEquityMinimum = decimal.NewFromInt(25000)

// Account is a point-in-time read of the brokerage account
// ⭐ SSOT: JSON tags follow the brokerage account schema
type Account struct {
	ID                    string          `json:"id"`
	Status                string          `json:"status"`
	Currency              string          `json:"currency"`
	Cash                  decimal.Decimal `json:"cash"`
	BuyingPower           decimal.Decimal `json:"buying_power"`
	DaytradingBuyingPower decimal.Decimal `json:"daytrading_buying_power"`
	RegTBuyingPower       decimal.Decimal `json:"regt_buying_power"`
	Equity                decimal.Decimal `json:"equity"`
	LastEquity            decimal.Decimal `json:"last_equity"`
	PortfolioValue        decimal.Decimal `json:"portfolio_value"`
	LongMarketValue       decimal.Decimal `json:"long_market_value"`
	ShortMarketValue      decimal.Decimal `json:"short_market_value"`
	InitialMargin         decimal.Decimal `json:"initial_margin"`
	MaintenanceMargin     decimal.Decimal `json:"maintenance_margin"`
	LastMaintenanceMargin decimal.Decimal `json:"last_maintenance_margin"`
	Multiplier            decimal.Decimal `json:"multiplier"`
	SMA                   decimal.Decimal `json:"sma"`
	DaytradeCount         int             `json:"daytrade_count"`
	PatternDayTrader      bool            `json:"pattern_day_trader"`
	AccountBlocked        bool            `json:"account_blocked"`
	TradingBlocked        bool            `json:"trading_blocked"`
	TransfersBlocked      bool            `json:"transfers_blocked"`
	TradeSuspendedByUser  bool            `json:"trade_suspended_by_user"`
	ShortingEnabled       bool            `json:"shorting_enabled"`
	CreatedAt             time.Time       `json:"created_at"`
}

// CanDayTrade reports whether the account is above the day trading equity minimum
func (a Account) CanDayTrade() bool {
	return a.PortfolioValue.GreaterThan(DayTradeEquityMinimum)
}

func (a Account) String() string {
	var b strings.Builder
	b.WriteString("Account{")
	fmt.Fprintf(&b, "id=%s status=%s currency=%s", a.ID, a.Status, a.Currency)
	fmt.Fprintf(&b, " cash=%s buying_power=%s daytrading_buying_power=%s regt_buying_power=%s",
		a.Cash, a.BuyingPower, a.DaytradingBuyingPower, a.RegTBuyingPower)
	fmt.Fprintf(&b, " equity=%s last_equity=%s portfolio_value=%s", a.Equity, a.LastEquity, a.PortfolioValue)
	fmt.Fprintf(&b, " long_market_value=%s short_market_value=%s", a.LongMarketValue, a.ShortMarketValue)
	fmt.Fprintf(&b, " initial_margin=%s maintenance_margin=%s last_maintenance_margin=%s",
		a.InitialMargin, a.MaintenanceMargin, a.LastMaintenanceMargin)
	fmt.Fprintf(&b, " multiplier=%s sma=%s daytrade_count=%d", a.Multiplier, a.SMA, a.DaytradeCount)
	fmt.Fprintf(&b, " pattern_day_trader=%t account_blocked=%t trading_blocked=%t transfers_blocked=%t",
		a.PatternDayTrader, a.AccountBlocked, a.TradingBlocked, a.TransfersBlocked)
	fmt.Fprintf(&b, " trade_suspended_by_user=%t shorting_enabled=%t", a.TradeSuspendedByUser, a.ShortingEnabled)
	fmt.Fprintf(&b, " created_at=%s}", formatTime(a.CreatedAt))
	return b.String()
}

// formatTime renders zero times as "-" so formatters stay single-line
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}
