package contracts

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Position is one open position. Age counts the snapshots the symbol has
// been held across and is only ever set by diffing two position lists.
type Position struct {
	AssetID                string          `json:"asset_id"`
	Symbol                 string          `json:"symbol"`
	Exchange               string          `json:"exchange"`
	AssetClass             string          `json:"asset_class"`
	AvgEntryPrice          decimal.Decimal `json:"avg_entry_price"`
	Qty                    decimal.Decimal `json:"qty"`
	Side                   string          `json:"side"`
	MarketValue            decimal.Decimal `json:"market_value"`
	CostBasis              decimal.Decimal `json:"cost_basis"`
	UnrealizedPL           decimal.Decimal `json:"unrealized_pl"`
	UnrealizedPLPC         decimal.Decimal `json:"unrealized_plpc"`
	UnrealizedIntradayPL   decimal.Decimal `json:"unrealized_intraday_pl"`
	UnrealizedIntradayPLPC decimal.Decimal `json:"unrealized_intraday_plpc"`
	CurrentPrice           decimal.Decimal `json:"current_price"`
	LastdayPrice           decimal.Decimal `json:"lastday_price"`
	ChangeToday            decimal.Decimal `json:"change_today"`
	Age                    int             `json:"age"`
}

// CanSellShares reports whether the position may be sold today. An account
// under the day trading minimum cannot close a symbol it already traded today.
func (p Position) CanSellShares(orders []Order, canDayTrade bool) bool {
	if canDayTrade {
		return true
	}
	for _, o := range orders {
		if o.Symbol == p.Symbol && o.Status.HasFills() {
			return false
		}
	}
	return true
}

func (p Position) String() string {
	var b strings.Builder
	b.WriteString("Position{")
	fmt.Fprintf(&b, "symbol=%s asset_id=%s exchange=%s asset_class=%s side=%s qty=%s age=%d",
		p.Symbol, p.AssetID, p.Exchange, p.AssetClass, p.Side, p.Qty, p.Age)
	fmt.Fprintf(&b, " avg_entry_price=%s current_price=%s lastday_price=%s change_today=%s",
		p.AvgEntryPrice, p.CurrentPrice, p.LastdayPrice, p.ChangeToday)
	fmt.Fprintf(&b, " market_value=%s cost_basis=%s", p.MarketValue, p.CostBasis)
	fmt.Fprintf(&b, " unrealized_pl=%s unrealized_plpc=%s unrealized_intraday_pl=%s unrealized_intraday_plpc=%s}",
		p.UnrealizedPL, p.UnrealizedPLPC, p.UnrealizedIntradayPL, p.UnrealizedIntradayPLPC)
	return b.String()
}
