package contracts

import "fmt"

// Asset is one instrument in the brokerage asset list
type Asset struct {
	ID           string `json:"id"`
	Class        string `json:"class"`
	Exchange     string `json:"exchange"`
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	Tradable     bool   `json:"tradable"`
	Marginable   bool   `json:"marginable"`
	Shortable    bool   `json:"shortable"`
	EasyToBorrow bool   `json:"easy_to_borrow"`
}

// Asset list query values
const (
	AssetStatusActive   = "active"
	AssetStatusInactive = "inactive"
	AssetClassUSEquity  = "us_equity"
)

func (a Asset) String() string {
	return fmt.Sprintf(
		"Asset{id=%s class=%s exchange=%s symbol=%s status=%s tradable=%t marginable=%t shortable=%t easy_to_borrow=%t}",
		a.ID, a.Class, a.Exchange, a.Symbol, a.Status, a.Tradable, a.Marginable, a.Shortable, a.EasyToBorrow,
	)
}

// Symbol is a row of external symbol metadata from the market data provider
type Symbol struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsOTC   bool   `json:"isOTC"`
	Updated string `json:"updated"`
	URL     string `json:"url"`
}

func (s Symbol) String() string {
	return fmt.Sprintf("Symbol{symbol=%s name=%q type=%s is_otc=%t updated=%s url=%s}",
		s.Symbol, s.Name, s.Type, s.IsOTC, s.Updated, s.URL)
}
