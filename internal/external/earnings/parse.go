package earnings

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/contracts"
)

// appMainMarker precedes the page state object in the inline script
const appMainMarker = "root.App.main = "

// row is one earnings row of the embedded page state
type row struct {
	Ticker                string              `json:"ticker"`
	CompanyShortName      string              `json:"companyshortname"`
	StartDateTime         string              `json:"startdatetime"`
	StartDateTimeType     string              `json:"startdatetimetype"`
	EPSEstimate           decimal.NullDecimal `json:"epsestimate"`
	EPSActual             decimal.NullDecimal `json:"epsactual"`
	EPSSurprisePct        decimal.NullDecimal `json:"epssurprisepct"`
	GMTOffsetMilliSeconds int64               `json:"gmtOffsetMilliSeconds"`
}

func (r row) toEvent(day time.Time) contracts.EarningsEvent {
	start, err := time.Parse(time.RFC3339, r.StartDateTime)
	if err != nil {
		start = day
	}
	return contracts.EarningsEvent{
		Ticker:                r.Ticker,
		CompanyShortName:      r.CompanyShortName,
		StartDateTime:         start,
		StartDateTimeType:     r.StartDateTimeType,
		EPSEstimate:           r.EPSEstimate,
		EPSActual:             r.EPSActual,
		EPSSurprisePct:        r.EPSSurprisePct,
		GMTOffsetMilliSeconds: r.GMTOffsetMilliSeconds,
	}
}

type appMain struct {
	Context struct {
		Dispatcher struct {
			Stores struct {
				ScreenerResultsStore struct {
					Results struct {
						Rows []row `json:"rows"`
					} `json:"results"`
				} `json:"ScreenerResultsStore"`
			} `json:"stores"`
		} `json:"dispatcher"`
	} `json:"context"`
}

// parsePage extracts the earnings rows of one calendar page. The embedded
// page state is preferred; the rendered table is the fallback. day stands
// in for rows without a usable start time.
func parsePage(html string, day time.Time) ([]contracts.EarningsEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse earnings page: %w", err)
	}

	var payload string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, appMainMarker)
		if idx < 0 {
			return true
		}
		payload = extractObject(text[idx+len(appMainMarker):])
		return false
	})

	if payload != "" {
		var state appMain
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			return nil, fmt.Errorf("decode page state: %w", err)
		}

		rows := state.Context.Dispatcher.Stores.ScreenerResultsStore.Results.Rows
		events := make([]contracts.EarningsEvent, 0, len(rows))
		for _, r := range rows {
			events = append(events, r.toEvent(day))
		}
		return events, nil
	}

	return parseTable(doc, day), nil
}

// extractObject returns the leading balanced JSON object of s
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// parseTable reads the rendered calendar table, mapping columns by header
func parseTable(doc *goquery.Document, day time.Time) []contracts.EarningsEvent {
	var events []contracts.EarningsEvent

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return events
	}

	columns := map[string]int{}
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		header := strings.ToLower(strings.TrimSpace(th.Text()))
		switch {
		case strings.Contains(header, "symbol"):
			columns["symbol"] = i
		case strings.Contains(header, "company"):
			columns["company"] = i
		case strings.Contains(header, "call time"):
			columns["time"] = i
		case strings.Contains(header, "estimate"):
			columns["estimate"] = i
		case strings.Contains(header, "reported"):
			columns["actual"] = i
		case strings.Contains(header, "surprise"):
			columns["surprise"] = i
		}
	})

	symbolCol, ok := columns["symbol"]
	if !ok {
		return events
	}

	cell := func(cells *goquery.Selection, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= cells.Length() {
			return ""
		}
		return strings.TrimSpace(cells.Eq(idx).Text())
	}

	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() <= symbolCol {
			return
		}

		ticker := cell(cells, "symbol")
		if ticker == "" {
			return
		}

		events = append(events, contracts.EarningsEvent{
			Ticker:            ticker,
			CompanyShortName:  cell(cells, "company"),
			StartDateTime:     day,
			StartDateTimeType: callTimeCode(cell(cells, "time")),
			EPSEstimate:       parseNullDecimal(cell(cells, "estimate")),
			EPSActual:         parseNullDecimal(cell(cells, "actual")),
			EPSSurprisePct:    parseNullDecimal(cell(cells, "surprise")),
		})
	})

	return events
}

// callTimeCode maps the rendered call time to the page state codes
func callTimeCode(s string) string {
	switch strings.ToLower(s) {
	case "before market open", "bmo":
		return "BMO"
	case "after market close", "amc":
		return "AMC"
	case "time not supplied", "tns", "":
		return "TNS"
	}
	return strings.ToUpper(s)
}

func parseNullDecimal(s string) decimal.NullDecimal {
	s = strings.NewReplacer(",", "", "+", "", "%", "").Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
