package earnings

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/httputil"
	"github.com/wonny/aegis-us/pkg/logger"
)

func statePage(rows ...string) string {
	return `<html><head><script>
(function (root) {
root.App || (root.App = {});
root.App.main = {"context":{"dispatcher":{"stores":{"ScreenerResultsStore":{"results":{"rows":[` +
		strings.Join(rows, ",") + `]}}}}}};
}(this));
</script></head><body></body></html>`
}

func stateRow(ticker, start string) string {
	return fmt.Sprintf(`{"ticker":%q,"companyshortname":"%s Inc. {A}","startdatetime":%q,"startdatetimetype":"AMC","epsestimate":0.52,"epsactual":null,"epssurprisepct":null,"gmtOffsetMilliSeconds":0}`,
		ticker, ticker, start)
}

func newTestClient(t *testing.T, pageSize int, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	hc := httputil.New(&config.Config{}, logger.Nop()).DisableRetry()
	return NewClient(config.EarningsConfig{BaseURL: server.URL, PageSize: pageSize}, hc, logger.Nop())
}

func TestParsePage_PageState(t *testing.T) {
	day := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	html := statePage(
		stateRow("TSLA", "2024-01-24T21:00:00.000Z"),
		stateRow("IBM", "2024-01-24T21:05:00.000Z"),
	)

	events, err := parsePage(html, day)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "TSLA", events[0].Ticker)
	assert.Equal(t, "TSLA Inc. {A}", events[0].CompanyShortName)
	assert.Equal(t, "AMC", events[0].StartDateTimeType)
	assert.Equal(t, time.Date(2024, 1, 24, 21, 0, 0, 0, time.UTC), events[0].StartDateTime.UTC())
	assert.True(t, events[0].EPSEstimate.Valid)
	assert.Equal(t, "0.52", events[0].EPSEstimate.Decimal.String())
	assert.False(t, events[0].EPSActual.Valid)
}

func TestParsePage_TableFallback(t *testing.T) {
	day := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	html := `<html><body><table>
		<thead><tr><th>Symbol</th><th>Company</th><th>Earnings Call Time</th><th>EPS Estimate</th><th>Reported EPS</th><th>Surprise(%)</th></tr></thead>
		<tbody>
			<tr><td>AAPL</td><td>Apple Inc</td><td>After Market Close</td><td>2.10</td><td>2.18</td><td>+3.81</td></tr>
			<tr><td>XYZ</td><td>Xyz Corp</td><td>Time Not Supplied</td><td>-</td><td>-</td><td>-</td></tr>
			<tr><td></td></tr>
		</tbody>
	</table></body></html>`

	events, err := parsePage(html, day)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "AAPL", events[0].Ticker)
	assert.Equal(t, "AMC", events[0].StartDateTimeType)
	assert.Equal(t, "3.81", events[0].EPSSurprisePct.Decimal.String())
	assert.Equal(t, day, events[0].StartDateTime)

	assert.Equal(t, "TNS", events[1].StartDateTimeType)
	assert.False(t, events[1].EPSEstimate.Valid)
}

func TestParsePage_Empty(t *testing.T) {
	events, err := parsePage(`<html><body><p>nothing here</p></body></html>`, time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestExtractObject(t *testing.T) {
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, extractObject(`{"a":"}{","b":{"c":1}};\n}(this));`))
	assert.Equal(t, `{"q":"say \"hi\" }"}`, extractObject(`{"q":"say \"hi\" }"} trailing`))
	assert.Empty(t, extractObject(`no object`))
	assert.Empty(t, extractObject(`{"unterminated":`))
}

func TestEarningsBetween_PagesAndFilters(t *testing.T) {
	var requests []string
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendar/earnings", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		day := r.URL.Query().Get("day")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		assert.Equal(t, "2", r.URL.Query().Get("size"))
		requests = append(requests, fmt.Sprintf("%s@%d", day, offset))

		switch {
		case day == "2024-01-25" && offset == 0:
			_, _ = w.Write([]byte(statePage(
				stateRow("AAA", "2024-01-25T13:00:00Z"),
				stateRow("BBB", "2024-01-25T21:00:00Z"),
			)))
		case day == "2024-01-25" && offset == 2:
			_, _ = w.Write([]byte(statePage(stateRow("CCC", "2024-01-25T21:00:00Z"))))
		case day == "2024-01-26":
			_, _ = w.Write([]byte(statePage(
				stateRow("DDD", "2024-01-26T13:00:00Z"),
				// outside the window
				stateRow("EEE", "2024-01-27T13:00:00Z"),
			)))
		default:
			_, _ = w.Write([]byte(statePage()))
		}
	})

	from := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 26, 23, 59, 0, 0, time.UTC)

	events, err := client.EarningsBetween(context.Background(), from, to)
	require.NoError(t, err)

	tickers := make([]string, 0, len(events))
	for _, e := range events {
		tickers = append(tickers, e.Ticker)
	}
	assert.Equal(t, []string{"AAA", "BBB", "CCC", "DDD"}, tickers)
	assert.Equal(t, []string{"2024-01-25@0", "2024-01-25@2", "2024-01-26@0", "2024-01-26@2"}, requests)
}

func TestEarningsBetween_OffsetIgnored(t *testing.T) {
	var requests int
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		requests++
		// same full page whatever the offset
		_, _ = w.Write([]byte(statePage(
			stateRow("AAA", "2024-01-25T13:00:00Z"),
			stateRow("BBB", "2024-01-25T21:00:00Z"),
		)))
	})

	day := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	events, err := client.EarningsBetween(context.Background(), day, day.Add(23*time.Hour))
	require.NoError(t, err)

	require.Len(t, events, 2, "repeated rows are dropped")
	assert.Equal(t, "AAA", events[0].Ticker)
	assert.Equal(t, "BBB", events[1].Ticker)
	assert.Equal(t, 2, requests, "paging stops on a page with nothing new")
}

func TestEarningsBetween_PartiallyRepeatedPage(t *testing.T) {
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(statePage(
				stateRow("AAA", "2024-01-25T13:00:00Z"),
				stateRow("BBB", "2024-01-25T21:00:00Z"),
			)))
		case "2":
			_, _ = w.Write([]byte(statePage(
				stateRow("BBB", "2024-01-25T21:00:00Z"),
				stateRow("CCC", "2024-01-25T21:00:00Z"),
			)))
		default:
			_, _ = w.Write([]byte(statePage()))
		}
	})

	day := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	events, err := client.EarningsBetween(context.Background(), day, day.Add(23*time.Hour))
	require.NoError(t, err)

	tickers := make([]string, 0, len(events))
	for _, e := range events {
		tickers = append(tickers, e.Ticker)
	}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, tickers)
}

func TestEarningsBetween_InvertedWindow(t *testing.T) {
	client := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	now := time.Now()
	_, err := client.EarningsBetween(context.Background(), now, now.Add(-time.Hour))
	assert.Error(t, err)
}

func TestEarningsBetween_UpstreamError(t *testing.T) {
	client := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	now := time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)
	_, err := client.EarningsBetween(context.Background(), now, now.Add(time.Hour))
	require.Error(t, err)

	var statusErr *httputil.StatusError
	assert.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}
