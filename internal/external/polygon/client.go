package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/httputil"
	"github.com/wonny/aegis-us/pkg/logger"
	"github.com/wonny/aegis-us/pkg/redis"
)

// Symbol listing parameters
const (
	SymbolsPerPage   = 50
	SymbolTypeCommon = "cs"
	maxSymbolPages   = 1000
)

const dateLayout = "2006-01-02"

// Client handles communication with the Polygon market data API
// ⭐ SSOT: market data provider calls go through this client only
type Client struct {
	httpClient *httputil.Client
	barsClient *httputil.Client // no retry: a failed symbol is dropped by the filter
	cache      *redis.Cache
	logger     *logger.Logger
	cfg        config.PolygonConfig
	loc        *time.Location
}

var (
	_ contracts.SymbolSource = (*Client)(nil)
	_ contracts.BarSource    = (*Client)(nil)
)

// NewClient creates a new Polygon client. cache may be backed by a
// disabled Redis client, in which case every call goes upstream.
func NewClient(cfg config.PolygonConfig, loc *time.Location, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	if cache == nil {
		cache = redis.NewCache(nil, "polygon")
	}
	return &Client{
		httpClient: httpClient,
		barsClient: httpClient.WithoutRetry(),
		cache:      cache,
		logger:     log.WithComponent("polygon"),
		cfg:        cfg,
		loc:        loc,
	}
}

// get calls path with query plus the api key and decodes the JSON response
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	return c.getWith(ctx, c.httpClient, path, query, dest)
}

func (c *Client) getWith(ctx context.Context, hc *httputil.Client, path string, query url.Values, dest interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.cfg.APIKey)

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if err := hc.DoJSON(req, dest); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			// the query carries the api key
			scrubbed := *statusErr
			scrubbed.URL = path
			return fmt.Errorf("polygon %s: %w", path, &scrubbed)
		}
		return fmt.Errorf("polygon %s: %w", path, err)
	}
	return nil
}

// symbolsPage is the /v1/meta/symbols response
type symbolsPage struct {
	Symbols []contracts.Symbol `json:"symbols"`
}

// ListSymbols pages through common-stock, non-OTC symbols until a short page
func (c *Client) ListSymbols(ctx context.Context) ([]contracts.Symbol, error) {
	var symbols []contracts.Symbol

	for page := 1; page <= maxSymbolPages; page++ {
		batch, err := c.symbolsPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list symbols page %d: %w", page, err)
		}

		symbols = append(symbols, batch...)

		if len(batch) < SymbolsPerPage {
			break
		}
	}

	c.logger.WithField("count", len(symbols)).Debug("Fetched external symbols")
	return symbols, nil
}

func (c *Client) symbolsPage(ctx context.Context, page int) ([]contracts.Symbol, error) {
	var batch []contracts.Symbol

	err := c.cache.GetOrSet(ctx, redis.SymbolsPageKey(SymbolTypeCommon, page), &batch, redis.TTLLong, func() (interface{}, error) {
		query := url.Values{}
		query.Set("sort", "symbol")
		query.Set("type", SymbolTypeCommon)
		query.Set("perpage", strconv.Itoa(SymbolsPerPage))
		query.Set("page", strconv.Itoa(page))
		query.Set("isOTC", "false")

		var resp symbolsPage
		if err := c.get(ctx, "/v1/meta/symbols", query, &resp); err != nil {
			return nil, err
		}
		if resp.Symbols == nil {
			resp.Symbols = []contracts.Symbol{}
		}
		return resp.Symbols, nil
	})

	return batch, err
}

// tick is one aggregate in the /v1/historic/agg response; d is epoch millis
type tick struct {
	Open   decimal.Decimal `json:"o"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Close  decimal.Decimal `json:"c"`
	Volume float64         `json:"v"`
	Day    int64           `json:"d"`
}

func (t tick) toBar() contracts.Bar {
	return contracts.Bar{
		Time:   time.UnixMilli(t.Day).UTC(),
		Open:   t.Open,
		High:   t.High,
		Low:    t.Low,
		Close:  t.Close,
		Volume: int64(t.Volume),
	}
}

type aggResponse struct {
	Symbol string `json:"symbol"`
	Ticks  []tick `json:"ticks"`
}

// HistoricAgg returns up to limit aggregates of the given size between from
// and to, oldest first. Results are cached for a day.
func (c *Client) HistoricAgg(ctx context.Context, size, symbol string, from, to time.Time, limit int) ([]contracts.Bar, error) {
	fromStr := from.In(c.loc).Format(dateLayout)
	toStr := to.In(c.loc).Format(dateLayout)

	var bars []contracts.Bar
	key := redis.BarsKey(symbol, size, fromStr, toStr, limit)

	err := c.cache.GetOrSet(ctx, key, &bars, redis.TTLDaily, func() (interface{}, error) {
		query := url.Values{}
		query.Set("from", fromStr)
		query.Set("to", toStr)
		if limit > 0 {
			query.Set("limit", strconv.Itoa(limit))
		}

		path := fmt.Sprintf("/v1/historic/agg/%s/%s", url.PathEscape(size), url.PathEscape(symbol))

		var resp aggResponse
		if err := c.getWith(ctx, c.barsClient, path, query, &resp); err != nil {
			return nil, err
		}

		out := make([]contracts.Bar, 0, len(resp.Ticks))
		for _, t := range resp.Ticks {
			out = append(out, t.toBar())
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("historic agg %s: %w", symbol, err)
	}

	return bars, nil
}
