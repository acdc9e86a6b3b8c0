package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/httputil"
	"github.com/wonny/aegis-us/pkg/logger"
)

// Authentication headers
const (
	headerKeyID     = "APCA-API-KEY-ID"
	headerSecretKey = "APCA-API-SECRET-KEY"
)

// maxOrders is the largest page the orders endpoint serves
const maxOrders = 500

// Client handles communication with the Alpaca trading API
// ⭐ SSOT: brokerage calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.AlpacaConfig
	loc        *time.Location
}

var _ contracts.Broker = (*Client)(nil)

// NewClient creates a new Alpaca client. loc is the exchange time zone
// used to place calendar sessions.
func NewClient(cfg config.AlpacaConfig, loc *time.Location, httpClient *httputil.Client, log *logger.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("alpaca"),
		cfg:        cfg,
		loc:        loc,
	}
}

// request makes an authenticated call and decodes the JSON response into dest
func (c *Client) request(ctx context.Context, method, path string, query url.Values, dest interface{}) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(headerKeyID, c.cfg.KeyID)
	req.Header.Set(headerSecretKey, c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")

	err = c.httpClient.DoJSON(req, dest)

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) {
		return newAPIError(statusErr)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// GetAccount returns the current account
func (c *Client) GetAccount(ctx context.Context) (contracts.Account, error) {
	var account contracts.Account
	if err := c.request(ctx, http.MethodGet, "/v2/account", nil, &account); err != nil {
		return contracts.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ListAssets returns assets filtered by status and asset class.
// Empty filters are left to the API defaults.
func (c *Client) ListAssets(ctx context.Context, status, class string) ([]contracts.Asset, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if class != "" {
		query.Set("asset_class", class)
	}

	var assets []contracts.Asset
	if err := c.request(ctx, http.MethodGet, "/v2/assets", query, &assets); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"status": status,
		"class":  class,
		"count":  len(assets),
	}).Debug("Fetched assets")

	return assets, nil
}

// ListPositions returns all open positions. Age is left at zero.
func (c *Client) ListPositions(ctx context.Context) ([]contracts.Position, error) {
	var positions []contracts.Position
	if err := c.request(ctx, http.MethodGet, "/v2/positions", nil, &positions); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}
