package earnings

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/httputil"
	"github.com/wonny/aegis-us/pkg/logger"
)

const (
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	dayLayout    = "2006-01-02"
	maxPages     = 50
	maxWindowDay = 31
)

// Client scrapes the Yahoo Finance earnings calendar
// ⭐ SSOT: earnings calendar lookups go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.EarningsConfig
}

var _ contracts.EarningsSource = (*Client)(nil)

// NewClient creates a new earnings calendar client
func NewClient(cfg config.EarningsConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("earnings"),
		cfg:        cfg,
	}
}

// EarningsBetween returns announcements whose start time is within [from, to].
// Each calendar day in the window is fetched page by page.
func (c *Client) EarningsBetween(ctx context.Context, from, to time.Time) ([]contracts.EarningsEvent, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("earnings window ends before it starts: %s > %s", from, to)
	}

	var events []contracts.EarningsEvent

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for n := 0; !day.After(to) && n < maxWindowDay; n++ {
		dayEvents, err := c.eventsOn(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("earnings on %s: %w", day.Format(dayLayout), err)
		}

		for _, e := range dayEvents {
			if e.StartDateTime.Before(from) || e.StartDateTime.After(to) {
				continue
			}
			events = append(events, e)
		}

		day = day.AddDate(0, 0, 1)
	}

	c.logger.WithFields(map[string]interface{}{
		"from":  from.Format(time.RFC3339),
		"to":    to.Format(time.RFC3339),
		"count": len(events),
	}).Debug("Fetched earnings calendar")

	return events, nil
}

// eventsOn pages through one day of the calendar until a short page, or
// a page that adds no new (ticker, start) pair when offset is ignored
func (c *Client) eventsOn(ctx context.Context, day time.Time) ([]contracts.EarningsEvent, error) {
	var events []contracts.EarningsEvent
	seen := make(map[string]struct{})

	for page := 0; page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		html, err := c.fetchPage(ctx, day, page*c.cfg.PageSize)
		if err != nil {
			return nil, err
		}

		rows, err := parsePage(html, day)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, e := range rows {
			key := e.Ticker + "@" + e.StartDateTime.UTC().Format(time.RFC3339)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			events = append(events, e)
			added++
		}

		if len(rows) < c.cfg.PageSize || added == 0 {
			break
		}
	}

	return events, nil
}

func (c *Client) fetchPage(ctx context.Context, day time.Time, offset int) (string, error) {
	query := url.Values{}
	query.Set("day", day.Format(dayLayout))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("size", strconv.Itoa(c.cfg.PageSize))

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/calendar/earnings?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &httputil.StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       body[:min(len(body), 512)],
		}
	}

	return string(body), nil
}
