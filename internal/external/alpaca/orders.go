package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wonny/aegis-us/internal/contracts"
)

// ListOrders returns orders with the given status filter (open, closed, all)
func (c *Client) ListOrders(ctx context.Context, status string) ([]contracts.Order, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	query.Set("limit", strconv.Itoa(maxOrders))

	var orders []contracts.Order
	if err := c.request(ctx, http.MethodGet, "/v2/orders", query, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder cancels an order that is still new, open or partially filled
func (c *Client) CancelOrder(ctx context.Context, order contracts.Order) error {
	if !order.Cancelable() {
		return fmt.Errorf("cancel %s (%s): %w", order.ID, order.Status, ErrNotCancelable)
	}

	path := "/v2/orders/" + url.PathEscape(order.ID)
	if err := c.request(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", order.ID, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"status":   order.Status,
	}).Info("Order canceled")

	return nil
}
