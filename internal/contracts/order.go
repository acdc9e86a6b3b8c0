package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the brokerage-defined order lifecycle state
type OrderStatus string

const (
	OrderStatusNew                OrderStatus = "new"
	OrderStatusOpen               OrderStatus = "open" // legacy alias of new
	OrderStatusPartiallyFilled    OrderStatus = "partially_filled"
	OrderStatusFilled             OrderStatus = "filled"
	OrderStatusDoneForDay         OrderStatus = "done_for_day"
	OrderStatusCanceled           OrderStatus = "canceled"
	OrderStatusExpired            OrderStatus = "expired"
	OrderStatusReplaced           OrderStatus = "replaced"
	OrderStatusPendingCancel      OrderStatus = "pending_cancel"
	OrderStatusPendingReplace     OrderStatus = "pending_replace"
	OrderStatusAccepted           OrderStatus = "accepted"
	OrderStatusPendingNew         OrderStatus = "pending_new"
	OrderStatusAcceptedForBidding OrderStatus = "accepted_for_bidding"
	OrderStatusStopped            OrderStatus = "stopped"
	OrderStatusRejected           OrderStatus = "rejected"
	OrderStatusSuspended          OrderStatus = "suspended"
	OrderStatusCalculated         OrderStatus = "calculated"
)

// Order list query values
const (
	OrderQueryOpen   = "open"
	OrderQueryClosed = "closed"
	OrderQueryAll    = "all"
)

// Cancelable reports whether a cancel request is valid in this state
func (s OrderStatus) Cancelable() bool {
	switch s {
	case OrderStatusNew, OrderStatusOpen, OrderStatusPartiallyFilled:
		return true
	}
	return false
}

// Terminal reports whether the order will receive no further updates
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusExpired,
		OrderStatusRejected, OrderStatusReplaced:
		return true
	}
	return false
}

// HasFills reports whether any shares have executed
func (s OrderStatus) HasFills() bool {
	return s == OrderStatusFilled || s == OrderStatusPartiallyFilled
}

// Order is one brokerage order record. Timestamps that the brokerage
// reports as null are nil.
type Order struct {
	ID             string              `json:"id"`
	ClientOrderID  string              `json:"client_order_id"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      *time.Time          `json:"updated_at"`
	SubmittedAt    *time.Time          `json:"submitted_at"`
	FilledAt       *time.Time          `json:"filled_at"`
	ExpiredAt      *time.Time          `json:"expired_at"`
	CanceledAt     *time.Time          `json:"canceled_at"`
	FailedAt       *time.Time          `json:"failed_at"`
	AssetID        string              `json:"asset_id"`
	Symbol         string              `json:"symbol"`
	AssetClass     string              `json:"asset_class"`
	Qty            decimal.Decimal     `json:"qty"`
	FilledQty      decimal.Decimal     `json:"filled_qty"`
	Type           string              `json:"type"`
	Side           string              `json:"side"`
	TimeInForce    string              `json:"time_in_force"`
	LimitPrice     decimal.NullDecimal `json:"limit_price"`
	StopPrice      decimal.NullDecimal `json:"stop_price"`
	FilledAvgPrice decimal.NullDecimal `json:"filled_avg_price"`
	Status         OrderStatus         `json:"status"`
	ExtendedHours  bool                `json:"extended_hours"`
}

// Cancelable reports whether the order can still be canceled
func (o Order) Cancelable() bool {
	return o.Status.Cancelable()
}

func (o Order) String() string {
	var b strings.Builder
	b.WriteString("Order{")
	fmt.Fprintf(&b, "id=%s client_order_id=%s symbol=%s asset_id=%s asset_class=%s",
		o.ID, o.ClientOrderID, o.Symbol, o.AssetID, o.AssetClass)
	fmt.Fprintf(&b, " side=%s type=%s time_in_force=%s status=%s", o.Side, o.Type, o.TimeInForce, o.Status)
	fmt.Fprintf(&b, " qty=%s filled_qty=%s limit_price=%s stop_price=%s filled_avg_price=%s",
		o.Qty, o.FilledQty, formatNullDecimal(o.LimitPrice), formatNullDecimal(o.StopPrice), formatNullDecimal(o.FilledAvgPrice))
	fmt.Fprintf(&b, " extended_hours=%t created_at=%s updated_at=%s submitted_at=%s",
		o.ExtendedHours, formatTime(o.CreatedAt), formatTimePtr(o.UpdatedAt), formatTimePtr(o.SubmittedAt))
	fmt.Fprintf(&b, " filled_at=%s expired_at=%s canceled_at=%s failed_at=%s}",
		formatTimePtr(o.FilledAt), formatTimePtr(o.ExpiredAt), formatTimePtr(o.CanceledAt), formatTimePtr(o.FailedAt))
	return b.String()
}
