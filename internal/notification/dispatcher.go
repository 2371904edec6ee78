// Package notification is the best-effort side channel for order events.
// Callers must treat every failure here as non-fatal: an undelivered email
// never unwinds a committed order.
package notification

import (
	"context"
)

type EventType string

const (
	EventOrderConfirmation   EventType = "order_confirmation"
	EventSellerNewOrder      EventType = "seller_new_order"
	EventStatusUpdate        EventType = "status_update"
	EventPaymentConfirmation EventType = "payment_confirmation"
	EventOrderShipped        EventType = "order_shipped"
)

// Event is one notification to one recipient. Context carries the
// template variables the downstream mailer needs.
type Event struct {
	Type        EventType      `json:"type"`
	Recipient   string         `json:"recipient"`
	OrderID     string         `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	Context     map[string]any `json:"context,omitempty"`
}

type Dispatcher interface {
	Send(ctx context.Context, event Event) error
}
