package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/rushbasket/internal/stock"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockReserved      = "StockReserved"
	EventStockRejected      = "StockRejected"
	EventStockAlert         = "StockAlert"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or product_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string     `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	ExternalID  string     `json:"external_id"`
	UserID      string     `json:"user_id"`
	Items       []LineItem `json:"items"`
	Total       string     `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID    string `json:"order_id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	Regression bool   `json:"regression,omitempty"`
}

type StockReservedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedDetail struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockRejectedPayload struct {
	OrderID string                `json:"order_id"`
	Reason  string                `json:"reason"` // e.g. OUT_OF_STOCK
	Details []StockRejectedDetail `json:"details,omitempty"`
}

// StockAlertPayload is what the SMS notifier consumes.
type StockAlertPayload = stock.Alert

func ItemQtys(items []LineItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}
