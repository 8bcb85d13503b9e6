package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

// AlertPublisher wraps fired stock alerts in an envelope on product.stock.alert.
type AlertPublisher struct {
	Producer    kafkax.Publisher
	ServiceName string
}

func (p *AlertPublisher) PublishAlert(_ context.Context, a stock.Alert) error {
	payload, err := json.Marshal(orders.StockAlertPayload(a))
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockAlert,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.ServiceName,
		CorrelationID: a.ProductID,
		Payload:       payload,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	p.Producer.Publish(orders.PartitionKey(a.ProductID), b, kafkax.EventHeaders(orders.EventStockAlert)...)
	return nil
}
