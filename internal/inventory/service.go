package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/redisx"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

const unclaimTimeout = 2 * time.Second

type Reserver interface {
	AlreadyReserved(ctx context.Context, orderID string, itemCount int) (bool, error)
	ReserveAll(ctx context.Context, orderID string, items []orders.ItemQty) (bool, []stock.Change, []orders.StockRejectedDetail, error)
}

type Service struct {
	Repo           Reserver
	Redis          *redis.Client
	ProducerOK     kafkax.Publisher // order.stock.reserved
	ProducerReject kafkax.Publisher // order.stock.rejected
	Notifier       *stock.Notifier
	ServiceName    string
	Log            *zap.Logger
}

// HandleOrderCreated is installed as the order.created consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	claimed, err := redisx.ClaimOnce(ctx, s.Redis, "inventory", env.EventID)
	if err != nil {
		s.log().Warn("dedup unavailable, processing anyway", zap.Error(err))
		claimed = true
	}
	if !claimed {
		return nil
	}

	if err := s.reserve(ctx, env); err != nil {
		// let the redelivery try again, even if ctx is already gone
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unclaimTimeout)
		defer cancel()
		if uerr := redisx.Unclaim(uctx, s.Redis, "inventory", env.EventID); uerr != nil {
			s.log().Error("release dedup claim", zap.String("event_id", env.EventID), zap.Error(uerr))
		}
		return err
	}
	return nil
}

func (s *Service) reserve(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	items := orders.ItemQtys(p.Items)

	if ok, _ := s.Repo.AlreadyReserved(ctx, p.OrderID, len(items)); ok {
		// republishing reserved is harmless
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}

	ok, changes, details, err := s.Repo.ReserveAll(ctx, p.OrderID, items)
	if err != nil {
		return err
	}
	if !ok {
		s.log().Info("stock rejected", zap.String("order_id", p.OrderID), zap.Int("short_items", len(details)))
		s.publishRejected(p.OrderID, details, env.TraceID)
		return nil
	}

	s.publishReserved(p.OrderID, items, env.TraceID)
	// committed: now it is safe to look for threshold crossings
	if s.Notifier != nil {
		s.Notifier.ObserveAll(ctx, changes)
	}
	return nil
}

func (s *Service) publishReserved(orderID string, items []orders.ItemQty, trace string) {
	s.publish(s.ProducerOK, orders.EventStockReserved, orderID, trace,
		orders.StockReservedPayload{OrderID: orderID, Items: items})
}

func (s *Service) publishRejected(orderID string, details []orders.StockRejectedDetail, trace string) {
	s.publish(s.ProducerReject, orders.EventStockRejected, orderID, trace,
		orders.StockRejectedPayload{OrderID: orderID, Reason: "OUT_OF_STOCK", Details: details})
}

func (s *Service) publish(p kafkax.Publisher, eventType, orderID, trace string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType)...)
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
