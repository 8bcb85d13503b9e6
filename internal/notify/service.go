package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/redisx"
)

const (
	ResultSent      = "sent"
	ResultFailed    = "failed"
	ResultDuplicate = "duplicate"
)

// Service delivers stock alerts. Delivery failures are logged and the message
// is still acknowledged: an alert is best effort.
type Service struct {
	Redis       *redis.Client
	Sender      Sender
	Recipients  []string
	ServiceName string
	Log         *zap.Logger
	// OnResult is optional, used for metrics.
	OnResult func(result string)
}

func (s *Service) HandleStockAlert(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.log().Warn("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventStockAlert {
		return nil
	}

	claimed, err := redisx.ClaimOnce(ctx, s.Redis, s.ServiceName, env.EventID)
	if err != nil {
		s.log().Warn("dedup unavailable, sending anyway", zap.Error(err))
		claimed = true
	}
	if !claimed {
		s.result(ResultDuplicate)
		return nil
	}

	alert, err := kafkax.UnwrapPayload[orders.StockAlertPayload](env.Payload)
	if err != nil {
		s.log().Warn("drop alert with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	body := Format(alert)
	failed := false
	for _, to := range s.Recipients {
		if err := s.Sender.Send(ctx, to, body); err != nil {
			failed = true
			s.log().Error("stock alert delivery failed",
				zap.String("event_id", env.EventID),
				zap.String("product_id", alert.ProductID),
				zap.String("to", to),
				zap.Error(err),
			)
		}
	}
	if failed {
		s.result(ResultFailed)
		return nil
	}
	s.log().Info("stock alert sent",
		zap.String("kind", string(alert.Kind)),
		zap.String("product_id", alert.ProductID),
		zap.Int("recipients", len(s.Recipients)),
	)
	s.result(ResultSent)
	return nil
}

func (s *Service) result(r string) {
	if s.OnResult != nil {
		s.OnResult(r)
	}
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
