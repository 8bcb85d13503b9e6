package stock

import (
	"context"

	"go.uber.org/zap"
)

// Publisher hands a fired alert to whatever delivers it (Kafka in production).
type Publisher interface {
	PublishAlert(ctx context.Context, a Alert) error
}

type PublisherFunc func(ctx context.Context, a Alert) error

func (f PublisherFunc) PublishAlert(ctx context.Context, a Alert) error { return f(ctx, a) }

// Notifier must only be fed changes whose stock write has already committed.
// It never reports failures back to the caller: a lost alert must not undo a
// stock mutation.
type Notifier struct {
	Thresholds Thresholds
	Publisher  Publisher
	Log        *zap.Logger
	// OnFire is optional, used for metrics.
	OnFire func(Kind)
}

func (n *Notifier) Observe(ctx context.Context, c Change) Kind {
	log := n.logger()
	d, err := Evaluate(c.Product, c.Previous, c.Current, n.Thresholds)
	if err != nil {
		log.Warn("stock change ignored", zap.String("product_id", c.Product.ID), zap.Error(err))
		return KindNoOp
	}
	if !d.Fire() {
		return KindNoOp
	}

	log.Info("stock threshold crossed",
		zap.String("kind", string(d.Kind)),
		zap.String("product_id", c.Product.ID),
		zap.Int("previous", c.Previous),
		zap.Int("current", c.Current),
	)
	if n.OnFire != nil {
		n.OnFire(d.Kind)
	}
	if n.Publisher == nil {
		return d.Kind
	}
	if err := n.Publisher.PublishAlert(ctx, d.Alert); err != nil {
		log.Error("publish stock alert", zap.String("product_id", c.Product.ID), zap.Error(err))
	}
	return d.Kind
}

func (n *Notifier) ObserveAll(ctx context.Context, changes []Change) {
	for _, c := range changes {
		n.Observe(ctx, c)
	}
}

func (n *Notifier) logger() *zap.Logger {
	if n.Log == nil {
		return zap.NewNop()
	}
	return n.Log
}
