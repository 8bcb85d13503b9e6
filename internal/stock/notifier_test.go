package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	alerts []Alert
	err    error
}

func (r *recordingPublisher) PublishAlert(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestNotifier_PublishesOnlyCrossings(t *testing.T) {
	pub := &recordingPublisher{}
	n := &Notifier{Thresholds: DefaultThresholds(), Publisher: pub}

	n.ObserveAll(context.Background(), []Change{
		{Product: apples, Previous: 12, Current: 4},
		{Product: apples, Previous: 4, Current: 4},
		{Product: apples, Previous: 4, Current: 0},
		{Product: apples, Previous: 0, Current: 40},
	})

	if assert.Len(t, pub.alerts, 2) {
		assert.Equal(t, KindLowStock, pub.alerts[0].Kind)
		assert.Equal(t, KindOutOfStock, pub.alerts[1].Kind)
	}
}

func TestNotifier_PublishFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := &recordingPublisher{err: errors.New("broker down")}
	var fired []Kind
	n := &Notifier{
		Thresholds: DefaultThresholds(),
		Publisher:  pub,
		Log:        zap.New(core),
		OnFire:     func(k Kind) { fired = append(fired, k) },
	}

	kind := n.Observe(context.Background(), Change{Product: apples, Previous: 1, Current: 0})

	assert.Equal(t, KindOutOfStock, kind)
	assert.Equal(t, []Kind{KindOutOfStock}, fired)
	assert.Equal(t, 1, logs.FilterMessage("publish stock alert").Len())
}

func TestNotifier_InvalidChangeIsIgnored(t *testing.T) {
	pub := &recordingPublisher{}
	n := &Notifier{Thresholds: DefaultThresholds(), Publisher: pub}

	kind := n.Observe(context.Background(), Change{Product: apples, Previous: -3, Current: 0})

	assert.Equal(t, KindNoOp, kind)
	assert.Empty(t, pub.alerts)
}

func TestPublisherFunc(t *testing.T) {
	var got Alert
	n := &Notifier{
		Thresholds: DefaultThresholds(),
		Publisher: PublisherFunc(func(_ context.Context, a Alert) error {
			got = a
			return nil
		}),
	}
	n.Observe(context.Background(), Change{Product: apples, Previous: 9, Current: 2})
	assert.Equal(t, 2, got.StockLevel)
}
