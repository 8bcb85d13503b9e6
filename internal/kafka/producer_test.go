package kafka

import (
	"context"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []string
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		w.written = append(w.written, string(m.Key))
	}
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducer_CloseFlushesEverythingPublished(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zap.NewNop())
	p.Start()

	p.Publish([]byte("o-1"), []byte("{}"))
	p.Publish([]byte("o-2"), []byte("{}"), EventHeaders("StockReserved")...)
	p.Close()
	p.WaitClosed()

	assert.Equal(t, []string{"o-1", "o-2"}, w.written)
	assert.True(t, w.closed)
}

func TestProducer_PublishBeforeStartIsBuffered(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4, zap.NewNop())

	p.Publish([]byte("p-9"), []byte("{}"))
	p.Start()
	p.Close()
	p.WaitClosed()

	assert.Equal(t, []string{"p-9"}, w.written)
}
