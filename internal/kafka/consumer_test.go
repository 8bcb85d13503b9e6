package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumer_InFlightMessageFinishesAfterCancel(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 7})
	c := newConsumer(r, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr error
	h := func(hctx context.Context, m kafka.Message) error {
		close(started)
		<-release
		handlerErr = hctx.Err()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()

	<-started
	cancel()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.NoError(t, handlerErr)
	assert.Equal(t, []int64{7}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumer_FailedMessageIsNotCommitted(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 1}, kafka.Message{Offset: 2})
	c := newConsumer(r, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	seen := 0
	h := func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		seen++
		n := seen
		mu.Unlock()
		if n == 2 {
			defer cancel()
		}
		if m.Offset == 1 {
			return errors.New("db down")
		}
		return nil
	}

	require.NoError(t, c.Start(ctx, h))
	assert.Equal(t, []int64{2}, r.committed)
}
