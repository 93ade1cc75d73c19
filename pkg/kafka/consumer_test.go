package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      chan kafka.Message
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

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
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

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                            { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func newTestConsumer(t *testing.T, h MessageHandler, opts ...ConsumerOption) (*Consumer, *fakeReader, *fakeWriter) {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, time.Millisecond),
		WithConsumerDLQ("dlq"),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	}, opts...)
	c, err := NewConsumer(opts...)
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	r := newFakeReader()
	w := &fakeWriter{}
	c.dlq = w
	c.readers[h.Topic()] = r
	c.RegisterHandler(h)
	return c, r, w
}

func TestProcessRetriesThenDeadLetters(t *testing.T) {
	calls := 0
	c, r, w := newTestConsumer(t, funcHandler{"in", func(context.Context, []byte) error {
		calls++
		return errors.New("clickhouse down")
	}})

	c.process(&message{topic: "in", km: kafka.Message{Offset: 7, Value: []byte("{}")}})

	assert.Equal(t, 3, calls)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "dlq", w.msgs[0].Topic)
	assert.Equal(t, []int64{7}, r.commits())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.handled.WithLabelValues("in", "dlq")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.retries.WithLabelValues("in")))
}

func TestProcessPermanentSkipsRetry(t *testing.T) {
	calls := 0
	c, r, w := newTestConsumer(t, funcHandler{"in", func(context.Context, []byte) error {
		calls++
		return Permanent(errors.New("bad json"))
	}})

	c.process(&message{topic: "in", km: kafka.Message{Offset: 1, Value: []byte("{")}})
	assert.Equal(t, 1, calls)
	assert.Len(t, w.msgs, 1)
	assert.Equal(t, []int64{1}, r.commits())
}

func TestProcessKeepsOffsetWhenDLQFails(t *testing.T) {
	c, r, w := newTestConsumer(t, funcHandler{"in", func(context.Context, []byte) error {
		return Permanent(errors.New("bad"))
	}})
	w.err = errors.New("broker gone")

	c.process(&message{topic: "in", km: kafka.Message{Offset: 5, Value: []byte("x")}})
	assert.Empty(t, r.commits())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.handled.WithLabelValues("in", "failed")))
}

func TestProcessRecoversPanics(t *testing.T) {
	c, r, w := newTestConsumer(t, funcHandler{"in", func(context.Context, []byte) error {
		panic("nil map")
	}})

	c.process(&message{topic: "in", km: kafka.Message{Offset: 2, Value: []byte("x")}})
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []int64{2}, r.commits())
}

func TestStartStopHandlesFetchedMessages(t *testing.T) {
	var mu sync.Mutex
	var got []string
	h := funcHandler{"in", func(ctx context.Context, b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, RequestIDFromContext(ctx)+"="+string(b))
		return nil
	}}
	c, _, _ := newTestConsumer(t, h, WithConsumerWorkers(2))
	c.WithConsumerHook(NewHookChain(RequestContextHook()))

	r := newFakeReader(
		kafka.Message{Offset: 1, Key: []byte("a"), Value: []byte("1")},
		kafka.Message{Offset: 2, Key: []byte("b"), Value: []byte("2")},
	)
	c.newReader = func(string) messageReader { return r }
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	require.NoError(t, c.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a=1", "b=2"}, got)
	assert.True(t, r.closed)
}

func TestNewConsumerValidates(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)

	_, err = NewConsumer(
		WithConsumerBrokers([]string{"k:9092"}),
		WithConsumerStartOffset("middle"),
		WithConsumerRegisterer(prometheus.NewRegistry()),
	)
	assert.ErrorContains(t, err, "start offset")

	c, err := NewConsumer(WithConsumerBrokers([]string{"k:9092"}), WithConsumerRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Equal(t, "forecast-service", c.cfg.GroupID)
	assert.Equal(t, 3, c.cfg.RetryMax)
	assert.Equal(t, kafka.FirstOffset, c.cfg.startOffset())
	assert.Error(t, c.Start())
}
