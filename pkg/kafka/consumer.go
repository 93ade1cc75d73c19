package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// permanentError marks a failure that retrying cannot fix, such as a
// payload that does not decode.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer skips retries and sends the message
// straight to the DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

var errStopped = errors.New("consumer stopped")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type message struct {
	topic string
	km    kafka.Message
}

type partitionKey struct {
	topic     string
	partition int
}

// Consumer fetches from one reader per registered topic and hands messages
// to a worker pool. Offsets are committed only once a message was handled
// or dead-lettered, so a crash redelivers instead of losing work.
type Consumer struct {
	cfg       *ConsumerConfig
	handlers  map[string]MessageHandler
	readers   map[string]messageReader
	newReader func(topic string) messageReader
	dlq       messageWriter
	hook      ConsumerHook
	log       *applogger.Logger
	metrics   *consumerMetrics
	sleep     func(context.Context, time.Duration) error

	queue     chan *message
	ctx       context.Context
	cancel    context.CancelFunc
	fetchWG   sync.WaitGroup
	workWG    sync.WaitGroup
	stopOnce  sync.Once
	partMu    sync.Mutex
	partLocks map[partitionKey]*sync.Mutex
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		cfg:       cfg,
		handlers:  make(map[string]MessageHandler),
		readers:   make(map[string]messageReader),
		hook:      NoopHook{},
		log:       applogger.Nop(),
		metrics:   newConsumerMetrics(cfg.Registerer),
		sleep:     sleepCtx,
		queue:     make(chan *message, cfg.BufferSize),
		ctx:       ctx,
		cancel:    cancel,
		partLocks: make(map[partitionKey]*sync.Mutex),
	}
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.GroupID,
			StartOffset: cfg.startOffset(),
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return c, nil
}

// WithConsumerLogger routes consumer logs through l.
func (c *Consumer) WithConsumerLogger(l *applogger.Logger) {
	if l != nil {
		c.log = l
	}
}

// WithConsumerHook sets the lifecycle hook.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. The first handler for a
// topic wins.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workWG.Add(1)
		go c.work()
	}
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.fetchWG.Add(1)
		go c.fetch(topic, r)
	}
	c.log.Info("kafka consumer: started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop stops fetching, lets workers finish what they hold and closes the
// readers. Queued messages that were not started stay uncommitted.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.cancel()
		c.fetchWG.Wait()
		close(c.queue)

		done := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for kafka workers: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka consumer: close dlq writer", applogger.Error(err))
			}
		}
		c.log.Info("kafka consumer: stopped")
	})
	return stopErr
}

func (c *Consumer) fetch(topic string, r messageReader) {
	defer c.fetchWG.Done()
	for {
		km, err := r.FetchMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			if c.sleep(c.ctx, time.Second) != nil {
				return
			}
			continue
		}
		select {
		case c.queue <- &message{topic: topic, km: km}:
			c.metrics.queue.WithLabelValues(topic).Inc()
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.workWG.Done()
	for msg := range c.queue {
		c.metrics.queue.WithLabelValues(msg.topic).Dec()
		if c.ctx.Err() != nil {
			continue
		}
		c.process(msg)
	}
}

// process runs one message through the handler and settles its offset.
func (c *Consumer) process(msg *message) {
	h, ok := c.handlers[msg.topic]
	if !ok {
		return
	}
	start := time.Now()
	lock := c.partitionLock(msg.topic, msg.km.Partition)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := c.handleWithRetry(h, msg)
	if errors.Is(err, errStopped) {
		return
	}

	outcome := "ok"
	if err != nil {
		safeOnError(c.hook, context.Background(), msg.topic, msg.km, msg.km.Value, err)
		c.log.Error("kafka consumer: handle message failed",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int64("offset", msg.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Bool("permanent", IsPermanent(err)),
			applogger.Error(err),
		)
		outcome = c.deadLetter(msg, attempts, err)
	}
	if outcome != "failed" {
		c.commit(msg)
	}

	c.metrics.handled.WithLabelValues(msg.topic, outcome).Inc()
	c.metrics.latency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
	c.metrics.lastSeen.WithLabelValues(msg.topic, strconv.Itoa(msg.km.Partition)).Set(float64(msg.km.Offset))
}

func (c *Consumer) handleWithRetry(h MessageHandler, msg *message) (int, error) {
	for attempt := 1; ; attempt++ {
		err := c.handleOnce(h, msg)
		if err == nil || IsPermanent(err) || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		c.metrics.retries.WithLabelValues(msg.topic).Inc()
		if c.sleep(c.ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) != nil {
			return attempt, errStopped
		}
	}
}

// handleOnce runs the hooks and the handler. A panicking handler counts as
// a permanent failure.
func (c *Consumer) handleOnce(h MessageHandler, msg *message) (err error) {
	ctx, km, data, err := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.km.Value)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(&HookError{Code: "ERR_PANIC", Err: fmt.Errorf("handler panic: %v", r)})
		}
		safeAfter(c.hook, ctx, msg.topic, km, data, err)
	}()
	return h.Handle(ctx, data)
}

// deadLetter reports "dlq" when the message was parked and may be
// committed, "failed" when it must stay uncommitted for redelivery.
func (c *Consumer) deadLetter(msg *message, attempts int, cause error) string {
	if c.dlq == nil {
		return "failed"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.dlq.WriteMessages(ctx, dlqMessage(c.cfg.DLQTopic, msg.topic, msg.km, attempts, cause)); err != nil {
		c.log.Error("kafka consumer: write dlq",
			applogger.String("dlq_topic", c.cfg.DLQTopic),
			applogger.Error(err),
		)
		return "failed"
	}
	return "dlq"
}

func (c *Consumer) commit(msg *message) {
	r := c.readers[msg.topic]
	if r == nil {
		return
	}
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg.km)
		cancel()
		if err == nil {
			return
		}
		if c.sleep(context.Background(), backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt)) != nil {
			break
		}
	}
	c.log.Warn("kafka consumer: commit failed",
		applogger.String("topic", msg.topic),
		applogger.Int64("offset", msg.km.Offset),
		applogger.Error(err),
	)
}

// dlqMessage keeps the original key and headers and records where the
// message came from and why it was parked.
func dlqMessage(dlqTopic, source string, km kafka.Message, attempts int, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(km.Headers)+4)
	headers = append(headers, km.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(source)},
		kafka.Header{Key: "source_offset", Value: []byte(strconv.FormatInt(km.Offset, 10))},
		kafka.Header{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	return kafka.Message{
		Topic:   dlqTopic,
		Key:     km.Key,
		Value:   km.Value,
		Time:    time.Now(),
		Headers: headers,
	}
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()
	k := partitionKey{topic, partition}
	l, ok := c.partLocks[k]
	if !ok {
		l = &sync.Mutex{}
		c.partLocks[k] = l
	}
	return l
}

// backoffWithJitter doubles min per attempt up to max and takes off up to
// half of it at random.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	return exp - time.Duration(rand.Int64N(int64(exp)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
