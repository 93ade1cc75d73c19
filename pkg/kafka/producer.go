package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// HeaderContentType tells consumers how Value is encoded.
const HeaderContentType = "content_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON events. It is safe for concurrent use.
type Producer struct {
	w       messageWriter
	comp    string
	metrics *producerMetrics
	now     func() time.Time
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var bal kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressions[cfg.Compression],
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	return newProducer(w, cfg), nil
}

func newProducer(w messageWriter, cfg *ProducerConfig) *Producer {
	return &Producer{
		w:       w,
		comp:    cfg.Compression,
		metrics: newProducerMetrics(cfg.Registerer),
		now:     time.Now,
	}
}

// Publish writes value to topic. Strings and byte slices are sent as is,
// anything else as JSON. A non-empty key is also set as the request_id
// header.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := p.now()
	msg, err := p.message(topic, key, value)
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, msg)
	p.metrics.observe(topic, p.comp, len(msg.Value), p.now().Sub(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) message(topic string, key []byte, value interface{}) (kafka.Message, error) {
	msg := kafka.Message{Topic: topic, Key: key, Time: p.now()}
	contentType := "application/json"
	switch v := value.(type) {
	case []byte:
		msg.Value = v
		contentType = "application/octet-stream"
	case string:
		msg.Value = []byte(v)
		contentType = "text/plain"
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return msg, fmt.Errorf("marshal %T: %w", value, err)
		}
		msg.Value = b
	}

	msg.Headers = []kafka.Header{{Key: HeaderContentType, Value: []byte(contentType)}}
	if len(key) > 0 {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderRequestID, Value: key})
	}
	return msg, nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.w.Close()
}
