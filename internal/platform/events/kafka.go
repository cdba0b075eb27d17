package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrPublisherOpen is returned while the circuit is open.
var ErrPublisherOpen = errors.New("events: publisher circuit open")

// KafkaPublisher produces events as JSON records keyed by user, so every
// event of one beneficiary lands on the same partition in order.
type KafkaPublisher struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	breaker *breaker
	logger  *slog.Logger
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

// WithProduceTimeout bounds each synchronous produce.
func WithProduceTimeout(d time.Duration) KafkaOption {
	return func(p *KafkaPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBreaker sets the failure threshold and cooldown of the circuit breaker.
func WithBreaker(threshold int, cooldown time.Duration) KafkaOption {
	return func(p *KafkaPublisher) {
		p.breaker = newBreaker(threshold, cooldown)
	}
}

// NewKafkaPublisher connects a producer to brokers. The connection is lazy:
// an unreachable broker surfaces on the first Publish.
func NewKafkaPublisher(brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("events: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka client: %w", err)
	}
	p := &KafkaPublisher{
		client:  client,
		topic:   topic,
		timeout: 5 * time.Second,
		breaker: newBreaker(5, 30*time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if !p.breaker.allow() {
		published.WithLabelValues(string(e.Type), "dropped").Inc()
		return ErrPublisherOpen
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", e.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rec := &kgo.Record{Topic: p.topic, Key: []byte(e.User), Value: value}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if p.breaker.failure() {
			breakerOpen.Set(1)
		}
		published.WithLabelValues(string(e.Type), "error").Inc()
		p.logger.WarnContext(ctx, "event publish failed",
			"type", string(e.Type),
			"user", e.User,
			"error", err,
		)
		return fmt.Errorf("events: produce %s: %w", e.Type, err)
	}
	p.breaker.success()
	breakerOpen.Set(0)
	published.WithLabelValues(string(e.Type), "ok").Inc()
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
