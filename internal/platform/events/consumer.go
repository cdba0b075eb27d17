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

// Handler processes one consumed event.
type Handler func(ctx context.Context, e Event) error

// KafkaConsumer reads events as a member of a consumer group. Offsets are
// committed only after every record of a poll has been handled, so a crash
// or a handler failure leads to redelivery rather than loss.
type KafkaConsumer struct {
	client    *kgo.Client
	attempts  int
	backoff   time.Duration
	permanent func(error) bool
	logger    *slog.Logger
}

// ConsumerOption configures a KafkaConsumer.
type ConsumerOption func(*KafkaConsumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *KafkaConsumer) {
		c.logger = logger
	}
}

// WithRetry sets how many times a record is handed to the handler and the
// initial delay between attempts. The delay doubles after each attempt.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *KafkaConsumer) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithPermanent marks handler errors that retrying cannot fix. Records
// failing that way are logged and skipped.
func WithPermanent(fn func(error) bool) ConsumerOption {
	return func(c *KafkaConsumer) {
		c.permanent = fn
	}
}

// NewKafkaConsumer joins group on topic. A group without committed offsets
// starts from the oldest record.
func NewKafkaConsumer(brokers []string, topic, group string, opts ...ConsumerOption) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("events: topic is required")
	}
	if group == "" {
		return nil, errors.New("events: consumer group is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka client: %w", err)
	}
	c := newConsumer(opts...)
	c.client = client
	return c, nil
}

func newConsumer(opts ...ConsumerOption) *KafkaConsumer {
	c := &KafkaConsumer{
		attempts:  5,
		backoff:   time.Second,
		permanent: func(error) bool { return false },
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is done or the client is closed. It returns the
// handler error of a record that kept failing after every retry; offsets of
// that poll are left uncommitted.
func (c *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var failed error
		fetches.EachRecord(func(rec *kgo.Record) {
			if failed == nil {
				failed = c.deliver(ctx, rec, handle)
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		if failed != nil {
			return failed
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.WarnContext(ctx, "offset commit failed", "error", err)
		}
	}
}

func (c *KafkaConsumer) deliver(ctx context.Context, rec *kgo.Record, handle Handler) error {
	var e Event
	if err := json.Unmarshal(rec.Value, &e); err != nil {
		consumed.WithLabelValues("unknown", "skipped").Inc()
		c.logger.WarnContext(ctx, "undecodable record skipped",
			"partition", rec.Partition,
			"offset", rec.Offset,
			"error", err,
		)
		return nil
	}

	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := handle(ctx, e)
		switch {
		case err == nil:
			consumed.WithLabelValues(string(e.Type), "ok").Inc()
			return nil
		case c.permanent(err):
			consumed.WithLabelValues(string(e.Type), "skipped").Inc()
			c.logger.WarnContext(ctx, "event skipped",
				"type", string(e.Type),
				"user", e.User,
				"offset", rec.Offset,
				"error", err,
			)
			return nil
		case attempt >= c.attempts:
			consumed.WithLabelValues(string(e.Type), "error").Inc()
			return fmt.Errorf("events: handle %s at offset %d: %w", e.Type, rec.Offset, err)
		}

		c.logger.WarnContext(ctx, "event handling failed, retrying",
			"type", string(e.Type),
			"user", e.User,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// Close leaves the group and releases the client.
func (c *KafkaConsumer) Close() {
	c.client.Close()
}
