package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to a structured logger. It is the sink used when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	attrs := []any{
		"type", string(e.Type),
		"user", e.User,
	}
	if e.Objective != "" {
		attrs = append(attrs, "objective", e.Objective)
	}
	if e.Area != "" {
		attrs = append(attrs, "area", e.Area, "amount", e.Amount)
	}
	if e.Item != "" {
		attrs = append(attrs, "item", e.Item)
	}
	if e.Error != "" {
		attrs = append(attrs, "error", e.Error)
	}
	p.logger.InfoContext(ctx, "domain event", attrs...)
	return nil
}
