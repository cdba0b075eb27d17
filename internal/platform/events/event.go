// Package events publishes domain events about task lifecycle and purchases.
// Publishing is best effort: the stored state is the source of truth and a
// failed publish never fails the request that produced the event.
package events

import (
	"context"
	"time"
)

// Type names an event.
type Type string

const (
	TaskAssigned  Type = "task.assigned"
	TaskUpdated   Type = "task.updated"
	TaskCompleted Type = "task.completed"
	TaskCleared   Type = "task.cleared"
	ArchiveFailed Type = "archive.failed"
	ItemBought    Type = "item.bought"
)

// Event is the wire shape of a published event.
type Event struct {
	Type      Type      `json:"type"`
	User      string    `json:"user"`
	Objective string    `json:"objective,omitempty"`
	Area      string    `json:"area,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Item      string    `json:"item,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`

	// Task carries the task snapshot for events an operator may need to
	// replay, such as archive.failed.
	Task any `json:"task,omitempty"`
}

// Publisher emits events to a sink.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
