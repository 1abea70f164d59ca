// Package events publishes workflow transitions to RabbitMQ and consumes them for notifications.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TypeTransitioned is the event name of a committed status transition.
const TypeTransitioned = "document.transitioned"

// Transitioned is emitted after a workflow action commits.
type Transitioned struct {
	Event          string    `json:"event"`
	DocumentID     string    `json:"document_id"`
	Action         string    `json:"action"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	ActorID        string    `json:"actor_id"`
	NextAssigneeID string    `json:"next_assignee_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Validate rejects payloads a consumer cannot act on.
func (e Transitioned) Validate() error {
	if e.Event != TypeTransitioned {
		return fmt.Errorf("unexpected event type %q", e.Event)
	}
	if e.DocumentID == "" || e.Action == "" || e.To == "" {
		return errors.New("document_id, action and to are required")
	}
	return nil
}

// Publisher sends transition events.
type Publisher interface {
	Publish(ctx context.Context, evt Transitioned) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Transitioned) error { return nil }
