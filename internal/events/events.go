// Package events carries change notifications from the domain packages to
// live subscribers (WebSocket clients, the message broker).
package events

import (
	"context"
	"fmt"
)

const (
	EntityParent      = "parent"
	EntityChild       = "child"
	EntityTask        = "task"
	EntityTransaction = "transaction"
)

const (
	ActionCreated       = "created"
	ActionWalletUpdated = "wallet_updated"
	ActionCompleted     = "completed"
	ActionApproved      = "approved"
	ActionRejected      = "rejected"
)

// Event is a change notification. Type is "<entity>_<action>".
type Event struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func New(entity, action string, id int64, extra map[string]any) Event {
	return Event{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Publisher delivers events. Publish must not block the caller for long and
// never fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Multi fans an event out to every publisher in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
