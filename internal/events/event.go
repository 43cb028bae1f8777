// Package events carries conversation mode changes to consumers outside the request path
// (the messaging-channel dispatcher, analytics). Publishing is best-effort and never undoes a
// committed transition.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Type names an event.
type Type string

const (
	TypeTakenOver        Type = "conversation.taken_over"
	TypeHandedBack       Type = "conversation.handed_back"
	TypeCleared          Type = "conversation.cleared"
	TypeReleasedOnDelete Type = "conversation.released"
)

// Event is one committed conversation transition.
type Event struct {
	Type           Type      `json:"type"`
	BusinessID     string    `json:"business_id"`
	ConversationID string    `json:"conversation_id"`
	EmployeeID     string    `json:"employee_id,omitempty"`
	FromMode       string    `json:"from_mode"`
	ToMode         string    `json:"to_mode"`
	Version        int64     `json:"version"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher sends events. Callers log and ignore errors.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards events.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish sends e to each publisher in order.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishTimeout bounds one asynchronous publish.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the server stops before closing publishers,
// so in-flight asynchronous publishes can finish. Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// PublishAsync publishes e in a goroutine detached from the request's cancellation.
// Failures are logged.
func PublishAsync(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		pubCtx, cancel := context.WithTimeout(detached, publishTimeout)
		defer cancel()
		if err := p.Publish(pubCtx, e); err != nil {
			log.Warn().Err(err).
				Str("event_type", string(e.Type)).
				Str("business_id", e.BusinessID).
				Str("conversation_id", e.ConversationID).
				Msg("events: publish failed")
		}
	}()
}
