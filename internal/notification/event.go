// Package notification carries ticket audit events from the workflow host to the
// delivery channels. Producers enqueue; a worker consumes and hands events to a Deliverer.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Event is the queued form of one audit comment.
type Event struct {
	ID               string    `json:"id"`
	TicketID         int64     `json:"ticket_id"`
	CommentID        int64     `json:"comment_id"`
	CommentedBy      string    `json:"commented_by"`
	CommentedDate    time.Time `json:"commented_date"`
	CommentEvent     string    `json:"comment_event"`
	Comment          string    `json:"comment,omitempty"`
	IsCreateOrGiveUp bool      `json:"is_create_or_give_up"`
	Recipients       []string  `json:"recipients"`
	EnqueuedAt       time.Time `json:"enqueued_at"`
}

// NewEvent wraps a persisted audit comment.
func NewEvent(comment domain.TicketComment, isCreateOrGiveUp bool, recipients []string) Event {
	return Event{
		ID:               uuid.NewString(),
		TicketID:         comment.TicketID,
		CommentID:        comment.ID,
		CommentedBy:      comment.CommentedBy,
		CommentedDate:    comment.CommentedDate,
		CommentEvent:     comment.CommentEvent,
		Comment:          comment.Comment,
		IsCreateOrGiveUp: isCreateOrGiveUp,
		Recipients:       append([]string(nil), recipients...),
		EnqueuedAt:       time.Now().UTC(),
	}
}

// RoutingKey classifies the event for topic based brokers.
func (e Event) RoutingKey() string {
	if e.IsCreateOrGiveUp {
		return "ticket.unassigned"
	}
	return "ticket.updated"
}

// Handler processes one consumed event.
type Handler func(ctx context.Context, event Event) error

// Queue accepts ticket events for asynchronous delivery.
type Queue interface {
	EnqueueTicketEventNotifications(ctx context.Context, comment domain.TicketComment, isCreateOrGiveUp bool, recipients []string) error
}

// Consumer drains a queue until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handle Handler) error
}

func encode(event Event) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return body, nil
}

func decode(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("decode notification: %w", err)
	}
	return event, nil
}
