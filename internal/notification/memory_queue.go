package notification

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const defaultMemoryQueueSize = 256

// ErrQueueFull is returned when the in-process buffer has no room left.
var ErrQueueFull = errors.New("notification queue is full")

// MemoryQueue buffers events in process until a consumer drains them, and keeps a copy of
// every event it accepted. Enqueueing never waits for delivery.
type MemoryQueue struct {
	mu      sync.RWMutex
	events  []Event
	pending chan Event
	logger  *zap.Logger
}

// NewMemoryQueue creates an in-process queue.
func NewMemoryQueue(logger *zap.Logger) *MemoryQueue {
	return newMemoryQueue(logger, defaultMemoryQueueSize)
}

func newMemoryQueue(logger *zap.Logger, size int) *MemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryQueue{pending: make(chan Event, size), logger: logger}
}

func (q *MemoryQueue) EnqueueTicketEventNotifications(ctx context.Context, comment domain.TicketComment, isCreateOrGiveUp bool, recipients []string) error {
	event := NewEvent(comment, isCreateOrGiveUp, recipients)

	select {
	case q.pending <- event:
	default:
		q.logger.Warn("notification dropped", zap.String("event_id", event.ID), zap.Int64("ticket_id", event.TicketID))
		return ErrQueueFull
	}

	q.mu.Lock()
	q.events = append(q.events, event)
	q.mu.Unlock()
	return nil
}

// Consume hands buffered events to handle until ctx is cancelled. Handler failures are
// logged and the next event is processed.
func (q *MemoryQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-q.pending:
			if err := handle(ctx, event); err != nil {
				q.logger.Warn("notification delivery failed", zap.String("event_id", event.ID), zap.Error(err))
			}
		}
	}
}

// Len returns the number of events waiting for a consumer.
func (q *MemoryQueue) Len() int {
	return len(q.pending)
}

// Events returns every accepted event in order.
func (q *MemoryQueue) Events() []Event {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Event(nil), q.events...)
}
