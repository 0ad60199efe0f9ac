package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/notification"
)

// NotificationWorker drains the notification queue into the delivery channels.
type NotificationWorker struct {
	consumer  notification.Consumer
	deliverer *notification.Deliverer
	logger    *zap.Logger
}

// NewNotificationWorker wires a queue consumer to a deliverer.
func NewNotificationWorker(consumer notification.Consumer, deliverer *notification.Deliverer, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{consumer: consumer, deliverer: deliverer, logger: logger}
}

// Run blocks until ctx is cancelled or the consumer fails.
func (w *NotificationWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return nil
	}
	w.logger.Info("notification worker started")
	defer w.logger.Info("notification worker stopped")
	return w.consumer.Consume(ctx, w.deliverer.Deliver)
}

// Start runs the worker in the background and logs a terminal error.
func (w *NotificationWorker) Start(ctx context.Context) {
	go func() {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("notification worker failed", zap.Error(err))
		}
	}()
}
