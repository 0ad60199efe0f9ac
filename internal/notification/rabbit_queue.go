package notification

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ticketBinding matches every routing key an Event produces.
const ticketBinding = "ticket.*"

// topologyDeclarer is the subset of *amqp091.Channel used to declare the exchange and queue.
type topologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

// declareTopology declares the durable topic exchange and the durable notification queue
// bound to it, returning the queue name.
func declareTopology(ch topologyDeclarer, exchange string) (string, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return "", fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	queue, err := ch.QueueDeclare(exchange+".notifications", true, false, false, false, nil)
	if err != nil {
		return "", fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, ticketBinding, exchange, false, nil); err != nil {
		return "", fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}
	return queue.Name, nil
}

// RabbitQueue publishes events to a topic exchange and consumes them from a durable
// queue bound to every ticket routing key. Publishing and consuming use separate channels.
type RabbitQueue struct {
	conn      *amqp091.Connection
	publishCh *amqp091.Channel
	consumeCh *amqp091.Channel
	exchange  string
	queue     string
	logger    *zap.Logger
}

// NewRabbitQueue connects and declares the exchange and the bound queue, so events
// published before a consumer starts are retained.
func NewRabbitQueue(url, exchange string, logger *zap.Logger) (*RabbitQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq publish channel: %w", err)
	}
	queue, err := declareTopology(publishCh, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq consume channel: %w", err)
	}
	return &RabbitQueue{
		conn:      conn,
		publishCh: publishCh,
		consumeCh: consumeCh,
		exchange:  exchange,
		queue:     queue,
		logger:    logger,
	}, nil
}

func (q *RabbitQueue) EnqueueTicketEventNotifications(ctx context.Context, comment domain.TicketComment, isCreateOrGiveUp bool, recipients []string) error {
	event := NewEvent(comment, isCreateOrGiveUp, recipients)
	body, err := encode(event)
	if err != nil {
		return err
	}
	return q.publishCh.PublishWithContext(ctx, q.exchange, event.RoutingKey(), false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID,
		Body:         body,
	})
}

// Consume acknowledges each delivery once handled. Failed deliveries are rejected
// without requeue.
func (q *RabbitQueue) Consume(ctx context.Context, handle Handler) error {
	deliveries, err := q.consumeCh.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", q.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			event, err := decode(msg.Body)
			if err == nil {
				err = handle(ctx, event)
			}
			if err != nil {
				q.logger.Warn("notification delivery failed", zap.String("message_id", msg.MessageId), zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// Close terminates both channels and the connection.
func (q *RabbitQueue) Close() error {
	if q == nil {
		return nil
	}
	for _, ch := range []*amqp091.Channel{q.consumeCh, q.publishCh} {
		if err := ch.Close(); err != nil {
			q.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	return q.conn.Close()
}
