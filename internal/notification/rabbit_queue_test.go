package notification

import (
	"errors"
	"strings"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeclarer struct {
	calls       []string
	exchangeErr error
}

func (d *recordingDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	d.calls = append(d.calls, "exchange "+name+" "+kind)
	if !durable || autoDelete {
		return errors.New("exchange must be durable")
	}
	return d.exchangeErr
}

func (d *recordingDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	d.calls = append(d.calls, "queue "+name)
	if !durable || autoDelete || exclusive {
		return amqp091.Queue{}, errors.New("queue must be durable and shared")
	}
	return amqp091.Queue{Name: name}, nil
}

func (d *recordingDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	d.calls = append(d.calls, "bind "+name+" "+key+" "+exchange)
	return nil
}

func TestDeclareTopologyBindsQueueBeforeUse(t *testing.T) {
	d := &recordingDeclarer{}
	queue, err := declareTopology(d, "helpdesk.tickets")
	require.NoError(t, err)
	assert.Equal(t, "helpdesk.tickets.notifications", queue)
	assert.Equal(t, []string{
		"exchange helpdesk.tickets topic",
		"queue helpdesk.tickets.notifications",
		"bind helpdesk.tickets.notifications ticket.* helpdesk.tickets",
	}, d.calls)
}

func TestDeclareTopologyStopsOnExchangeError(t *testing.T) {
	d := &recordingDeclarer{exchangeErr: errors.New("access refused")}
	_, err := declareTopology(d, "helpdesk.tickets")
	require.Error(t, err)
	assert.Len(t, d.calls, 1)
}

func TestRoutingKeysMatchBinding(t *testing.T) {
	prefix := strings.TrimSuffix(ticketBinding, "*")
	for _, isCreateOrGiveUp := range []bool{true, false} {
		key := NewEvent(sampleComment(), isCreateOrGiveUp, nil).RoutingKey()
		assert.True(t, strings.HasPrefix(key, prefix), key)
		assert.NotContains(t, strings.TrimPrefix(key, prefix), ".", key)
	}
}
