package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange     = "cafe.events"
	RealtimeQueue      = "cafe.events.realtime"
	DeadLetterExchange = "cafe.events.dlx"
	RealtimeDLQ        = "cafe.events.realtime.dlq"
	deadRoutingKey     = "dead"
)

// EnsureEventsTopology declares the events exchange and the realtime fan-out
// queue with its dead-letter queue.
func EnsureEventsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange, "topic"); err != nil {
		return err
	}
	if err := qc.EnsureExchange(DeadLetterExchange, "direct"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(RealtimeDLQ, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(RealtimeDLQ, DeadLetterExchange, deadRoutingKey); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(RealtimeQueue, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": deadRoutingKey,
	}); err != nil {
		return err
	}
	for _, key := range []string{"table.*", "order.*"} {
		if err := qc.BindQueue(RealtimeQueue, EventsExchange, key); err != nil {
			return err
		}
	}
	return nil
}
