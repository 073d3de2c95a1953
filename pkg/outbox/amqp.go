package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the AMQP dispatcher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes outbox events to a RabbitMQ topic exchange. The
// routing key is "<aggregate>.<event type>", e.g. "order.orderstatuschanged".
type AMQPDispatcher struct {
	log      *slog.Logger
	channel  Channel
	exchange string
}

func NewAMQPDispatcher(log *slog.Logger, channel Channel, exchange string) *AMQPDispatcher {
	return &AMQPDispatcher{log: log, channel: channel, exchange: exchange}
}

// DialAMQP connects and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func RoutingKey(event Event) string {
	return strings.ToLower(event.AggregateType + "." + event.Type)
}

func (d *AMQPDispatcher) Publish(ctx context.Context, event Event) error {
	headers := amqp.Table{EventTypeHeader: event.Type}
	for k, v := range event.Headers {
		headers[k] = v
	}
	if event.Traceparent != "" {
		headers["traceparent"] = event.Traceparent
	}

	err := d.channel.PublishWithContext(ctx, d.exchange, RoutingKey(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%s-%d", event.AggregateType, event.ID),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         event.Payload,
	})
	if err != nil {
		d.log.Error("outbox amqp publish failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type, "exchange", d.exchange)
	return nil
}
