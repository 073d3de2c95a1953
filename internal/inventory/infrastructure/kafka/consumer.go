package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	orderdomain "github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

// Reader is the subset of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper remembers which deliveries were already handled.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Projector consumes order status changes.
type Projector interface {
	ApplyOrderStatusChanged(ctx context.Context, ev orderdomain.OrderStatusChanged) error
}

// Consumer feeds order.events into the stock movement projection.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	proj   Projector
	idem   Deduper
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, proj Projector, idem Deduper) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		proj:   proj,
		idem:   idem,
		tracer: otel.Tracer("inventory-consumer"),
	}
}

// Run processes messages until ctx ends. It stops on the first message it
// cannot project, leaving that message uncommitted with its dedupe key
// dropped, so a restart resumes from it.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if err := c.Handle(ctx, msg); err != nil {
			c.log.Error("order event not projected", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warn("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// Handle projects one message. Messages other than OrderStatusChanged and
// duplicates are acknowledged without work.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) (err error) {
	eventType := tracing.HeaderValue(msg.Headers, outbox.EventTypeHeader)
	if eventType != orderdomain.EventOrderStatusChanged {
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderStatusChanged", trace.WithAttributes(
		attribute.String("order.id", string(msg.Key)),
		attribute.Int64("kafka.offset", msg.Offset),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var ev orderdomain.OrderStatusChanged
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// a malformed payload will never decode; acknowledge it
		c.log.Error("unmarshal failed", "key", key, "err", err)
		return nil
	}
	if err := c.proj.ApplyOrderStatusChanged(msgCtx, ev); err != nil {
		if ferr := c.idem.Forget(ctx, key); ferr != nil {
			c.log.Warn("dedupe key not released", "key", key, "err", ferr)
		}
		return err
	}
	return nil
}
