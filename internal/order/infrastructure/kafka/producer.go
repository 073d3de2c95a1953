package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer is the Kafka producer behind the outbox dispatcher. Messages carry
// their own topic, so one writer can serve every outbox topic.
type Writer struct {
	log *slog.Logger
	w   *kafka.Writer
}

func NewWriter(log *slog.Logger, brokers []string) *Writer {
	return &Writer{
		log: log,
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.w.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close(context.Context) error {
	s := w.w.Stats()
	w.log.Info("kafka writer closing", "messages", s.Messages, "errors", s.Errors)
	return w.w.Close()
}
