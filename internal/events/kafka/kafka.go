// Package kafka is the Kafka transport for change events.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"kharcha/internal/events"
)

const publishBatchTimeout = 10 * time.Millisecond

type Publisher struct {
	writer *kafka.Writer
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	// Publish runs inside the write request, so batches are flushed
	// almost immediately instead of after kafka-go's 1s default.
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           publishBatchTimeout,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, ev events.ChangeEvent) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ID),
		Value: data,
		Time:  ev.Timestamp,
	}); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	slog.InfoContext(ctx, "Published change event", "event_id", ev.ID, "kind", ev.Kind, "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer reads change events as part of a consumer group. Offsets are
// committed only after the handler succeeds; a failing event is retried
// with backoff and blocks the partition until it goes through.
type Consumer struct {
	reader messageReader
	// retryDelay is events.Backoff outside tests.
	retryDelay func(attempt int) time.Duration
}

var _ events.Consumer = (*Consumer)(nil)

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		retryDelay: events.Backoff,
	}
}

// Consume returns only when ctx is done or the broker fails. Handler errors
// never end it.
func (c *Consumer) Consume(ctx context.Context, h events.Handler) error {
	cfg := c.reader.Config()
	slog.InfoContext(ctx, "Started consuming change events", "topic", cfg.Topic, "group_id", cfg.GroupID)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		ev, err := events.FromJSON(msg.Value)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err, "offset", msg.Offset)
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("commit malformed message: %w", err)
			}
			continue
		}

		if err := c.handle(ctx, h, ev, msg.Offset); err != nil {
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// handle runs h until it succeeds, waiting between attempts. It fails only
// when ctx is done.
func (c *Consumer) handle(ctx context.Context, h events.Handler, ev events.ChangeEvent, offset int64) error {
	for attempt := 0; ; attempt++ {
		err := h(ctx, ev)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := c.retryDelay(attempt)
		slog.WarnContext(ctx, "Change event handler failed, retrying",
			"error", err,
			"event_id", ev.ID,
			"offset", offset,
			"attempt", attempt+1,
			"retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
