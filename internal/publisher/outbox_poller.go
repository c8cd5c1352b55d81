package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays order events from the outbox collection to kafka.
// Delivery is at least once: an event written but not yet marked processed
// is sent again on the next tick.
type OutboxPoller struct {
	tick   time.Duration
	repo   repository.EventRepository
	writer MessageWriter
	log    *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same order id, same partition
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(repo repository.EventRepository, writer MessageWriter, log *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		tick:   time.Second,
		repo:   repo,
		writer: writer,
		log:    log,
	}
}

// Run polls until ctx is cancelled, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.log.Error("failed to close event writer", "error", err)
		}
	}()

	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.WarnContext(ctx, "failed to publish event",
				"event_id", event.ID, "event_type", event.EventType, "error", err)
			// keep per-aggregate order: later events wait for this one
			return
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", err)
			return
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OrderEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	})
}
