package publisher

import (
	"context"
	"time"

	"github.com/cass-tech/storefront/internal/log"
	"github.com/cass-tech/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller relays checkout events from the outbox table to Kafka. Events
// are marked processed only after the broker accepted them, so delivery is at
// least once.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	repo      repository.OutboxStore
	writer    MessageWriter
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
}

func NewOutboxPoller(repo repository.OutboxStore, writer MessageWriter, tick time.Duration) *OutboxPoller {
	if tick <= 0 {
		tick = time.Second
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: tick,
		repo:      repo,
		writer:    writer,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.eventTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	logger := log.L(ctx)
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		logger.WithError(err).Error("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			logger.WithError(err).WithField("event_id", event.ID).Warn("failed to publish outbox event")
			continue
		}
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			logger.WithError(err).WithField("event_id", event.ID).Error("failed to mark outbox event as processed")
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // checkout id keeps per-checkout ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
