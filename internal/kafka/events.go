package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/fablecast/fablecast/internal/workflow"
)

// EventMessage carries one run progress event across processes.
type EventMessage struct {
	RunID uuid.UUID      `json:"run_id"`
	Event workflow.Event `json:"event"`
}

const eventPublishTimeout = 5 * time.Second

// EventPublisher fans run progress events out to the events topic so API
// instances can stream them to clients. Delivery is best effort: a publish
// failure never fails the run.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher wraps a producer bound to the events topic.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Publish sends one event, keyed by run ID so a run's events stay ordered.
func (p *EventPublisher) Publish(runID uuid.UUID, ev workflow.Event) {
	data, err := json.Marshal(EventMessage{RunID: runID, Event: ev})
	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("Failed to marshal event message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(runID.String()),
		Value: data,
	}
	if err := p.producer.writer.WriteMessages(ctx, msg); err != nil {
		log.Warn().Err(err).Str("run_id", runID.String()).Str("type", ev.Type).
			Msg("Failed to publish run event")
	}
}

// Observer adapts the publisher to a single run's workflow observer.
func (p *EventPublisher) Observer(runID uuid.UUID) workflow.Observer {
	return eventObserver{publisher: p, runID: runID}
}

type eventObserver struct {
	publisher *EventPublisher
	runID     uuid.UUID
}

func (o eventObserver) OnEvent(ev workflow.Event) {
	o.publisher.Publish(o.runID, ev)
}

// EventHandler receives relayed run events. *events.Hub satisfies it.
type EventHandler interface {
	Publish(runID uuid.UUID, ev workflow.Event)
}

// EventConsumer relays run events from the events topic into a handler.
// Each consumer uses its own group so every API instance sees every event.
type EventConsumer struct {
	reader  *kafka.Reader
	handler EventHandler
}

// NewEventConsumer creates a consumer over the events topic. Only events
// produced after startup matter for live streaming, so it starts at the tail.
func NewEventConsumer(brokers []string, topic string, handler EventHandler) *EventConsumer {
	groupID := "fablecast-api-" + uuid.New().String()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.LastOffset,
	})

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Kafka event consumer initialized")

	return &EventConsumer{
		reader:  reader,
		handler: handler,
	}
}

// Start relays events until the context is cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to read event message")
			continue
		}

		var evMsg EventMessage
		if err := json.Unmarshal(msg.Value, &evMsg); err != nil {
			log.Warn().Err(err).Msg(fmt.Sprintf("Dropping malformed event at offset %d", msg.Offset))
			continue
		}

		c.handler.Publish(evMsg.RunID, evMsg.Event)
	}
}

// Close closes the consumer.
func (c *EventConsumer) Close() error {
	log.Info().Msg("Closing Kafka event consumer")
	return c.reader.Close()
}
