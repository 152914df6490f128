package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"price-tracker/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPriceChanged publishes PriceChanged event
func (ep *EventPublisher) PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishProductDiscovered publishes ProductDiscovered event
func (ep *EventPublisher) PublishProductDiscovered(ctx context.Context, event *models.ProductDiscoveredEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishJobFailed publishes JobFailed event
func (ep *EventPublisher) PublishJobFailed(ctx context.Context, event *models.JobFailedEvent) error {
	key := fmt.Sprintf("market-%s", event.MarketID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSweepCompleted publishes SweepCompleted event
func (ep *EventPublisher) PublishSweepCompleted(ctx context.Context, event *models.SweepCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, "fullsweep", event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onJobFailed    func(context.Context, *models.JobFailedEvent) error
	onPriceChanged func(context.Context, *models.PriceChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnJobFailed registers a handler for JobFailed events
func (eh *EventHandler) OnJobFailed(handler func(context.Context, *models.JobFailedEvent) error) {
	eh.onJobFailed = handler
}

// OnPriceChanged registers a handler for PriceChanged events
func (eh *EventHandler) OnPriceChanged(handler func(context.Context, *models.PriceChangedEvent) error) {
	eh.onPriceChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeJobFailed:
		if eh.onJobFailed != nil {
			var event models.JobFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal JobFailed event: %w", err)
			}
			return eh.onJobFailed(ctx, &event)
		}

	case models.EventTypePriceChanged:
		if eh.onPriceChanged != nil {
			var event models.PriceChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PriceChanged event: %w", err)
			}
			return eh.onPriceChanged(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
