package broker

import (
	"context"

	"recon-service/internal/models"
)

// EventPublisher handles publishing reconciliation events for downstream
// billing and wallet consumers.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderImported publishes OrderImported event
func (ep *EventPublisher) PublishOrderImported(ctx context.Context, event *models.OrderImportedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderID, event)
}

// PublishOrderMatched publishes OrderMatched event
func (ep *EventPublisher) PublishOrderMatched(ctx context.Context, event *models.OrderMatchedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderID, event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderID, event)
}
