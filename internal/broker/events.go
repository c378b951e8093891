package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"vendor-service/internal/models"
	"vendor-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedEvent marks a message that can never be handled
var ErrMalformedEvent = errors.New("malformed event")

// MessageWriter is the sink events are written to
type MessageWriter interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Broadcaster receives a copy of every published event
type Broadcaster interface {
	Broadcast(payload []byte)
}

// EventPublisher handles publishing supplier events
type EventPublisher struct {
	writer      MessageWriter
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewEventPublisher creates a new event publisher. broadcaster may be nil.
func NewEventPublisher(writer MessageWriter, broadcaster Broadcaster) *EventPublisher {
	return &EventPublisher{
		writer:      writer,
		broadcaster: broadcaster,
		logger:      util.GetLogger(),
	}
}

// PublishSupplierRegistered publishes SupplierRegistered event
func (ep *EventPublisher) PublishSupplierRegistered(ctx context.Context, event *models.SupplierRegisteredEvent) error {
	return ep.publish(ctx, supplierKey(event.SupplierID.String()), event.EventType, event)
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.publish(ctx, supplierKey(event.SupplierID.String()), event.EventType, event)
}

// PublishDeliveryConfirmed publishes DeliveryConfirmed event
func (ep *EventPublisher) PublishDeliveryConfirmed(ctx context.Context, event *models.DeliveryConfirmedEvent) error {
	return ep.publish(ctx, supplierKey(event.SupplierID.String()), event.EventType, event)
}

// PublishSupplierRemoved publishes SupplierRemoved event
func (ep *EventPublisher) PublishSupplierRemoved(ctx context.Context, event *models.SupplierRemovedEvent) error {
	return ep.publish(ctx, supplierKey(event.SupplierID.String()), event.EventType, event)
}

func (ep *EventPublisher) publish(ctx context.Context, key, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if ep.broadcaster != nil {
		ep.broadcaster.Broadcast(payload)
	}

	if err := ep.writer.Publish(ctx, key, payload); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(eventType).Inc()
		return err
	}

	util.EventsPublishedTotal.WithLabelValues(eventType).Inc()
	ep.logger.Debug("Published event", zap.String("key", key), zap.String("type", eventType))
	return nil
}

func supplierKey(id string) string {
	return "supplier-" + id
}

// EventHandler handles incoming events
type EventHandler struct {
	onDeliveryReceived func(context.Context, *models.DeliveryReceivedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnDeliveryReceived registers a handler for DeliveryReceived events
func (eh *EventHandler) OnDeliveryReceived(handler func(context.Context, *models.DeliveryReceivedEvent) error) {
	eh.onDeliveryReceived = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: base event: %v", ErrMalformedEvent, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeDeliveryReceived:
		if eh.onDeliveryReceived != nil {
			var event models.DeliveryReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("%w: DeliveryReceived event: %v", ErrMalformedEvent, err)
			}
			return eh.onDeliveryReceived(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
