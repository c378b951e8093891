package worker

import (
	"context"

	"vendor-service/internal/broker"
	"vendor-service/internal/models"
	"vendor-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers messages to a handler until its context ends
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// DeliveryConfirmer applies delivery receipts to supplier ledgers
type DeliveryConfirmer interface {
	HandleDeliveryReceived(ctx context.Context, event *models.DeliveryReceivedEvent) error
}

// DeliveryWorker confirms deliveries reported by the receiving dock
type DeliveryWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewDeliveryWorker creates a new delivery worker
func NewDeliveryWorker(source MessageSource, confirmer DeliveryConfirmer) *DeliveryWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnDeliveryReceived(confirmer.HandleDeliveryReceived)

	return &DeliveryWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start consumes delivery receipts until ctx is cancelled
func (w *DeliveryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting delivery worker")
	return w.source.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *DeliveryWorker) Stop() error {
	w.logger.Info("Stopping delivery worker")
	return w.source.Close()
}
