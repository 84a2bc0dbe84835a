package worker

import (
	"context"
	"fmt"

	"marketplace-service/internal/broker"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NotificationWorker consumes order events and emails confirmations for placed orders.
// Each event is delivered at most once per event id; a failed send is left uncommitted for redelivery.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	mailer       service.ConfirmationMailer
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	store *store.Store,
	mailer service.ConfirmationMailer,
) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		mailer:       mailer,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	w.eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	w.eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

// HandleMessage routes one raw broker message
func (w *NotificationWorker) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	ctx, span := util.StartSpan(ctx, "NotificationWorker.handleOrderPlaced")
	defer span.End()

	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		w.logger.Debug("Skipping duplicate event", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.mailer.SendOrderConfirmation(ctx, event.Confirmation); err != nil {
		util.NotificationFailuresTotal.WithLabelValues(service.ChannelEmail).Inc()
		return fmt.Errorf("failed to send confirmation for order %d: %w", event.Confirmation.OrderID, err)
	}
	util.NotificationsSentTotal.WithLabelValues(service.ChannelEmail).Inc()

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Warn("Failed to mark event processed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}

	w.logger.Info("Order confirmation sent",
		zap.Int64("order_id", event.Confirmation.OrderID),
		zap.String("customer_email", event.Confirmation.CustomerEmail))
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	w.logger.Info("Order cancelled",
		zap.Int64("order_id", event.OrderID),
		zap.Int("restocked_lines", len(event.Restocked)))
	return nil
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	w.logger.Info("Order status changed",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)))
	return nil
}
