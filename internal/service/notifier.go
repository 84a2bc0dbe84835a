package service

import (
	"context"
	"errors"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// Notification channels
const (
	ChannelEvent = "event"
	ChannelEmail = "email"
	ChannelLog   = "log"
)

var errNoPublisher = errors.New("no event publisher configured")

// Notifier dispatches order notifications. Every method is best-effort: failures are logged and counted,
// never returned to the operation that triggered them.
type Notifier struct {
	channel   string
	publisher EventPublisher
	mailer    ConfirmationMailer
	logger    *zap.Logger
}

// NewNotifier creates a new notifier. publisher and mailer may be nil when their channel is unused.
func NewNotifier(channel string, publisher EventPublisher, mailer ConfirmationMailer) *Notifier {
	switch channel {
	case ChannelEvent, ChannelEmail, ChannelLog:
	default:
		channel = ChannelLog
	}
	return &Notifier{
		channel:   channel,
		publisher: publisher,
		mailer:    mailer,
		logger:    util.GetLogger(),
	}
}

// OrderPlaced delivers an order confirmation on the configured channel
func (n *Notifier) OrderPlaced(ctx context.Context, c models.OrderConfirmation) {
	if n == nil {
		return
	}
	ctx, span := util.StartSpan(ctx, "Notifier.OrderPlaced")
	defer span.End()

	if err := n.dispatchConfirmation(ctx, c); err != nil {
		util.NotificationFailuresTotal.WithLabelValues(n.channel).Inc()
		n.logger.Error("Failed to send order confirmation",
			zap.String("channel", n.channel),
			zap.Int64("order_id", c.OrderID),
			zap.Error(err))
		return
	}
	util.NotificationsSentTotal.WithLabelValues(n.channel).Inc()
}

func (n *Notifier) dispatchConfirmation(ctx context.Context, c models.OrderConfirmation) error {
	switch n.channel {
	case ChannelEvent:
		if n.publisher == nil {
			return errNoPublisher
		}
		return n.publisher.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{
			BaseEvent:    models.NewBaseEvent(models.EventTypeOrderPlaced),
			Confirmation: c,
		})
	case ChannelEmail:
		if n.mailer == nil {
			return errors.New("no mailer configured")
		}
		return n.mailer.SendOrderConfirmation(ctx, c)
	default:
		n.logger.Info("Order confirmation",
			zap.Int64("order_id", c.OrderID),
			zap.String("customer_email", c.CustomerEmail),
			zap.String("total", c.TotalAmount.StringFixed(2)),
			zap.Int("items", len(c.Items)))
		return nil
	}
}

// OrderCancelled publishes an ORDER_CANCELLED event when a publisher is wired
func (n *Notifier) OrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) {
	if n == nil || n.publisher == nil {
		return
	}
	if err := n.publisher.PublishOrderCancelled(ctx, event); err != nil {
		n.logger.Error("Failed to publish OrderCancelled event",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}

// OrderStatusChanged publishes an ORDER_STATUS_CHANGED event when a publisher is wired
func (n *Notifier) OrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) {
	if n == nil || n.publisher == nil {
		return
	}
	if err := n.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		n.logger.Error("Failed to publish OrderStatusChanged event",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
}
