package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfirmation() models.OrderConfirmation {
	return models.OrderConfirmation{
		CustomerName:         "Ann",
		CustomerEmail:        "ann@x.com",
		OrderID:              7,
		OrderDate:            fixedNow,
		TotalAmount:          decimal.RequireFromString("25.00"),
		PaymentMethod:        models.PaymentMethodCOD,
		ShippingAddress:      "Ann Buyer\n1 Main St\nSpringfield, IL 62701",
		ExpectedDeliveryDate: fixedNow.Add(5 * 24 * time.Hour),
		Items: []models.ConfirmationItem{
			{ProductName: "Product A", Quantity: 2, Price: decimal.RequireFromString("10.00")},
		},
	}
}

func TestNotifierChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("event", func(t *testing.T) {
		publisher := &fakePublisher{}
		mailer := &fakeMailer{}
		NewNotifier(ChannelEvent, publisher, mailer).OrderPlaced(ctx, testConfirmation())

		require.Len(t, publisher.placed, 1)
		assert.Equal(t, models.EventTypeOrderPlaced, publisher.placed[0].EventType)
		assert.Equal(t, int64(7), publisher.placed[0].Confirmation.OrderID)
		assert.Empty(t, mailer.sent)
	})

	t.Run("email", func(t *testing.T) {
		publisher := &fakePublisher{}
		mailer := &fakeMailer{}
		NewNotifier(ChannelEmail, publisher, mailer).OrderPlaced(ctx, testConfirmation())

		require.Len(t, mailer.sent, 1)
		assert.Equal(t, "ann@x.com", mailer.sent[0].CustomerEmail)
		assert.Empty(t, publisher.placed)
	})

	t.Run("unknown falls back to log", func(t *testing.T) {
		publisher := &fakePublisher{}
		mailer := &fakeMailer{}
		n := NewNotifier("carrier-pigeon", publisher, mailer)
		assert.Equal(t, ChannelLog, n.channel)

		n.OrderPlaced(ctx, testConfirmation())
		assert.Empty(t, publisher.placed)
		assert.Empty(t, mailer.sent)
	})
}

func TestNotifierSwallowsFailures(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		NewNotifier(ChannelEvent, &fakePublisher{err: errors.New("broker down")}, nil).OrderPlaced(ctx, testConfirmation())
		NewNotifier(ChannelEvent, nil, nil).OrderPlaced(ctx, testConfirmation())
		NewNotifier(ChannelEmail, nil, &fakeMailer{err: errors.New("smtp down")}).OrderPlaced(ctx, testConfirmation())

		var n *Notifier
		n.OrderPlaced(ctx, testConfirmation())
		n.OrderCancelled(ctx, &models.OrderCancelledEvent{OrderID: 1})
		n.OrderStatusChanged(ctx, &models.OrderStatusChangedEvent{OrderID: 1})
	})

	err := NewNotifier(ChannelEvent, nil, nil).dispatchConfirmation(ctx, testConfirmation())
	assert.ErrorIs(t, err, errNoPublisher)
}
