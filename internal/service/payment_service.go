package service

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// PaymentService records the payment of an order. Online payments are settled at checkout
// by the provider before the order is placed, so the record is written as already paid.
type PaymentService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store *store.Store) *PaymentService {
	return &PaymentService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// TransactionID synthesises the provider transaction id of an online payment
func TransactionID(order *models.Order) string {
	return fmt.Sprintf("TXN%d%s", order.ID, order.CreatedAt.UTC().Format("20060102150405"))
}

// recordPayment writes the payment mirroring the order inside the caller's transaction
func (ps *PaymentService) recordPayment(ctx context.Context, tx *store.Store, order *models.Order) (*models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.recordPayment")
	defer span.End()

	payment := &models.Payment{
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Amount:        order.TotalAmount,
		CreatedAt:     order.CreatedAt,
	}
	if order.PaymentMethod == models.PaymentMethodOnline {
		txID := TransactionID(order)
		payment.TransactionID = &txID
	}

	if err := tx.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	util.PaymentsRecordedTotal.WithLabelValues(string(payment.PaymentMethod), string(payment.PaymentStatus)).Inc()
	ps.logger.Info("Payment recorded",
		zap.Int64("order_id", order.ID),
		zap.String("method", string(payment.PaymentMethod)),
		zap.String("status", string(payment.PaymentStatus)))
	return payment, nil
}

// GetPayment retrieves payment for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID int64) (*models.Payment, error) {
	return ps.store.GetPaymentByOrderID(ctx, orderID)
}
