package service

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// OrderLifecycle moves placed orders through pending -> processing -> shipped -> delivered,
// and compensates stock when a customer cancels
type OrderLifecycle struct {
	store     *store.Store
	inventory *InventoryService
	notifier  *Notifier
	logger    *zap.Logger
}

// NewOrderLifecycle creates a new order lifecycle
func NewOrderLifecycle(store *store.Store, inventory *InventoryService, notifier *Notifier) *OrderLifecycle {
	return &OrderLifecycle{
		store:     store,
		inventory: inventory,
		notifier:  notifier,
		logger:    util.GetLogger(),
	}
}

// CancelOrder cancels one of the caller's pending or processing orders and restores the stock
// of every item. The status change and the restocking commit together.
func (ol *OrderLifecycle) CancelOrder(ctx context.Context, p models.Principal, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.CancelOrder")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	order, err := ol.store.GetOrderForCustomer(ctx, orderID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, models.NewError(models.KindInvalidTransition, "order %d cannot be cancelled in status %s", orderID, order.Status)
	}

	items, err := ol.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	from := order.Status
	restocked := make([]models.StockMovement, 0, len(items))
	err = ol.store.WithTx(ctx, func(tx *store.Store) error {
		ok, err := tx.TransitionOrderStatus(ctx, orderID, from, models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewError(models.KindInvalidTransition, "order %d changed status concurrently", orderID)
		}
		for _, item := range items {
			if err := ol.inventory.release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
			restocked = append(restocked, models.StockMovement{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	ol.logger.Info("Order cancelled and restocked",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.Int("items", len(items)))

	ol.notifier.OrderCancelled(ctx, &models.OrderCancelledEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:    orderID,
		CustomerID: p.UserID,
		Restocked:  restocked,
	})

	order.Status = models.OrderStatusCancelled
	order.Items = items
	return order, nil
}

// UpdateOrderStatus advances an order to processing, shipped or delivered.
// Vendors may only touch orders containing one of their products. Stock is never affected.
func (ol *OrderLifecycle) UpdateOrderStatus(ctx context.Context, p models.Principal, orderID int64, status string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderLifecycle.UpdateOrderStatus")
	defer span.End()

	if err := p.Require(models.CapUpdateOrderStatus); err != nil {
		return nil, err
	}
	target := models.OrderStatus(status)
	if !target.VendorSettable() {
		return nil, models.NewError(models.KindValidation, "invalid order status %q", status)
	}

	if p.Role.Can(models.CapSell) {
		ok, err := ol.store.OrderHasVendorProduct(ctx, orderID, p.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewError(models.KindNotFound, "order not found: %d", orderID)
		}
	}

	order, err := ol.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanAdvanceTo(target) {
		return nil, models.NewError(models.KindInvalidTransition,
			"order %d cannot move from %s to %s", orderID, order.Status, target)
	}

	from := order.Status
	ok, err := ol.store.TransitionOrderStatus(ctx, orderID, from, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewError(models.KindInvalidTransition, "order %d changed status concurrently", orderID)
	}

	util.OrderStatusUpdatesTotal.WithLabelValues(string(target)).Inc()
	ol.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("changed_by", p.UserID.String()))

	ol.notifier.OrderStatusChanged(ctx, &models.OrderStatusChangedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		From:      from,
		To:        target,
		ChangedBy: p.UserID,
	})

	order.Status = target
	return order, nil
}
