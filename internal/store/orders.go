package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `o.id, o.customer_id, o.total_amount, o.status, o.payment_method, o.payment_status,
	o.shipping_address, o.phone, o.idempotency_key, o.created_at, o.updated_at, o.expected_delivery_date`

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, total_amount, status, payment_method, payment_status,
			shipping_address, phone, idempotency_key, created_at, updated_at, expected_delivery_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = now()
	}
	order.UpdatedAt = order.CreatedAt

	id, err := s.insertReturningID(ctx, query,
		order.CustomerID, order.TotalAmount, order.Status, order.PaymentMethod, order.PaymentStatus,
		order.ShippingAddress, order.Phone, order.IdempotencyKey, order.CreatedAt, order.UpdatedAt,
		order.ExpectedDeliveryDate)
	if err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindConflict, err, "order already placed for this idempotency key")
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID = id
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders o WHERE o.id = ?", id)
	if err != nil {
		return nil, notFound(err, "order not found: %d", id)
	}
	return &order, nil
}

// GetOrderForCustomer retrieves an order only if it belongs to the customer
func (s *Store) GetOrderForCustomer(ctx context.Context, id int64, customerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order,
		"SELECT "+orderColumns+" FROM orders o WHERE o.id = ? AND o.customer_id = ?", id, customerID)
	if err != nil {
		return nil, notFound(err, "order not found: %d", id)
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key, nil if none
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.get(ctx, &order, "SELECT "+orderColumns+" FROM orders o WHERE o.idempotency_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionOrderStatus moves an order from one status to another.
// It returns false when the order is no longer in the expected status.
func (s *Store) TransitionOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error) {
	n, err := s.execAffected(ctx,
		"UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, now(), orderID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return n == 1, nil
}

// GetOrdersByCustomerID retrieves orders for a customer, newest first
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders o WHERE o.customer_id = ? ORDER BY o.created_at DESC, o.id DESC", customerID)
	return orders, err
}

// GetOrdersForVendor retrieves orders containing at least one of the vendor's products, newest first
func (s *Store) GetOrdersForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.selectAll(ctx, &orders, `
		SELECT `+orderColumns+` FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items oi JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.owner_id = ?
		)
		ORDER BY o.created_at DESC, o.id DESC`, vendorID)
	return orders, err
}

// GetRecentOrders retrieves the latest orders across all customers
func (s *Store) GetRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders o ORDER BY o.created_at DESC, o.id DESC LIMIT ?", limit)
	return orders, err
}

// OrderHasVendorProduct reports whether any item of the order is owned by the vendor
func (s *Store) OrderHasVendorProduct(ctx context.Context, orderID int64, vendorID uuid.UUID) (bool, error) {
	return s.exists(ctx, `
		SELECT oi.id FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ? AND p.owner_id = ?`, orderID, vendorID)
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price, product_name)
		VALUES (?, ?, ?, ?, ?)`

	id, err := s.insertReturningID(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price, item.ProductName)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	item.ID = id
	return nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.selectAll(ctx, &items,
		"SELECT id, order_id, product_id, quantity, price, product_name FROM order_items WHERE order_id = ? ORDER BY id",
		orderID)
	return items, err
}

// GetOrderItemsByOrderIDs retrieves items for several orders keyed by order id
func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	out := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		"SELECT id, order_id, product_id, quantity, price, product_name FROM order_items WHERE order_id IN (?) ORDER BY id",
		orderIDs)
	if err != nil {
		return nil, err
	}

	var items []models.OrderItem
	if err := s.selectAll(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, nil
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, payment_method, transaction_id, payment_status, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now()
	}
	id, err := s.insertReturningID(ctx, query,
		payment.OrderID, payment.PaymentMethod, payment.TransactionID, payment.PaymentStatus,
		payment.Amount, payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	payment.ID = id
	return nil
}

// GetPaymentByOrderID retrieves payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.get(ctx, &payment, `
		SELECT id, order_id, payment_method, transaction_id, payment_status, amount, created_at
		FROM payments WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, notFound(err, "payment not found for order: %d", orderID)
	}
	return &payment, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.exists(ctx, "SELECT event_id FROM processed_events WHERE event_id = ?", eventID)
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.exec(ctx,
		"INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType, now())
	return err
}
