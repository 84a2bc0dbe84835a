package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event envelope
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OrderConfirmation is the payload handed to the notification collaborator
type OrderConfirmation struct {
	CustomerName         string             `json:"customer_name"`
	CustomerEmail        string             `json:"customer_email"`
	OrderID              int64              `json:"order_id"`
	OrderDate            time.Time          `json:"order_date"`
	TotalAmount          decimal.Decimal    `json:"total_amount"`
	PaymentMethod        PaymentMethod      `json:"payment_method"`
	ShippingAddress      string             `json:"shipping_address"`
	ExpectedDeliveryDate time.Time          `json:"expected_delivery_date"`
	Items                []ConfirmationItem `json:"items"`
}

// ConfirmationItem is one line of an order confirmation
type ConfirmationItem struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderPlacedEvent published after an order commits
type OrderPlacedEvent struct {
	BaseEvent
	Confirmation OrderConfirmation `json:"confirmation"`
}

// OrderCancelledEvent published when a customer cancels
type OrderCancelledEvent struct {
	BaseEvent
	OrderID    int64           `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Restocked  []StockMovement `json:"restocked"`
}

// OrderStatusChangedEvent published when a vendor or admin advances an order
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64       `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedBy uuid.UUID   `json:"changed_by"`
}

// StockMovement is a quantity moved for a product
type StockMovement struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
