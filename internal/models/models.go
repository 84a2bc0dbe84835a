package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category groups products and scopes vendor access
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Product represents a sellable item owned by a vendor
type Product struct {
	ID              int64               `db:"id" json:"id"`
	Name            string              `db:"name" json:"name"`
	Description     string              `db:"description" json:"description"`
	Price           decimal.Decimal     `db:"price" json:"price"`
	OriginalPrice   decimal.NullDecimal `db:"original_price" json:"original_price"`
	Stock           int                 `db:"stock" json:"stock"`
	CategoryID      int64               `db:"category_id" json:"category_id"`
	OwnerID         uuid.UUID           `db:"owner_id" json:"owner_id"`
	Brand           string              `db:"brand" json:"brand,omitempty"`
	Dimensions      string              `db:"dimensions" json:"dimensions,omitempty"`
	Ratings         decimal.Decimal     `db:"ratings" json:"ratings"`
	NumRatings      int                 `db:"num_ratings" json:"num_ratings"`
	SalesCount      int                 `db:"sales_count" json:"sales_count"`
	IsActive        bool                `db:"is_active" json:"is_active"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	PrimaryImageURL string              `db:"primary_image_url" json:"primary_image_url,omitempty"`
	CategoryName    string              `db:"category_name" json:"category_name,omitempty"`

	Images []ProductImage `db:"-" json:"images,omitempty"`
}

// ProductImage is an uploaded image attached to a product
type ProductImage struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	URL       string    `db:"url" json:"url"`
	IsPrimary bool      `db:"is_primary" json:"is_primary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User is a customer, vendor or admin account
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	UniqueCode   *string   `db:"unique_code" json:"unique_code,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Categories []Category `db:"-" json:"categories,omitempty"`
}

// Registered reports whether the account has a password credential
func (u *User) Registered() bool {
	return u.PasswordHash != ""
}

// CartItem is one (user, product) row of a shopping cart
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	ProductName   string          `db:"product_name" json:"product_name"`
	ProductPrice  decimal.Decimal `db:"product_price" json:"product_price"`
	ProductStock  int             `db:"product_stock" json:"product_stock"`
	ProductActive bool            `db:"product_active" json:"-"`
}

// Subtotal returns price times quantity for the row
func (c *CartItem) Subtotal() decimal.Decimal {
	return c.ProductPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// WishlistItem is one (user, product) wishlist row
type WishlistItem struct {
	ID        int64     `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	ProductName  string          `db:"product_name" json:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price" json:"product_price"`
}

// Address is a saved shipping address
type Address struct {
	ID          int64     `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Label       string    `db:"label" json:"label"`
	FullName    string    `db:"full_name" json:"full_name"`
	Phone       string    `db:"phone" json:"phone"`
	AddressLine string    `db:"address_line" json:"address_line"`
	City        string    `db:"city" json:"city"`
	State       string    `db:"state" json:"state"`
	ZipCode     string    `db:"zip_code" json:"zip_code"`
	IsDefault   bool      `db:"is_default" json:"is_default"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order represents a placed customer order
type Order struct {
	ID                   int64           `db:"id" json:"id"`
	CustomerID           uuid.UUID       `db:"customer_id" json:"customer_id"`
	TotalAmount          decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status               OrderStatus     `db:"status" json:"status"`
	PaymentMethod        PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus        PaymentStatus   `db:"payment_status" json:"payment_status"`
	ShippingAddress      string          `db:"shipping_address" json:"shipping_address"`
	Phone                string          `db:"phone" json:"phone"`
	IdempotencyKey       *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
	ExpectedDeliveryDate time.Time       `db:"expected_delivery_date" json:"expected_delivery_date"`

	Items   []OrderItem `db:"-" json:"items,omitempty"`
	Payment *Payment    `db:"-" json:"payment,omitempty"`
}

// OrderItem is the frozen price/quantity snapshot of one product in an order
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ProductName string          `db:"product_name" json:"product_name"`
}

// Payment represents the payment record of an order
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	OrderID       int64           `db:"order_id" json:"order_id"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// StockAdjustment records a manual stock correction by a vendor
type StockAdjustment struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product_id"`
	ActorID   uuid.UUID `db:"actor_id" json:"actor_id"`
	Delta     int       `db:"delta" json:"delta"`
	StockFrom int       `db:"stock_from" json:"stock_from"`
	StockTo   int       `db:"stock_to" json:"stock_to"`
	Reason    string    `db:"reason" json:"reason"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OrderStatus is the fulfillment state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

// Terminal reports whether no transition leaves the status
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Cancellable reports whether an order in this status may be cancelled
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// CanAdvanceTo reports whether a vendor may move an order from s to next.
// Only forward moves along pending -> processing -> shipped -> delivered are legal.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// VendorSettable reports whether the status is a legal target of a vendor status update
func (s OrderStatus) VendorSettable() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// PaymentMethod selects how an order is paid
type PaymentMethod string

// Payment methods
const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// Valid reports whether the method is known
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

// PaymentStatus is the settlement state of a payment
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// DefaultCategories is the taxonomy seeded on first run
var DefaultCategories = []string{
	"Electronics", "Books", "Clothing", "Home & Kitchen", "Beauty & Personal Care",
	"Sports & Outdoors", "Toys & Games", "Automotive", "Pet Supplies", "Health & Household",
	"Movies & TV", "Music", "Video Games", "Garden & Outdoor", "Baby Products",
	"Office Products", "Industrial & Scientific", "Handmade", "Collectibles & Fine Art",
}
