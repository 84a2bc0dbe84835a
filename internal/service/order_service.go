package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyTTL = 24 * time.Hour

// OrderService handles order placement and order queries
type OrderService struct {
	store     *store.Store
	inventory *InventoryService
	payments  *PaymentService
	guard     CheckoutGuard
	notifier  *Notifier
	business  config.BusinessConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service. guard and notifier may be nil.
func NewOrderService(
	store *store.Store,
	inventory *InventoryService,
	payments *PaymentService,
	guard CheckoutGuard,
	notifier *Notifier,
	business config.BusinessConfig,
) *OrderService {
	if business.DeliveryDays <= 0 {
		business.DeliveryDays = 5
	}
	if business.CheckoutLockSeconds <= 0 {
		business.CheckoutLockSeconds = 10
	}
	return &OrderService{
		store:     store,
		inventory: inventory,
		payments:  payments,
		guard:     guard,
		notifier:  notifier,
		business:  business,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// PlaceOrderRequest represents a checkout submission.
// Either AddressID selects a saved address or Address carries the inline fields.
type PlaceOrderRequest struct {
	AddressID      int64                `json:"address_id"`
	Address        *AddressInput        `json:"address"`
	SaveAddress    bool                 `json:"save_address"`
	PaymentMethod  models.PaymentMethod `json:"payment_method" validate:"required,oneof=cod online"`
	IdempotencyKey string               `json:"idempotency_key" validate:"max=100"`
}

// CheckoutView is what a customer reviews before placing an order
type CheckoutView struct {
	Items     []models.CartItem `json:"items"`
	Total     decimal.Decimal   `json:"total"`
	Addresses []models.Address  `json:"addresses"`
}

// Checkout returns the caller's cart, its total and saved addresses
func (s *OrderService) Checkout(ctx context.Context, p models.Principal) (*CheckoutView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	items, err := s.store.GetCartItems(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.NewError(models.KindValidation, "cart is empty")
	}
	addresses, err := s.store.GetAddresses(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return &CheckoutView{Items: items, Total: cartTotal(items), Addresses: addresses}, nil
}

// PlaceOrder converts the caller's cart into an order. Order, items, stock decrements, payment,
// optional address and cart clear commit together or not at all. The confirmation is sent after commit.
func (s *OrderService) PlaceOrder(ctx context.Context, p models.Principal, req PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.PlaceOrderLatency.Observe(time.Since(start).Seconds())
	}()

	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.findIdempotentOrder(ctx, p, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", existing.ID))
			return existing, nil
		}
	}

	release, err := s.lockCheckout(ctx, p)
	if err != nil {
		return nil, err
	}
	defer release()

	preview, err := s.store.GetCartItems(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := checkCart(preview); err != nil {
		util.OrdersFailedTotal.WithLabelValues(string(models.KindOf(err))).Inc()
		if models.KindOf(err) == models.KindInsufficientStock {
			util.StockRejectionsTotal.Inc()
		}
		return nil, err
	}

	addr, err := s.resolveAddress(ctx, p, req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("address").Inc()
		return nil, err
	}

	createdAt := s.now().UTC()
	order := &models.Order{
		CustomerID:           p.UserID,
		Status:               models.OrderStatusPending,
		PaymentMethod:        req.PaymentMethod,
		PaymentStatus:        models.PaymentStatusPending,
		ShippingAddress:      ShippingText(addr),
		Phone:                addr.Phone,
		CreatedAt:            createdAt,
		ExpectedDeliveryDate: createdAt.AddDate(0, 0, s.business.DeliveryDays),
	}
	if req.PaymentMethod == models.PaymentMethodOnline {
		order.PaymentStatus = models.PaymentStatusPaid
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}

	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		// The rows ordered are the rows deleted. Stock is enforced by the conditional decrement.
		items, err := tx.LockCartItems(ctx, p.UserID)
		if err != nil {
			return err
		}
		if err := checkCartRows(items); err != nil {
			return err
		}

		order.TotalAmount = cartTotal(items)
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		order.Items = make([]models.OrderItem, 0, len(items))
		ordered := make([]int64, 0, len(items))
		for _, ci := range items {
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   ci.ProductID,
				Quantity:    ci.Quantity,
				Price:       ci.ProductPrice,
				ProductName: ci.ProductName,
			}
			if err := tx.CreateOrderItem(ctx, &item); err != nil {
				return err
			}
			if err := s.inventory.reserve(ctx, tx, ci.ProductID, ci.Quantity); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
			ordered = append(ordered, ci.ID)
		}

		payment, err := s.payments.recordPayment(ctx, tx, order)
		if err != nil {
			return err
		}
		order.Payment = payment

		if req.SaveAddress && req.AddressID == 0 {
			if err := tx.CreateAddress(ctx, addr); err != nil {
				return err
			}
		}
		return tx.DeleteCartItems(ctx, p.UserID, ordered)
	})
	if err != nil {
		if req.IdempotencyKey != "" && models.KindOf(err) == models.KindConflict {
			if existing, lookupErr := s.findIdempotentOrder(ctx, p, req.IdempotencyKey); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		reason := string(models.KindOf(err))
		if reason == "" {
			reason = "db_error"
		}
		if models.KindOf(err) == models.KindInsufficientStock {
			util.StockRejectionsTotal.Inc()
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(string(order.PaymentMethod)).Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("customer_id", p.UserID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
		zap.String("payment_method", string(order.PaymentMethod)))

	if order.IdempotencyKey != nil && s.guard != nil {
		if err := s.guard.RememberOrder(ctx, *order.IdempotencyKey, order.ID, idempotencyTTL); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	s.notifier.OrderPlaced(ctx, s.confirmation(ctx, p, order))
	return order, nil
}

// checkCartRows rejects an empty cart and rows whose product was withdrawn
func checkCartRows(items []models.CartItem) error {
	if len(items) == 0 {
		return models.NewError(models.KindValidation, "cart is empty")
	}
	for _, ci := range items {
		if !ci.ProductActive {
			return models.NewError(models.KindNotFound, "product %q is no longer available", ci.ProductName)
		}
	}
	return nil
}

// checkCart runs checkCartRows and compares every row against the stock it was read with
func checkCart(items []models.CartItem) error {
	if err := checkCartRows(items); err != nil {
		return err
	}
	for _, ci := range items {
		if ci.ProductStock < ci.Quantity {
			return models.NewError(models.KindInsufficientStock,
				"insufficient stock for %q: requested %d, available %d", ci.ProductName, ci.Quantity, ci.ProductStock)
		}
	}
	return nil
}

func (s *OrderService) resolveAddress(ctx context.Context, p models.Principal, req PlaceOrderRequest) (*models.Address, error) {
	if req.AddressID != 0 {
		return s.store.GetAddress(ctx, req.AddressID, p.UserID)
	}
	if req.Address == nil {
		return nil, models.NewError(models.KindValidation, "a saved address or shipping address fields are required")
	}
	if err := validateRequest(*req.Address); err != nil {
		return nil, err
	}
	return req.Address.toAddress(p), nil
}

// ShippingText renders the address snapshot stored on an order
func ShippingText(a *models.Address) string {
	return fmt.Sprintf("%s\n%s\n%s, %s %s", a.FullName, a.AddressLine, a.City, a.State, a.ZipCode)
}

func (s *OrderService) findIdempotentOrder(ctx context.Context, p models.Principal, key string) (*models.Order, error) {
	if s.guard != nil {
		id, ok, err := s.guard.LookupOrder(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency cache lookup failed, falling back to DB", zap.Error(err))
		} else if ok {
			order, err := s.store.GetOrderForCustomer(ctx, id, p.UserID)
			if err == nil {
				return s.attachDetails(ctx, order)
			}
			if models.KindOf(err) != models.KindNotFound {
				return nil, err
			}
		}
	}

	order, err := s.store.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	if order.CustomerID != p.UserID {
		return nil, models.NewError(models.KindConflict, "idempotency key already used")
	}
	return s.attachDetails(ctx, order)
}

// lockCheckout takes the per-user checkout lock. A guard failure degrades to proceeding unlocked.
func (s *OrderService) lockCheckout(ctx context.Context, p models.Principal) (func(), error) {
	noop := func() {}
	if s.guard == nil {
		return noop, nil
	}

	key := "checkout:" + p.UserID.String()
	ttl := time.Duration(s.business.CheckoutLockSeconds) * time.Second
	token, ok, err := s.guard.AcquireLock(ctx, key, ttl)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable, proceeding without it",
			zap.String("user_id", p.UserID.String()),
			zap.Error(err))
		return noop, nil
	}
	if !ok {
		util.CheckoutLockContendedTotal.Inc()
		return nil, models.NewError(models.KindConflict, "another checkout is already in progress")
	}

	return func() {
		if err := s.guard.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.Error(err))
		}
	}, nil
}

func (s *OrderService) confirmation(ctx context.Context, p models.Principal, order *models.Order) models.OrderConfirmation {
	c := models.OrderConfirmation{
		CustomerName:         p.Name,
		CustomerEmail:        p.Email,
		OrderID:              order.ID,
		OrderDate:            order.CreatedAt,
		TotalAmount:          order.TotalAmount,
		PaymentMethod:        order.PaymentMethod,
		ShippingAddress:      order.ShippingAddress,
		ExpectedDeliveryDate: order.ExpectedDeliveryDate,
		Items:                make([]models.ConfirmationItem, 0, len(order.Items)),
	}
	if u, err := s.store.GetUserByID(ctx, p.UserID); err == nil {
		c.CustomerName = u.Name
		c.CustomerEmail = u.Email
	}
	for _, item := range order.Items {
		c.Items = append(c.Items, models.ConfirmationItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return c
}

// ListOrders returns the caller's orders, newest first, with their items
func (s *OrderService) ListOrders(ctx context.Context, p models.Principal) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	orders, err := s.store.GetOrdersByCustomerID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// VendorOrders returns orders containing at least one of the vendor's products
func (s *OrderService) VendorOrders(ctx context.Context, p models.Principal) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.VendorOrders")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	orders, err := s.store.GetOrdersForVendor(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// GetOrder returns one order with items and payment. Customers see their own orders,
// vendors see orders containing their products and admins see every order.
func (s *OrderService) GetOrder(ctx context.Context, p models.Principal, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	var (
		order *models.Order
		err   error
	)
	switch {
	case p.UserID == uuid.Nil:
		return nil, models.ErrUnauthenticated
	case p.Role.Can(models.CapShop):
		order, err = s.store.GetOrderForCustomer(ctx, orderID, p.UserID)
	case p.Role.Can(models.CapSell):
		order, err = s.vendorOrder(ctx, p, orderID)
	case p.Role.Can(models.CapViewAnalytics):
		order, err = s.store.GetOrderByID(ctx, orderID)
	default:
		return nil, models.ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}
	return s.attachDetails(ctx, order)
}

func (s *OrderService) vendorOrder(ctx context.Context, p models.Principal, orderID int64) (*models.Order, error) {
	ok, err := s.store.OrderHasVendorProduct(ctx, orderID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewError(models.KindNotFound, "order not found: %d", orderID)
	}
	return s.store.GetOrderByID(ctx, orderID)
}

func (s *OrderService) attachDetails(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	payment, err := s.payments.GetPayment(ctx, order.ID)
	if err != nil && models.KindOf(err) != models.KindNotFound {
		return nil, err
	}
	order.Payment = payment
	return order, nil
}

func (s *OrderService) attachItems(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	byOrder, err := s.store.GetOrderItemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}
	return orders, nil
}
