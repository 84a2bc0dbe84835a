package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/storage"
	"marketplace-service/internal/store"
	"marketplace-service/internal/store/storetest"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	placed    []*models.OrderPlacedEvent
	cancelled []*models.OrderCancelledEvent
	changed   []*models.OrderStatusChangedEvent
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.placed = append(f.placed, event)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, event)
	return nil
}

func (f *fakePublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.changed = append(f.changed, event)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []models.OrderConfirmation
}

func (f *fakeMailer) SendOrderConfirmation(ctx context.Context, c models.OrderConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, c)
	return nil
}

type fixture struct {
	store     *store.Store
	publisher *fakePublisher
	objects   *storage.StubObjectStorage
	guard     *redisclient.MemoryClient

	inventory *InventoryService
	orders    *OrderService
	lifecycle *OrderLifecycle
	cart      *CartService
	catalog   *CatalogService
	vendors   *VendorService
	admin     *AdminService
	accounts  *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := storetest.New(t)
	f := &fixture{
		store:     s,
		publisher: &fakePublisher{},
		objects:   storage.NewStubObjectStorage(),
		guard:     redisclient.NewMemoryClient(),
	}
	notifier := NewNotifier(ChannelEvent, f.publisher, nil)

	f.inventory = NewInventoryService(s)
	f.orders = NewOrderService(s, f.inventory, NewPaymentService(s), f.guard, notifier, config.BusinessConfig{
		DeliveryDays:        5,
		CheckoutLockSeconds: 10,
	})
	f.orders.now = func() time.Time { return fixedNow }
	f.lifecycle = NewOrderLifecycle(s, f.inventory, notifier)
	f.cart = NewCartService(s)
	f.catalog = NewCatalogService(s, 20)
	f.vendors = NewVendorService(s, f.inventory, f.objects, "product-images", 10)
	f.vendors.now = func() time.Time { return fixedNow }
	f.admin = NewAdminService(s)
	f.admin.now = func() time.Time { return fixedNow }
	f.accounts = NewAccountService(s, auth.NewTokenManager(config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Issuer:    "test",
	}))
	return f
}

func principal(u *models.User) models.Principal {
	return models.Principal{UserID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

func adminPrincipal(t *testing.T, s *store.Store) models.Principal {
	t.Helper()
	admin := &models.User{Name: "Admin", Email: "admin@x.com", PasswordHash: "hash", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, s.CreateUser(context.Background(), admin))
	return principal(admin)
}

func inlineAddress() *AddressInput {
	return &AddressInput{
		FullName:    "Ann Buyer",
		Phone:       "555-0100",
		AddressLine: "1 Main St",
		City:        "Springfield",
		State:       "IL",
		ZipCode:     "62701",
	}
}

// shop is a customer with a cart over two products of one vendor
type shop struct {
	customer models.Principal
	vendor   models.Principal
	category *models.Category
	productA *models.Product
	productB *models.Product
}

func newShop(t *testing.T, f *fixture) *shop {
	t.Helper()
	ctx := context.Background()

	category := storetest.Category(t, f.store, "Electronics")
	vendor := storetest.Vendor(t, f.store, "v@x.com", category.ID)
	customer := storetest.Customer(t, f.store, "c@x.com")

	sh := &shop{
		customer: principal(customer),
		vendor:   principal(vendor),
		category: category,
		productA: storetest.Product(t, f.store, vendor, category.ID, "Product A", "10.00", 10),
		productB: storetest.Product(t, f.store, vendor, category.ID, "Product B", "5.00", 10),
	}
	require.NoError(t, f.cart.AddItem(ctx, sh.customer, sh.productA.ID))
	require.NoError(t, f.cart.AddItem(ctx, sh.customer, sh.productA.ID))
	require.NoError(t, f.cart.AddItem(ctx, sh.customer, sh.productB.ID))
	return sh
}

func (sh *shop) place(t *testing.T, f *fixture, method models.PaymentMethod) *models.Order {
	t.Helper()
	order, err := f.orders.PlaceOrder(context.Background(), sh.customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}
