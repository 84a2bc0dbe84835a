package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	s := storetest.New(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestAddCartItemUpserts(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	customer := storetest.Customer(t, s, "c@x.com")
	p := storetest.Product(t, s, vendor, cat.ID, "Go in Action", "10.00", 5)

	require.NoError(t, s.AddCartItem(ctx, customer.ID, p.ID))
	require.NoError(t, s.AddCartItem(ctx, customer.ID, p.ID))

	items, err := s.GetCartItems(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].ProductPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, items[0].Subtotal().Equal(decimal.RequireFromString("20.00")))
}

func TestGetCartItemScopedToUser(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	alice := storetest.Customer(t, s, "alice@x.com")
	bob := storetest.Customer(t, s, "bob@x.com")
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 5)

	require.NoError(t, s.AddCartItem(ctx, alice.ID, p.ID))
	items, err := s.GetCartItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = s.GetCartItem(ctx, items[0].ID, bob.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCartItemQuantityUpdates(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	customer := storetest.Customer(t, s, "c@x.com")
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 5)

	require.NoError(t, s.AddCartItem(ctx, customer.ID, p.ID))
	items, err := s.GetCartItems(ctx, customer.ID)
	require.NoError(t, err)
	id := items[0].ID

	require.NoError(t, s.IncrementCartItem(ctx, id))
	require.NoError(t, s.DecrementCartItem(ctx, id))
	item, err := s.GetCartItem(ctx, id, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)

	require.NoError(t, s.DecrementCartItem(ctx, id))
	_, err = s.GetCartItem(ctx, id, customer.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestDeleteCartItemsKeepsOtherRows(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	alice := storetest.Customer(t, s, "alice@x.com")
	bob := storetest.Customer(t, s, "bob@x.com")
	first := storetest.Product(t, s, vendor, cat.ID, "First", "1.00", 5)
	second := storetest.Product(t, s, vendor, cat.ID, "Second", "2.00", 5)

	require.NoError(t, s.AddCartItem(ctx, alice.ID, first.ID))
	require.NoError(t, s.AddCartItem(ctx, bob.ID, first.ID))
	snapshot, err := s.LockCartItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)

	require.NoError(t, s.AddCartItem(ctx, alice.ID, second.ID))

	bobItems, err := s.GetCartItems(ctx, bob.ID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteCartItems(ctx, alice.ID, []int64{snapshot[0].ID, bobItems[0].ID}))
	require.NoError(t, s.DeleteCartItems(ctx, alice.ID, nil))

	left, err := s.GetCartItems(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, second.ID, left[0].ProductID)

	bobItems, err = s.GetCartItems(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, bobItems, 1, "rows of other users are untouched")
}

func TestDecrementStockNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 3)

	require.NoError(t, s.DecrementStock(ctx, p.ID, 2))
	err := s.DecrementStock(ctx, p.ID, 2)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))
	assert.Equal(t, 1, storetest.Stock(t, s, p.ID))

	require.NoError(t, s.RestoreStock(ctx, p.ID, 2))
	assert.Equal(t, 3, storetest.Stock(t, s, p.ID))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 3)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *store.Store) error {
		require.NoError(t, tx.DecrementStock(ctx, p.ID, 3))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, storetest.Stock(t, s, p.ID))
}

func TestSetStockRecordsAdjustment(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 3)

	adj := &models.StockAdjustment{ProductID: p.ID, ActorID: vendor.ID, StockTo: 10, Reason: "recount"}
	require.NoError(t, s.SetStock(ctx, adj))
	assert.Equal(t, 3, adj.StockFrom)
	assert.Equal(t, 7, adj.Delta)
	assert.Equal(t, 10, storetest.Stock(t, s, p.ID))

	history, err := s.GetStockAdjustments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "recount", history[0].Reason)
	assert.Equal(t, vendor.ID, history[0].ActorID)
}

func TestProductImageSinglePrimary(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	cat := storetest.Category(t, s, "Books")
	vendor := storetest.Vendor(t, s, "v@x.com", cat.ID)
	p := storetest.Product(t, s, vendor, cat.ID, "Book", "1.00", 3)

	first := &models.ProductImage{ProductID: p.ID, URL: "https://cdn/1.png"}
	second := &models.ProductImage{ProductID: p.ID, URL: "https://cdn/2.png"}
	third := &models.ProductImage{ProductID: p.ID, URL: "https://cdn/3.png", IsPrimary: true}
	require.NoError(t, s.AddProductImage(ctx, first))
	require.NoError(t, s.AddProductImage(ctx, second))
	assert.True(t, first.IsPrimary)
	assert.False(t, second.IsPrimary)

	require.NoError(t, s.AddProductImage(ctx, third))
	assertSinglePrimary(t, s, p.ID, third.ID)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/3.png", got.PrimaryImageURL)

	require.NoError(t, s.DeleteProductImage(ctx, p.ID, third.ID))
	assertSinglePrimary(t, s, p.ID, first.ID)

	require.NoError(t, s.SetPrimaryImage(ctx, p.ID, second.ID))
	assertSinglePrimary(t, s, p.ID, second.ID)

	require.NoError(t, s.DeleteProductImage(ctx, p.ID, first.ID))
	assertSinglePrimary(t, s, p.ID, second.ID)
}

func assertSinglePrimary(t *testing.T, s *store.Store, productID, wantID int64) {
	t.Helper()
	images, err := s.GetProductImages(context.Background(), productID)
	require.NoError(t, err)
	primaries := 0
	for _, img := range images {
		if img.IsPrimary {
			primaries++
			assert.Equal(t, wantID, img.ID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestActivateVendorRequiresEmailAndCode(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	code := "ABCDE12345"
	pending := &models.User{Name: "V", Email: "v@x.com", Role: models.RoleSuperAdmin, UniqueCode: &code}
	require.NoError(t, s.CreateUser(ctx, pending))

	ok, err := s.ActivateVendor(ctx, "other@x.com", code, "hash")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ActivateVendor(ctx, "v@x.com", code, "hash")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.GetUserByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.True(t, u.Registered())
	assert.Nil(t, u.UniqueCode)

	ok, err = s.ActivateVendor(ctx, "v@x.com", code, "hash2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListProductsFilters(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	books := storetest.Category(t, s, "Books")
	toys := storetest.Category(t, s, "Toys")
	vendor := storetest.Vendor(t, s, "v@x.com", books.ID, toys.ID)
	storetest.Product(t, s, vendor, books.ID, "Go Programming", "30.00", 1)
	storetest.Product(t, s, vendor, books.ID, "Rust Programming", "20.00", 1)
	storetest.Product(t, s, vendor, toys.ID, "Gopher Plush", "15.00", 1)
	hidden := storetest.Product(t, s, vendor, books.ID, "Old Programming", "5.00", 1)
	require.NoError(t, s.DeactivateProduct(ctx, hidden.ID))

	got, err := s.ListProducts(ctx, store.ProductFilter{ActiveOnly: true, Search: "PROGRAMMING", Sort: store.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Rust Programming", got[0].Name)
	assert.Equal(t, "Go Programming", got[1].Name)
	assert.Equal(t, "Books", got[0].CategoryName)

	got, err = s.ListProducts(ctx, store.ProductFilter{ActiveOnly: true, CategoryID: toys.ID, Sort: store.SortRandom})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Gopher Plush", got[0].Name)

	got, err = s.ListProducts(ctx, store.ProductFilter{OwnerID: vendor.ID, Sort: store.SortNameDesc, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Rust Programming", got[0].Name)
}

func TestTransitionOrderStatusComparesCurrentStatus(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	customer := storetest.Customer(t, s, "c@x.com")

	order := &models.Order{
		CustomerID:           customer.ID,
		TotalAmount:          decimal.RequireFromString("9.99"),
		Status:               models.OrderStatusPending,
		PaymentMethod:        models.PaymentMethodCOD,
		PaymentStatus:        models.PaymentStatusPending,
		ShippingAddress:      "A\nB\nC, D 1",
		ExpectedDeliveryDate: time.Now().UTC().AddDate(0, 0, 5),
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	ok, err := s.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetOrderForCustomer(ctx, order.ID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("9.99")))
}

func TestCreateOrderRejectsDuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	customer := storetest.Customer(t, s, "c@x.com")
	key := "checkout-1"

	newOrder := func() *models.Order {
		return &models.Order{
			CustomerID:           customer.ID,
			TotalAmount:          decimal.NewFromInt(1),
			Status:               models.OrderStatusPending,
			PaymentMethod:        models.PaymentMethodCOD,
			PaymentStatus:        models.PaymentStatusPending,
			ShippingAddress:      "addr",
			IdempotencyKey:       &key,
			ExpectedDeliveryDate: time.Now().UTC(),
		}
	}
	first := newOrder()
	require.NoError(t, s.CreateOrder(ctx, first))

	err := s.CreateOrder(ctx, newOrder())
	assert.True(t, errors.Is(err, models.ErrConflict))

	found, err := s.GetOrderByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	missing, err := s.GetOrderByIdempotencyKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProcessedEvents(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	done, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderPlaced))
	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderPlaced))

	done, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, done)
}
