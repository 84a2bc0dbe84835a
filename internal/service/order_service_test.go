package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderCashOnDelivery(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	order := sh.place(t, f, models.PaymentMethodCOD)

	assert.True(t, decimal.RequireFromString("25.00").Equal(order.TotalAmount), "total %s", order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, fixedNow.AddDate(0, 0, 5), order.ExpectedDeliveryDate)
	assert.Equal(t, "Ann Buyer\n1 Main St\nSpringfield, IL 62701", order.ShippingAddress)

	stored, err := f.orders.GetOrder(ctx, sh.customer, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)

	prices := map[int64]decimal.Decimal{}
	sum := decimal.Zero
	for _, item := range stored.Items {
		prices[item.ProductID] = item.Price
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, decimal.RequireFromString("10.00").Equal(prices[sh.productA.ID]))
	assert.True(t, decimal.RequireFromString("5.00").Equal(prices[sh.productB.ID]))
	assert.True(t, sum.Equal(stored.TotalAmount), "items sum to the order total")

	require.NotNil(t, stored.Payment)
	assert.Equal(t, models.PaymentStatusPending, stored.Payment.PaymentStatus)
	assert.Nil(t, stored.Payment.TransactionID)
	assert.True(t, stored.TotalAmount.Equal(stored.Payment.Amount))

	assert.Equal(t, 8, storetest.Stock(t, f.store, sh.productA.ID))
	assert.Equal(t, 9, storetest.Stock(t, f.store, sh.productB.ID))

	items, err := f.cart.Items(ctx, sh.customer)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.Len(t, f.publisher.placed, 1)
	confirmation := f.publisher.placed[0].Confirmation
	assert.Equal(t, order.ID, confirmation.OrderID)
	assert.Equal(t, "c@x.com", confirmation.CustomerEmail)
	assert.Len(t, confirmation.Items, 2)
}

func TestPlaceOrderOnlinePaymentIsPaid(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)

	order := sh.place(t, f, models.PaymentMethodOnline)

	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.Payment)
	require.NotNil(t, order.Payment.TransactionID)
	assert.Equal(t, TransactionID(order), *order.Payment.TransactionID)
	assert.Regexp(t, `^TXN\d+20260310123000$`, *order.Payment.TransactionID)
}

func TestPlaceOrderInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	_, err := f.inventory.AdjustStock(ctx, sh.vendor, sh.productA.ID, AdjustStockRequest{Stock: 1, Reason: "recount"})
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, sh.customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))

	assert.Equal(t, 1, storetest.Stock(t, f.store, sh.productA.ID))
	assert.Equal(t, 10, storetest.Stock(t, f.store, sh.productB.ID))

	orders, err := f.orders.ListOrders(ctx, sh.customer)
	require.NoError(t, err)
	assert.Empty(t, orders)

	items, err := f.cart.Items(ctx, sh.customer)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Empty(t, f.publisher.placed)
}

func TestPlaceOrderRollsBackWhenStockRunsOutDuringCheckout(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	// Product B sells out after the cart was checked and before the order is written.
	f.orders.now = func() time.Time {
		_, err := f.inventory.AdjustStock(ctx, sh.vendor, sh.productB.ID, AdjustStockRequest{Stock: 0, Reason: "damaged"})
		require.NoError(t, err)
		return fixedNow
	}

	_, err := f.orders.PlaceOrder(ctx, sh.customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))

	assert.Equal(t, 10, storetest.Stock(t, f.store, sh.productA.ID), "the first decrement is rolled back")
	assert.Equal(t, 0, storetest.Stock(t, f.store, sh.productB.ID))

	orders, err := f.orders.ListOrders(ctx, sh.customer)
	require.NoError(t, err)
	assert.Empty(t, orders)

	items, err := f.cart.Items(ctx, sh.customer)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Empty(t, f.publisher.placed)
}

func TestPlaceOrderOrdersRowsAddedDuringCheckout(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	vendor, err := f.store.GetUserByID(ctx, sh.vendor.UserID)
	require.NoError(t, err)
	productC := storetest.Product(t, f.store, vendor, sh.category.ID, "Product C", "7.00", 10)

	f.orders.now = func() time.Time {
		require.NoError(t, f.cart.AddItem(ctx, sh.customer, productC.ID))
		return fixedNow
	}

	order := sh.place(t, f, models.PaymentMethodCOD)
	require.Len(t, order.Items, 3)
	assert.True(t, decimal.RequireFromString("32.00").Equal(order.TotalAmount), "total %s", order.TotalAmount)
	assert.Equal(t, 9, storetest.Stock(t, f.store, productC.ID))

	items, err := f.cart.Items(ctx, sh.customer)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlaceOrderFreezesPrices(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	order := sh.place(t, f, models.PaymentMethodCOD)

	_, err := f.vendors.UpdateProduct(ctx, sh.vendor, sh.productA.ID, ProductInput{
		Name:       "Product A",
		Price:      decimal.RequireFromString("99.99"),
		Stock:      8,
		CategoryID: sh.category.ID,
	})
	require.NoError(t, err)

	stored, err := f.orders.GetOrder(ctx, sh.customer, order.ID)
	require.NoError(t, err)
	for _, item := range stored.Items {
		if item.ProductID == sh.productA.ID {
			assert.True(t, decimal.RequireFromString("10.00").Equal(item.Price))
		}
	}
	assert.True(t, decimal.RequireFromString("25.00").Equal(stored.TotalAmount))
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	missingCity := inlineAddress()
	missingCity.City = ""

	tests := []struct {
		name string
		req  PlaceOrderRequest
		kind models.ErrorKind
	}{
		{"no address", PlaceOrderRequest{PaymentMethod: models.PaymentMethodCOD}, models.KindValidation},
		{"incomplete address", PlaceOrderRequest{Address: missingCity, PaymentMethod: models.PaymentMethodCOD}, models.KindValidation},
		{"unknown payment method", PlaceOrderRequest{Address: inlineAddress(), PaymentMethod: "card"}, models.KindValidation},
		{"missing payment method", PlaceOrderRequest{Address: inlineAddress()}, models.KindValidation},
		{"foreign saved address", PlaceOrderRequest{AddressID: 999, PaymentMethod: models.PaymentMethodCOD}, models.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(ctx, sh.customer, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))
		})
	}

	assert.Equal(t, 10, storetest.Stock(t, f.store, sh.productA.ID))
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	customer := principal(storetest.Customer(t, f.store, "empty@x.com"))

	_, err := f.orders.PlaceOrder(context.Background(), customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestPlaceOrderRequiresCustomer(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)

	_, err := f.orders.PlaceOrder(context.Background(), sh.vendor, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	assert.True(t, errors.Is(err, models.ErrPermissionDenied))

	_, err = f.orders.PlaceOrder(context.Background(), models.Principal{}, PlaceOrderRequest{})
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))
}

func TestPlaceOrderWithSavedAddress(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	addr, err := f.cart.SaveAddress(ctx, sh.customer, *inlineAddress())
	require.NoError(t, err)

	order, err := f.orders.PlaceOrder(ctx, sh.customer, PlaceOrderRequest{
		AddressID:     addr.ID,
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.NoError(t, err)
	assert.Equal(t, ShippingText(addr), order.ShippingAddress)
	assert.Equal(t, "555-0100", order.Phone)
}

func TestPlaceOrderSavesInlineAddress(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	_, err := f.orders.PlaceOrder(ctx, sh.customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		SaveAddress:   true,
		PaymentMethod: models.PaymentMethodCOD,
	})
	require.NoError(t, err)

	addresses, err := f.cart.Addresses(ctx, sh.customer)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "Home", addresses[0].Label)
	assert.Equal(t, "Springfield", addresses[0].City)
}

func TestPlaceOrderIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	req := PlaceOrderRequest{
		Address:        inlineAddress(),
		PaymentMethod:  models.PaymentMethodCOD,
		IdempotencyKey: "checkout-1",
	}
	first, err := f.orders.PlaceOrder(ctx, sh.customer, req)
	require.NoError(t, err)

	second, err := f.orders.PlaceOrder(ctx, sh.customer, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Items, 2)

	assert.Equal(t, 8, storetest.Stock(t, f.store, sh.productA.ID))
	orders, err := f.orders.ListOrders(ctx, sh.customer)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPlaceOrderIdempotencyKeyFallsBackToStore(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	req := PlaceOrderRequest{
		Address:        inlineAddress(),
		PaymentMethod:  models.PaymentMethodCOD,
		IdempotencyKey: "checkout-2",
	}
	first, err := f.orders.PlaceOrder(ctx, sh.customer, req)
	require.NoError(t, err)

	f.orders.guard = nil
	second, err := f.orders.PlaceOrder(ctx, sh.customer, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other := principal(storetest.Customer(t, f.store, "other@x.com"))
	_, err = f.orders.PlaceOrder(ctx, other, req)
	assert.True(t, errors.Is(err, models.ErrConflict))
}

func TestPlaceOrderRejectsConcurrentCheckout(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	_, ok, err := f.guard.AcquireLock(ctx, "checkout:"+sh.customer.UserID.String(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.orders.PlaceOrder(ctx, sh.customer, PlaceOrderRequest{
		Address:       inlineAddress(),
		PaymentMethod: models.PaymentMethodCOD,
	})
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Equal(t, 10, storetest.Stock(t, f.store, sh.productA.ID))
}

func TestPlaceOrderSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	f.publisher.err = errors.New("broker down")

	order := sh.place(t, f, models.PaymentMethodCOD)

	assert.NotZero(t, order.ID)
	assert.Equal(t, 8, storetest.Stock(t, f.store, sh.productA.ID))
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()

	view, err := f.orders.Checkout(ctx, sh.customer)
	require.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.True(t, decimal.RequireFromString("25").Equal(view.Total))

	sh.place(t, f, models.PaymentMethodCOD)
	_, err = f.orders.Checkout(ctx, sh.customer)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestOrderVisibility(t *testing.T) {
	f := newFixture(t)
	sh := newShop(t, f)
	ctx := context.Background()
	order := sh.place(t, f, models.PaymentMethodCOD)

	vendorOrders, err := f.orders.VendorOrders(ctx, sh.vendor)
	require.NoError(t, err)
	require.Len(t, vendorOrders, 1)
	assert.Len(t, vendorOrders[0].Items, 2)

	_, err = f.orders.GetOrder(ctx, sh.vendor, order.ID)
	assert.NoError(t, err)

	otherCategory := storetest.Category(t, f.store, "Books")
	stranger := principal(storetest.Vendor(t, f.store, "other-vendor@x.com", otherCategory.ID))
	_, err = f.orders.GetOrder(ctx, stranger, order.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	otherCustomer := principal(storetest.Customer(t, f.store, "nosy@x.com"))
	_, err = f.orders.GetOrder(ctx, otherCustomer, order.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	_, err = f.orders.GetOrder(ctx, adminPrincipal(t, f.store), order.ID)
	assert.NoError(t, err)
}
