package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/storage"
	"marketplace-service/internal/store"
	"marketplace-service/internal/store/storetest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	store  *store.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, ready func(ctx context.Context) error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := storetest.New(t)
	tokens := auth.NewTokenManager(config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, Issuer: "test"})
	inventory := service.NewInventoryService(s)
	notifier := service.NewNotifier(service.ChannelLog, nil, nil)

	services := Services{
		Accounts:  service.NewAccountService(s, tokens),
		Catalog:   service.NewCatalogService(s, 20),
		Cart:      service.NewCartService(s),
		Orders:    service.NewOrderService(s, inventory, service.NewPaymentService(s), redisclient.NewMemoryClient(), notifier, config.BusinessConfig{}),
		Lifecycle: service.NewOrderLifecycle(s, inventory, notifier),
		Inventory: inventory,
		Vendors:   service.NewVendorService(s, inventory, storage.NewStubObjectStorage(), "product-images", 10),
		Admin:     service.NewAdminService(s),
	}

	router := gin.New()
	NewHandler(services, tokens, ready).SetupRoutes(router)
	return &testServer{router: router, store: s, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, _, err := ts.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/ready", "", nil).Code)

	down := newTestServer(t, func(ctx context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/ready", "", nil).Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/cart", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/cart", "garbage", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/categories", "", nil).Code)
}

func TestCustomerFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	category := storetest.Category(t, ts.store, "Electronics")
	vendor := storetest.Vendor(t, ts.store, "v@x.com", category.ID)
	product := storetest.Product(t, ts.store, vendor, category.ID, "Phone", "10.00", 1)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":             "Ann",
		"email":            "ann@x.com",
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ann@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ann@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", login.Token, gin.H{"product_id": product.ID})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/orders", login.Token, gin.H{"payment_method": "bitcoin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	address := gin.H{
		"full_name":    "Ann Buyer",
		"phone":        "555-0100",
		"address_line": "1 Main St",
		"city":         "Springfield",
		"state":        "IL",
		"zip_code":     "62701",
	}
	w = ts.do(t, http.MethodPost, "/api/v1/orders", login.Token, gin.H{"address": address, "payment_method": "cod"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", order.ID), login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", login.Token, gin.H{"product_id": product.ID})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, "/api/v1/orders", login.Token, gin.H{"address": address, "payment_method": "cod"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), login.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/orders/abc", login.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/admin/dashboard", login.Token, nil).Code)
}

func TestVendorRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	electronics := storetest.Category(t, ts.store, "Electronics")
	books := storetest.Category(t, ts.store, "Books")
	vendor := storetest.Vendor(t, ts.store, "v@x.com", electronics.ID)
	token := ts.tokenFor(t, vendor)

	w := ts.do(t, http.MethodPost, "/api/v1/vendor/products", token, gin.H{
		"name":        "Novel",
		"price":       "12.50",
		"stock":       3,
		"category_id": books.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/vendor/products", token, gin.H{
		"name":        "Phone",
		"price":       "99.99",
		"stock":       3,
		"category_id": electronics.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product models.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/api/v1/vendor/products/%d/stock", product.ID), token, gin.H{"stock": 7, "reason": "recount"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/v1/vendor/products?category=Books", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/vendor/dashboard", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	category := storetest.Category(t, ts.store, "Electronics")
	admin := &models.User{Name: "Admin", Email: "admin@x.com", PasswordHash: "hash", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, ts.store.CreateUser(context.Background(), admin))
	token := ts.tokenFor(t, admin)

	w := ts.do(t, http.MethodPost, "/api/v1/admin/vendors", token, gin.H{
		"name":         "Vera",
		"email":        "v@x.com",
		"category_ids": []int64{category.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vendor models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vendor))
	require.NotNil(t, vendor.UniqueCode)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register-code", "", gin.H{
		"email":            "v@x.com",
		"code":             "WRONG",
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register-code", "", gin.H{
		"email":            "v@x.com",
		"code":             *vendor.UniqueCode,
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "v@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/vendor/dashboard", login.Token, nil).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/vendors/"+vendor.ID.String()+"/toggle", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/vendor/dashboard", login.Token, nil).Code)

	w = ts.do(t, http.MethodPost, "/api/v1/admin/vendors/"+vendor.ID.String()+"/toggle", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/vendor/dashboard", login.Token, nil).Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/admin/vendors/not-a-uuid", token, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/admin/dashboard?period=year", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/admin/dashboard?period=decade", token, nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrValidation, http.StatusBadRequest},
		{models.ErrInvalidCode, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrPermissionDenied, http.StatusForbidden},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrInvalidTransition, http.StatusConflict},
		{models.ErrInsufficientStock, http.StatusUnprocessableEntity},
		{models.ErrUnauthenticated, http.StatusUnauthorized},
		{models.ErrDependency, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", models.ErrNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
