package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

// Services bundles the domain services served over HTTP
type Services struct {
	Accounts  *service.AccountService
	Catalog   *service.CatalogService
	Cart      *service.CartService
	Orders    *service.OrderService
	Lifecycle *service.OrderLifecycle
	Inventory *service.InventoryService
	Vendors   *service.VendorService
	Admin     *service.AdminService
}

// Handler contains HTTP handlers
type Handler struct {
	services Services
	tokens   *auth.TokenManager
	ready    func(ctx context.Context) error
}

// NewHandler creates a new HTTP handler. ready reports whether backing stores are reachable.
func NewHandler(services Services, tokens *auth.TokenManager, ready func(ctx context.Context) error) *Handler {
	return &Handler{
		services: services,
		tokens:   tokens,
		ready:    ready,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(tracingMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.authenticate())
	{
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/register-code", h.registerWithCode)
		v1.POST("/auth/login", h.login)
		v1.GET("/profile", h.getProfile)
		v1.PUT("/profile", h.updateProfile)

		v1.GET("/categories", h.listCategories)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/featured", h.featuredProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:id", h.updateCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.GET("/wishlist", h.getWishlist)
		v1.POST("/wishlist/:productId", h.toggleWishlist)
		v1.DELETE("/wishlist/items/:id", h.removeWishlistItem)

		v1.GET("/addresses", h.listAddresses)
		v1.POST("/addresses", h.saveAddress)
		v1.DELETE("/addresses/:id", h.deleteAddress)

		v1.GET("/checkout", h.checkout)
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.PUT("/orders/:id/status", h.updateOrderStatus)
	}

	vendor := v1.Group("/vendor")
	{
		vendor.GET("/dashboard", h.vendorDashboard)
		vendor.GET("/orders", h.vendorOrders)
		vendor.GET("/products", h.vendorProducts)
		vendor.POST("/products", h.createProduct)
		vendor.GET("/products/:id", h.vendorProduct)
		vendor.PUT("/products/:id", h.updateProduct)
		vendor.DELETE("/products/:id", h.deleteProduct)
		vendor.PUT("/products/:id/stock", h.adjustStock)
		vendor.GET("/products/:id/stock", h.stockHistory)
		vendor.POST("/products/:id/images", h.addProductImages)
		vendor.DELETE("/products/:id/images/:imageId", h.deleteProductImage)
		vendor.PUT("/products/:id/images/:imageId/primary", h.setPrimaryImage)
	}

	admin := v1.Group("/admin")
	{
		admin.GET("/dashboard", h.adminDashboard)
		admin.GET("/vendors", h.listVendors)
		admin.POST("/vendors", h.createVendor)
		admin.GET("/vendors/:id", h.getVendor)
		admin.PUT("/vendors/:id", h.updateVendor)
		admin.POST("/vendors/:id/toggle", h.toggleVendor)
		admin.DELETE("/vendors/:id", h.deleteVendor)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// tracingMiddleware opens a span per request that the service spans nest under
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := util.StartSpan(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
