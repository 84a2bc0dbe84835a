package api

import (
	"net/http"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
}

type cartUpdateRequest struct {
	Action string `json:"action" binding:"required"`
}

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.services.Catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// listProducts serves the public catalog page
func (h *Handler) listProducts(c *gin.Context) {
	var q service.ProductQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	products, err := h.services.Catalog.ListProducts(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) featuredProducts(c *gin.Context) {
	products, err := h.services.Catalog.FeaturedProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	product, err := h.services.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// getCart returns the cart rows and their total
func (h *Handler) getCart(c *gin.Context) {
	ctx := c.Request.Context()
	p := principal(c)

	items, err := h.services.Cart.Items(ctx, p)
	if err != nil {
		respondError(c, err)
		return
	}
	total, err := h.services.Cart.Total(ctx, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.services.Cart.AddItem(c.Request.Context(), principal(c), req.ProductID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req cartUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.services.Cart.UpdateItem(c.Request.Context(), principal(c), id, req.Action); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.services.Cart.Clear(c.Request.Context(), principal(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getWishlist(c *gin.Context) {
	items, err := h.services.Cart.Wishlist(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) toggleWishlist(c *gin.Context) {
	productID, ok := paramID(c, "productId")
	if !ok {
		return
	}

	inList, err := h.services.Cart.ToggleWishlist(c.Request.Context(), principal(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"in_wishlist": inList})
}

func (h *Handler) removeWishlistItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Cart.RemoveWishlistItem(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAddresses(c *gin.Context) {
	addresses, err := h.services.Cart.Addresses(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, addresses)
}

func (h *Handler) saveAddress(c *gin.Context) {
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	address, err := h.services.Cart.SaveAddress(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *Handler) deleteAddress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Cart.DeleteAddress(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) checkout(c *gin.Context) {
	view, err := h.services.Orders.Checkout(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// placeOrder handles order creation. The idempotency key may come in the body or the Idempotency-Key header.
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.services.Orders.PlaceOrder(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListOrders(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := h.services.Orders.GetOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := h.services.Lifecycle.CancelOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req orderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.services.Lifecycle.UpdateOrderStatus(c.Request.Context(), principal(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
