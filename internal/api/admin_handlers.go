package api

import (
	"net/http"

	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, models.NewError(models.KindValidation, "invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// adminDashboard serves marketplace analytics; ?period= is week, month or year
func (h *Handler) adminDashboard(c *gin.Context) {
	dashboard, err := h.services.Admin.Dashboard(c.Request.Context(), principal(c), c.Query("period"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.services.Admin.ListVendors(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}

// createVendor invites a vendor; the response carries the activation code
func (h *Handler) createVendor(c *gin.Context) {
	var req service.VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.services.Admin.CreateVendor(c.Request.Context(), principal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *Handler) getVendor(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	vendor, err := h.services.Admin.GetVendor(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (h *Handler) updateVendor(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req service.VendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.services.Admin.UpdateVendor(c.Request.Context(), principal(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (h *Handler) toggleVendor(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	vendor, err := h.services.Admin.ToggleVendor(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (h *Handler) deleteVendor(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Admin.DeleteVendor(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
