package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const maxImageBytes = 10 << 20

// readImages collects the "images" files of a multipart form. The form value "primary" is the
// index of the file to mark as primary.
func readImages(c *gin.Context) ([]service.ImageUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	primary := -1
	if v := c.PostForm("primary"); v != "" {
		if primary, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid primary index %q", v)
		}
	}

	files := form.File["images"]
	images := make([]service.ImageUpload, 0, len(files))
	for i, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("image %s exceeds %d bytes", fh.Filename, maxImageBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		images = append(images, service.ImageUpload{
			FileName: fh.Filename,
			Data:     data,
			Primary:  i == primary,
		})
	}
	return images, nil
}

func (h *Handler) vendorDashboard(c *gin.Context) {
	dashboard, err := h.services.Vendors.Dashboard(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (h *Handler) vendorOrders(c *gin.Context) {
	orders, err := h.services.Orders.VendorOrders(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) vendorProducts(c *gin.Context) {
	products, err := h.services.Vendors.ListProducts(c.Request.Context(), principal(c), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) vendorProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	product, err := h.services.Vendors.GetProduct(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// createProduct accepts either a JSON body or a multipart form whose "product" field holds the JSON
// and whose "images" files are uploaded with it.
func (h *Handler) createProduct(c *gin.Context) {
	var (
		in     service.ProductInput
		images []service.ImageUpload
	)
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		if err := json.Unmarshal([]byte(c.PostForm("product")), &in); err != nil {
			badRequest(c, err)
			return
		}
		var err error
		if images, err = readImages(c); err != nil {
			badRequest(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.services.Vendors.CreateProduct(c.Request.Context(), principal(c), in, images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in service.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.services.Vendors.UpdateProduct(c.Request.Context(), principal(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.services.Vendors.DeleteProduct(c.Request.Context(), principal(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) adjustStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	adj, err := h.services.Inventory.AdjustStock(c.Request.Context(), principal(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adj)
}

func (h *Handler) stockHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	history, err := h.services.Inventory.StockHistory(c.Request.Context(), principal(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) addProductImages(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	images, err := readImages(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	added, err := h.services.Vendors.AddProductImages(c.Request.Context(), principal(c), id, images)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

func (h *Handler) deleteProductImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	if err := h.services.Vendors.DeleteProductImage(c.Request.Context(), principal(c), id, imageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setPrimaryImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId")
	if !ok {
		return
	}

	if err := h.services.Vendors.SetPrimaryImage(c.Request.Context(), principal(c), id, imageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
