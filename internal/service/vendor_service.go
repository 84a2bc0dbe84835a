package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/storage"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const topSellingLimit = 5

var maxRating = decimal.NewFromInt(5)

// VendorService handles the product management of a vendor. Every write is restricted to the
// vendor's own products inside the vendor's assigned categories.
type VendorService struct {
	store     *store.Store
	inventory *InventoryService
	storage   ObjectStorage
	bucket    string
	lowStock  int
	logger    *zap.Logger
	now       func() time.Time
}

// NewVendorService creates a new vendor service
func NewVendorService(store *store.Store, inventory *InventoryService, objects ObjectStorage, bucket string, lowStockThreshold int) *VendorService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = 10
	}
	return &VendorService{
		store:     store,
		inventory: inventory,
		storage:   objects,
		bucket:    bucket,
		lowStock:  lowStockThreshold,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// ProductInput carries the vendor-editable fields of a product
type ProductInput struct {
	Name          string           `json:"name" validate:"required,max=200"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	Stock         int              `json:"stock" validate:"gte=0"`
	CategoryID    int64            `json:"category_id" validate:"required,gt=0"`
	Brand         string           `json:"brand" validate:"max=100"`
	Dimensions    string           `json:"dimensions" validate:"max=200"`
	Ratings       decimal.Decimal  `json:"ratings"`
	NumRatings    int              `json:"num_ratings" validate:"gte=0"`
	SalesCount    int              `json:"sales_count" validate:"gte=0"`
}

func (in ProductInput) validate() error {
	if err := validateRequest(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return models.NewError(models.KindValidation, "invalid request: price must be greater than 0")
	}
	if in.OriginalPrice != nil && in.OriginalPrice.IsNegative() {
		return models.NewError(models.KindValidation, "invalid request: original_price must not be negative")
	}
	if in.Ratings.IsNegative() || in.Ratings.GreaterThan(maxRating) {
		return models.NewError(models.KindValidation, "invalid request: ratings must be between 0 and 5")
	}
	return nil
}

func (in ProductInput) applyTo(p *models.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.OriginalPrice = decimal.NullDecimal{}
	if in.OriginalPrice != nil {
		p.OriginalPrice = decimal.NewNullDecimal(in.OriginalPrice.Round(2))
	}
	p.CategoryID = in.CategoryID
	p.Brand = in.Brand
	p.Dimensions = in.Dimensions
	p.Ratings = in.Ratings.Round(1)
	p.NumRatings = in.NumRatings
	p.SalesCount = in.SalesCount
}

// ImageUpload is one file of an image batch
type ImageUpload struct {
	FileName string
	Data     []byte
	Primary  bool
}

// requireCategory fails with PermissionDenied unless the category is assigned to the vendor
func (vs *VendorService) requireCategory(ctx context.Context, p models.Principal, categoryID int64) error {
	ok, err := vs.store.VendorHasCategory(ctx, p.UserID, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewError(models.KindPermissionDenied, "category %d is not assigned to this vendor", categoryID)
	}
	return nil
}

// ownedProduct loads one of the vendor's products and checks its category is still assigned
func (vs *VendorService) ownedProduct(ctx context.Context, p models.Principal, productID int64) (*models.Product, error) {
	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	product, err := vs.store.GetOwnedProduct(ctx, productID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, models.NewError(models.KindNotFound, "product not found: %d", productID)
	}
	if err := vs.requireCategory(ctx, p, product.CategoryID); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns the vendor's active products ordered by category then name.
// A non-empty category name narrows the list and must be one of the vendor's categories.
func (vs *VendorService) ListProducts(ctx context.Context, p models.Principal, categoryName string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.ListProducts")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	f := store.ProductFilter{ActiveOnly: true, OwnerID: p.UserID, Sort: store.SortCategory}
	if categoryName != "" {
		category, err := vs.store.GetCategoryByName(ctx, categoryName)
		if err != nil {
			return nil, err
		}
		ok, err := vs.store.VendorHasCategory(ctx, p.UserID, category.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewError(models.KindNotFound, "category not found: %s", categoryName)
		}
		f.CategoryID = category.ID
	}
	return vs.store.ListProducts(ctx, f)
}

// GetProduct returns one of the vendor's products with its images
func (vs *VendorService) GetProduct(ctx context.Context, p models.Principal, productID int64) (*models.Product, error) {
	product, err := vs.ownedProduct(ctx, p, productID)
	if err != nil {
		return nil, err
	}
	images, err := vs.store.GetProductImages(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Images = images
	return product, nil
}

// CreateProduct creates a product in one of the vendor's categories and uploads its images.
// Image failures skip the file and never fail the product.
func (vs *VendorService) CreateProduct(ctx context.Context, p models.Principal, in ProductInput, images []ImageUpload) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.CreateProduct")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := vs.requireCategory(ctx, p, in.CategoryID); err != nil {
		return nil, err
	}

	product := &models.Product{OwnerID: p.UserID, Stock: in.Stock, IsActive: true}
	in.applyTo(product)
	if err := vs.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	vs.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("owner_id", p.UserID.String()))

	if len(images) > 0 {
		added, err := vs.uploadImages(ctx, p, product.ID, images)
		if err != nil {
			return nil, err
		}
		product.Images = added
	}
	return product, nil
}

// UpdateProduct edits one of the vendor's products. A changed stock value is recorded as a
// manual adjustment in the same transaction as the edit.
func (vs *VendorService) UpdateProduct(ctx context.Context, p models.Principal, productID int64, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.UpdateProduct")
	defer span.End()

	product, err := vs.ownedProduct(ctx, p, productID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.CategoryID != product.CategoryID {
		if err := vs.requireCategory(ctx, p, in.CategoryID); err != nil {
			return nil, err
		}
	}

	in.applyTo(product)
	err = vs.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return err
		}
		if in.Stock == product.Stock {
			return nil
		}
		return vs.inventory.applyAdjustment(ctx, tx, &models.StockAdjustment{
			ProductID: productID,
			ActorID:   p.UserID,
			StockTo:   in.Stock,
			Reason:    "product edit",
		})
	})
	if err != nil {
		return nil, err
	}
	product.Stock = in.Stock
	return product, nil
}

// DeleteProduct soft-deletes one of the vendor's products. Order history keeps referencing it.
func (vs *VendorService) DeleteProduct(ctx context.Context, p models.Principal, productID int64) error {
	ctx, span := util.StartSpan(ctx, "VendorService.DeleteProduct")
	defer span.End()

	if _, err := vs.ownedProduct(ctx, p, productID); err != nil {
		return err
	}
	if err := vs.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.DeactivateProduct(ctx, productID)
	}); err != nil {
		return err
	}
	vs.logger.Info("Product deactivated", zap.Int64("product_id", productID))
	return nil
}

// AddProductImages uploads a batch of images to one of the vendor's products
func (vs *VendorService) AddProductImages(ctx context.Context, p models.Principal, productID int64, images []ImageUpload) ([]models.ProductImage, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.AddProductImages")
	defer span.End()

	if _, err := vs.ownedProduct(ctx, p, productID); err != nil {
		return nil, err
	}
	return vs.uploadImages(ctx, p, productID, images)
}

// uploadImages stores each file and attaches it. A file that is rejected or fails to upload is skipped.
func (vs *VendorService) uploadImages(ctx context.Context, p models.Principal, productID int64, images []ImageUpload) ([]models.ProductImage, error) {
	added := make([]models.ProductImage, 0, len(images))
	for _, upload := range images {
		if !storage.AllowedImage(upload.FileName) || len(upload.Data) == 0 {
			util.ImageUploadFailuresTotal.Inc()
			vs.logger.Warn("Skipping unsupported image",
				zap.Int64("product_id", productID),
				zap.String("file", upload.FileName))
			continue
		}

		key := storage.ObjectKey(vs.now(), upload.FileName)
		url, err := vs.storage.Upload(ctx, p.ProviderToken, vs.bucket, key, upload.Data, storage.ContentTypeFor(upload.FileName))
		if err != nil {
			util.ImageUploadFailuresTotal.Inc()
			vs.logger.Error("Image upload failed, skipping file",
				zap.Int64("product_id", productID),
				zap.String("file", upload.FileName),
				zap.Error(err))
			continue
		}

		img := models.ProductImage{ProductID: productID, URL: url, IsPrimary: upload.Primary}
		if err := vs.store.WithTx(ctx, func(tx *store.Store) error {
			return tx.AddProductImage(ctx, &img)
		}); err != nil {
			return added, err
		}
		added = append(added, img)
	}
	return added, nil
}

// DeleteProductImage removes an image from one of the vendor's products.
// The stored object is removed best-effort after the row is gone.
func (vs *VendorService) DeleteProductImage(ctx context.Context, p models.Principal, productID, imageID int64) error {
	ctx, span := util.StartSpan(ctx, "VendorService.DeleteProductImage")
	defer span.End()

	if _, err := vs.ownedProduct(ctx, p, productID); err != nil {
		return err
	}
	img, err := vs.store.GetProductImage(ctx, productID, imageID)
	if err != nil {
		return err
	}
	if err := vs.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.DeleteProductImage(ctx, productID, imageID)
	}); err != nil {
		return err
	}

	if key := storage.KeyFromURL(vs.bucket, img.URL); key != "" {
		if err := vs.storage.Delete(ctx, p.ProviderToken, vs.bucket, key); err != nil {
			vs.logger.Warn("Failed to delete stored image",
				zap.Int64("image_id", imageID),
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return nil
}

// SetPrimaryImage makes one image the only primary image of the vendor's product
func (vs *VendorService) SetPrimaryImage(ctx context.Context, p models.Principal, productID, imageID int64) error {
	if _, err := vs.ownedProduct(ctx, p, productID); err != nil {
		return err
	}
	return vs.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.SetPrimaryImage(ctx, productID, imageID)
	})
}

// Dashboard aggregates the vendor's catalog and sales figures
func (vs *VendorService) Dashboard(ctx context.Context, p models.Principal) (*models.VendorDashboard, error) {
	ctx, span := util.StartSpan(ctx, "VendorService.Dashboard")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}

	var (
		d   models.VendorDashboard
		err error
	)
	if d.ProductCount, err = vs.store.CountProductsByOwner(ctx, p.UserID); err != nil {
		return nil, err
	}
	if d.OrderCount, err = vs.store.CountOrdersForVendor(ctx, p.UserID); err != nil {
		return nil, err
	}
	if d.Revenue, err = vs.store.GetVendorRevenue(ctx, p.UserID); err != nil {
		return nil, err
	}
	if d.LowStock, err = vs.store.GetLowStockProducts(ctx, p.UserID, vs.lowStock); err != nil {
		return nil, err
	}
	if d.TopSelling, err = vs.store.GetTopSellingProducts(ctx, p.UserID, topSellingLimit); err != nil {
		return nil, err
	}
	if d.CategoryDistribution, err = vs.store.GetCategoryDistribution(ctx, p.UserID); err != nil {
		return nil, err
	}
	return &d, nil
}
