package service

import (
	"context"
	"strings"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

const featuredLimit = 8

// CatalogService serves the public, read-only product catalog
type CatalogService struct {
	store    *store.Store
	pageSize int
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &CatalogService{
		store:    store,
		pageSize: pageSize,
		logger:   util.GetLogger(),
	}
}

// ProductQuery narrows the public product listing
type ProductQuery struct {
	CategoryID int64  `form:"category_id"`
	Search     string `form:"search"`
	Sort       string `form:"sort"`
	Page       int    `form:"page"`
}

var publicSorts = map[string]store.ProductSort{
	"price_asc":  store.SortPriceAsc,
	"price_desc": store.SortPriceDesc,
	"name_asc":   store.SortNameAsc,
	"name_desc":  store.SortNameDesc,
}

// ListProducts returns one page of active products. Without a category, a search or a sort key
// the page is drawn in random order so repeated visits surface different products.
func (cs *CatalogService) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	f := store.ProductFilter{
		ActiveOnly: true,
		CategoryID: q.CategoryID,
		Search:     strings.TrimSpace(q.Search),
		Limit:      cs.pageSize,
	}
	if q.Page > 1 {
		f.Offset = (q.Page - 1) * cs.pageSize
	}

	switch {
	case q.Sort != "":
		sort, ok := publicSorts[q.Sort]
		if !ok {
			return nil, models.NewError(models.KindValidation, "unknown sort key %q", q.Sort)
		}
		f.Sort = sort
	case f.CategoryID == 0 && f.Search == "":
		f.Sort = store.SortRandom
	default:
		f.Sort = store.SortNewest
	}

	if f.CategoryID != 0 {
		if _, err := cs.store.GetCategoryByID(ctx, f.CategoryID); err != nil {
			return nil, err
		}
	}
	return cs.store.ListProducts(ctx, f)
}

// FeaturedProducts returns the newest active products
func (cs *CatalogService) FeaturedProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.FeaturedProducts")
	defer span.End()

	return cs.store.ListProducts(ctx, store.ProductFilter{
		ActiveOnly: true,
		Sort:       store.SortNewest,
		Limit:      featuredLimit,
	})
}

// GetProduct returns an active product with its images
func (cs *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct")
	defer span.End()

	product, err := cs.store.GetActiveProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	images, err := cs.store.GetProductImages(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Images = images
	return product, nil
}

// ListCategories returns every category ordered by name
func (cs *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return cs.store.ListCategories(ctx)
}
