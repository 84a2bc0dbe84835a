package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `p.id, p.name, p.description, p.price, p.original_price, p.stock, p.category_id, p.owner_id,
	p.brand, p.dimensions, p.ratings, p.num_ratings, p.sales_count, p.is_active, p.created_at,
	c.name AS category_name,
	COALESCE((SELECT pi.url FROM product_images pi WHERE pi.product_id = p.id AND pi.is_primary ORDER BY pi.id LIMIT 1), '') AS primary_image_url`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

// ProductSort is a whitelisted ordering for product listings
type ProductSort string

// Sort keys
const (
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortNameAsc   ProductSort = "name_asc"
	SortNameDesc  ProductSort = "name_desc"
	SortNewest    ProductSort = "newest"
	SortRandom    ProductSort = "random"
	SortCategory  ProductSort = "category"
)

var productOrderBy = map[ProductSort]string{
	SortPriceAsc:  "p.price ASC, p.id ASC",
	SortPriceDesc: "p.price DESC, p.id ASC",
	SortNameAsc:   "p.name ASC, p.id ASC",
	SortNameDesc:  "p.name DESC, p.id ASC",
	SortNewest:    "p.created_at DESC, p.id DESC",
	SortRandom:    "RANDOM()",
	SortCategory:  "c.name ASC, p.name ASC, p.id ASC",
}

// ProductFilter narrows a product listing. Zero values mean "no filter".
type ProductFilter struct {
	ActiveOnly bool
	CategoryID int64
	OwnerID    uuid.UUID
	Search     string
	Sort       ProductSort
	Limit      int
	Offset     int
}

// CreateCategory creates a category
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now()
	}
	id, err := s.insertReturningID(ctx,
		"INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?)",
		category.Name, category.Description, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindConflict, err, "category %q already exists", category.Name)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	category.ID = id
	return nil
}

// EnsureCategory inserts the category when no category with that name exists
func (s *Store) EnsureCategory(ctx context.Context, name, description string) error {
	_, err := s.exec(ctx,
		"INSERT INTO categories (name, description, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING",
		name, description, now())
	if err != nil {
		return fmt.Errorf("failed to seed category %q: %w", name, err)
	}
	return nil
}

// ListCategories retrieves all categories ordered by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.selectAll(ctx, &categories,
		"SELECT id, name, description, created_at FROM categories ORDER BY name")
	return categories, err
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var category models.Category
	err := s.get(ctx, &category, "SELECT id, name, description, created_at FROM categories WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "category not found: %d", id)
	}
	return &category, nil
}

// GetCategoryByName retrieves a category by its unique name
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := s.get(ctx, &category, "SELECT id, name, description, created_at FROM categories WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "category not found: %s", name)
	}
	return &category, nil
}

// GetCategoriesByIDs retrieves the categories matching the given ids
func (s *Store) GetCategoriesByIDs(ctx context.Context, ids []int64) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		"SELECT id, name, description, created_at FROM categories WHERE id IN (?) ORDER BY name", ids)
	if err != nil {
		return nil, err
	}
	var categories []models.Category
	err = s.selectAll(ctx, &categories, query, args...)
	return categories, err
}

// CreateProduct creates a new product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, original_price, stock, category_id, owner_id,
			brand, dimensions, ratings, num_ratings, sales_count, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	id, err := s.insertReturningID(ctx, query,
		p.Name, p.Description, p.Price, p.OriginalPrice, p.Stock, p.CategoryID, p.OwnerID,
		p.Brand, p.Dimensions, p.Ratings, p.NumRatings, p.SalesCount, p.IsActive, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID = id
	return nil
}

// UpdateProduct writes the editable catalog fields of a product. Stock is not touched here.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	_, err := s.exec(ctx, `
		UPDATE products SET name = ?, description = ?, price = ?, original_price = ?, category_id = ?,
			brand = ?, dimensions = ?, ratings = ?, num_ratings = ?, sales_count = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.OriginalPrice, p.CategoryID,
		p.Brand, p.Dimensions, p.Ratings, p.NumRatings, p.SalesCount, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// DeactivateProduct soft-deletes a product and drops it from every cart and wishlist
func (s *Store) DeactivateProduct(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, "UPDATE products SET is_active = ? WHERE id = ?", false, id); err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	if _, err := s.exec(ctx, "DELETE FROM cart WHERE product_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear cart rows: %w", err)
	}
	if _, err := s.exec(ctx, "DELETE FROM wishlist WHERE product_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear wishlist rows: %w", err)
	}
	return nil
}

// GetProductByID retrieves a product regardless of its active flag
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := s.get(ctx, &p, "SELECT "+productColumns+productFrom+" WHERE p.id = ?", id)
	if err != nil {
		return nil, notFound(err, "product not found: %d", id)
	}
	return &p, nil
}

// GetActiveProduct retrieves a product only if it is active
func (s *Store) GetActiveProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, models.NewError(models.KindNotFound, "product not found: %d", id)
	}
	return p, nil
}

// GetOwnedProduct retrieves a product only if the vendor owns it.
// Products of other vendors are reported as missing.
func (s *Store) GetOwnedProduct(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := s.get(ctx, &p, "SELECT "+productColumns+productFrom+" WHERE p.id = ? AND p.owner_id = ?", id, ownerID)
	if err != nil {
		return nil, notFound(err, "product not found: %d", id)
	}
	return &p, nil
}

// GetProductsByIDs retrieves products keyed by id
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In("SELECT "+productColumns+productFrom+" WHERE p.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := s.selectAll(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ListProducts retrieves products matching the filter
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ActiveOnly {
		where = append(where, "p.is_active = ?")
		args = append(args, true)
	}
	if f.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.OwnerID != uuid.Nil {
		where = append(where, "p.owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		where = append(where, "LOWER(p.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	query := "SELECT " + productColumns + productFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	orderBy, ok := productOrderBy[f.Sort]
	if !ok {
		orderBy = productOrderBy[SortNewest]
	}
	query += " ORDER BY " + orderBy

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var products []models.Product
	if err := s.selectAll(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// CountProductsByOwner counts every product (active or not) of a vendor
func (s *Store) CountProductsByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.get(ctx, &n, "SELECT COUNT(*) FROM products WHERE owner_id = ?", ownerID)
	return n, err
}

// CountActiveProductsInCategory counts a vendor's active products in a category
func (s *Store) CountActiveProductsInCategory(ctx context.Context, ownerID uuid.UUID, categoryID int64) (int, error) {
	var n int
	err := s.get(ctx, &n,
		"SELECT COUNT(*) FROM products WHERE owner_id = ? AND category_id = ? AND is_active = ?",
		ownerID, categoryID, true)
	return n, err
}

// AddProductImage attaches an image. The first image of a product, or an image flagged primary,
// becomes the single primary image.
func (s *Store) AddProductImage(ctx context.Context, img *models.ProductImage) error {
	hasPrimary, err := s.exists(ctx,
		"SELECT id FROM product_images WHERE product_id = ? AND is_primary = ?", img.ProductID, true)
	if err != nil {
		return err
	}
	if img.IsPrimary && hasPrimary {
		if _, err := s.exec(ctx,
			"UPDATE product_images SET is_primary = ? WHERE product_id = ?", false, img.ProductID); err != nil {
			return fmt.Errorf("failed to clear primary image: %w", err)
		}
	}
	if !hasPrimary {
		img.IsPrimary = true
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now()
	}

	id, err := s.insertReturningID(ctx,
		"INSERT INTO product_images (product_id, url, is_primary, created_at) VALUES (?, ?, ?, ?)",
		img.ProductID, img.URL, img.IsPrimary, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add product image: %w", err)
	}
	img.ID = id
	return nil
}

// GetProductImages retrieves the images of a product, primary first
func (s *Store) GetProductImages(ctx context.Context, productID int64) ([]models.ProductImage, error) {
	var images []models.ProductImage
	err := s.selectAll(ctx, &images, `
		SELECT id, product_id, url, is_primary, created_at FROM product_images
		WHERE product_id = ? ORDER BY is_primary DESC, id ASC`, productID)
	return images, err
}

// GetProductImage retrieves one image of a product
func (s *Store) GetProductImage(ctx context.Context, productID, imageID int64) (*models.ProductImage, error) {
	var img models.ProductImage
	err := s.get(ctx, &img,
		"SELECT id, product_id, url, is_primary, created_at FROM product_images WHERE id = ? AND product_id = ?",
		imageID, productID)
	if err != nil {
		return nil, notFound(err, "image not found: %d", imageID)
	}
	return &img, nil
}

// DeleteProductImage removes an image. When the primary image goes, the oldest remaining image is promoted.
func (s *Store) DeleteProductImage(ctx context.Context, productID, imageID int64) error {
	img, err := s.GetProductImage(ctx, productID, imageID)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, "DELETE FROM product_images WHERE id = ?", imageID); err != nil {
		return fmt.Errorf("failed to delete product image: %w", err)
	}
	if !img.IsPrimary {
		return nil
	}

	var nextID int64
	err = s.get(ctx, &nextID,
		"SELECT id FROM product_images WHERE product_id = ? ORDER BY created_at ASC, id ASC LIMIT 1", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "UPDATE product_images SET is_primary = ? WHERE id = ?", true, nextID)
	return err
}

// SetPrimaryImage makes the given image the only primary image of its product
func (s *Store) SetPrimaryImage(ctx context.Context, productID, imageID int64) error {
	if _, err := s.GetProductImage(ctx, productID, imageID); err != nil {
		return err
	}
	if _, err := s.exec(ctx,
		"UPDATE product_images SET is_primary = (id = ?) WHERE product_id = ?", imageID, productID); err != nil {
		return fmt.Errorf("failed to set primary image: %w", err)
	}
	return nil
}
