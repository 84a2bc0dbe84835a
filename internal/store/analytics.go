package store

import (
	"context"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetPaidPaymentsSince retrieves paid payments created at or after since, oldest first
func (s *Store) GetPaidPaymentsSince(ctx context.Context, since time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.selectAll(ctx, &payments, `
		SELECT id, order_id, payment_method, transaction_id, payment_status, amount, created_at
		FROM payments WHERE payment_status = ? AND created_at >= ? ORDER BY created_at`,
		models.PaymentStatusPaid, since)
	return payments, err
}

// CountOrders counts all orders
func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.get(ctx, &n, "SELECT COUNT(*) FROM orders")
	return n, err
}

// SumOrderTotals sums the total amount of all orders
func (s *Store) SumOrderTotals(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.get(ctx, &total, "SELECT COALESCE(SUM(total_amount), 0) FROM orders")
	return total, err
}

// GetTopProductsByQuantity ranks products by quantity ordered
func (s *Store) GetTopProductsByQuantity(ctx context.Context, limit int) ([]models.ProductSales, error) {
	var out []models.ProductSales
	err := s.selectAll(ctx, &out, `
		SELECT p.id AS product_id, p.name AS name, SUM(oi.quantity) AS total_sold
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		GROUP BY p.id, p.name
		ORDER BY total_sold DESC, p.id ASC
		LIMIT ?`, limit)
	return out, err
}

// GetCategoryDistribution counts products per category. A non-nil owner restricts it to that vendor.
func (s *Store) GetCategoryDistribution(ctx context.Context, ownerID uuid.UUID) ([]models.CategoryCount, error) {
	query := `
		SELECT c.name AS name, COUNT(p.id) AS product_count
		FROM categories c JOIN products p ON p.category_id = c.id`
	var args []interface{}
	if ownerID != uuid.Nil {
		query += " WHERE p.owner_id = ?"
		args = append(args, ownerID)
	}
	query += " GROUP BY c.id, c.name ORDER BY product_count DESC, c.name ASC"

	var out []models.CategoryCount
	err := s.selectAll(ctx, &out, query, args...)
	return out, err
}

// GetNotSellingProducts retrieves active products that never sold
func (s *Store) GetNotSellingProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var out []models.Product
	err := s.selectAll(ctx, &out,
		"SELECT "+productColumns+productFrom+" WHERE p.is_active = ? AND p.sales_count = 0 ORDER BY p.created_at DESC, p.id DESC LIMIT ?",
		true, limit)
	return out, err
}

// GetLowStockProducts retrieves a vendor's active products with stock below the threshold
func (s *Store) GetLowStockProducts(ctx context.Context, ownerID uuid.UUID, threshold int) ([]models.Product, error) {
	var out []models.Product
	err := s.selectAll(ctx, &out,
		"SELECT "+productColumns+productFrom+" WHERE p.owner_id = ? AND p.is_active = ? AND p.stock < ? ORDER BY p.stock ASC, p.id ASC",
		ownerID, true, threshold)
	return out, err
}

// GetTopSellingProducts ranks a vendor's products by sales count
func (s *Store) GetTopSellingProducts(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Product, error) {
	var out []models.Product
	err := s.selectAll(ctx, &out,
		"SELECT "+productColumns+productFrom+" WHERE p.owner_id = ? ORDER BY p.sales_count DESC, p.id ASC LIMIT ?",
		ownerID, limit)
	return out, err
}

// GetVendorRevenue sums price times quantity over order items of the vendor's products
func (s *Store) GetVendorRevenue(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.get(ctx, &total, `
		SELECT COALESCE(SUM(oi.price * oi.quantity), 0)
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE p.owner_id = ?`, ownerID)
	return total, err
}

// CountOrdersForVendor counts orders containing at least one of the vendor's products
func (s *Store) CountOrdersForVendor(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.get(ctx, &n, `
		SELECT COUNT(DISTINCT oi.order_id)
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE p.owner_id = ?`, ownerID)
	return n, err
}
