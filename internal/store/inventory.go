package store

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
)

// DecrementStock takes quantity units out of a product's stock.
// The update only applies when enough stock remains, so stock never goes negative.
func (s *Store) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	n, err := s.execAffected(ctx,
		"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?",
		quantity, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if n == 0 {
		return models.NewError(models.KindInsufficientStock, "insufficient stock for product %d", productID)
	}
	return nil
}

// RestoreStock puts quantity units back into a product's stock
func (s *Store) RestoreStock(ctx context.Context, productID int64, quantity int) error {
	n, err := s.execAffected(ctx,
		"UPDATE products SET stock = stock + ? WHERE id = ?", quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	if n == 0 {
		return models.NewError(models.KindNotFound, "product not found: %d", productID)
	}
	return nil
}

// SetStock overwrites a product's stock and records the manual adjustment
func (s *Store) SetStock(ctx context.Context, adj *models.StockAdjustment) error {
	var current int
	if err := s.get(ctx, &current, "SELECT stock FROM products WHERE id = ?", adj.ProductID); err != nil {
		return notFound(err, "product not found: %d", adj.ProductID)
	}

	if _, err := s.exec(ctx, "UPDATE products SET stock = ? WHERE id = ?", adj.StockTo, adj.ProductID); err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}

	adj.StockFrom = current
	adj.Delta = adj.StockTo - current
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = now()
	}
	id, err := s.insertReturningID(ctx, `
		INSERT INTO stock_adjustments (product_id, actor_id, delta, stock_from, stock_to, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		adj.ProductID, adj.ActorID, adj.Delta, adj.StockFrom, adj.StockTo, adj.Reason, adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record stock adjustment: %w", err)
	}
	adj.ID = id
	return nil
}

// GetStockAdjustments retrieves the adjustment history of a product, newest first
func (s *Store) GetStockAdjustments(ctx context.Context, productID int64) ([]models.StockAdjustment, error) {
	var out []models.StockAdjustment
	err := s.selectAll(ctx, &out, `
		SELECT id, product_id, actor_id, delta, stock_from, stock_to, reason, created_at
		FROM stock_adjustments WHERE product_id = ? ORDER BY created_at DESC, id DESC`, productID)
	return out, err
}
