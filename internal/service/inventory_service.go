package service

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// InventoryService owns every write to product stock
type InventoryService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store *store.Store) *InventoryService {
	return &InventoryService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// reserve takes stock for an order line inside the caller's transaction
func (is *InventoryService) reserve(ctx context.Context, tx *store.Store, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.reserve")
	defer span.End()

	if err := tx.DecrementStock(ctx, productID, quantity); err != nil {
		if models.KindOf(err) == models.KindInsufficientStock {
			util.StockRejectionsTotal.Inc()
		}
		return err
	}
	return nil
}

// release puts stock back for a cancelled order line inside the caller's transaction
func (is *InventoryService) release(ctx context.Context, tx *store.Store, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.release")
	defer span.End()

	if err := tx.RestoreStock(ctx, productID, quantity); err != nil {
		is.logger.Error("Failed to restore stock",
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return err
	}
	return nil
}

// AdjustStockRequest is a manual inventory correction by the owning vendor
type AdjustStockRequest struct {
	Stock  int    `json:"stock" validate:"gte=0"`
	Reason string `json:"reason" validate:"max=500"`
}

// AdjustStock overwrites a product's stock and records the adjustment in the audit trail
func (is *InventoryService) AdjustStock(ctx context.Context, p models.Principal, productID int64, req AdjustStockRequest) (*models.StockAdjustment, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.AdjustStock")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, err := is.store.GetOwnedProduct(ctx, productID, p.UserID); err != nil {
		return nil, err
	}

	adj := &models.StockAdjustment{
		ProductID: productID,
		ActorID:   p.UserID,
		StockTo:   req.Stock,
		Reason:    req.Reason,
	}
	if err := is.store.WithTx(ctx, func(tx *store.Store) error {
		return is.applyAdjustment(ctx, tx, adj)
	}); err != nil {
		return nil, err
	}
	return adj, nil
}

// applyAdjustment records a manual adjustment inside the caller's transaction
func (is *InventoryService) applyAdjustment(ctx context.Context, tx *store.Store, adj *models.StockAdjustment) error {
	if err := tx.SetStock(ctx, adj); err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	util.StockAdjustmentsTotal.Inc()
	is.logger.Info("Stock adjusted",
		zap.Int64("product_id", adj.ProductID),
		zap.String("actor_id", adj.ActorID.String()),
		zap.Int("from", adj.StockFrom),
		zap.Int("to", adj.StockTo))
	return nil
}

// StockHistory returns the manual adjustments of one of the vendor's products
func (is *InventoryService) StockHistory(ctx context.Context, p models.Principal, productID int64) ([]models.StockAdjustment, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.StockHistory")
	defer span.End()

	if err := p.Require(models.CapSell); err != nil {
		return nil, err
	}
	if _, err := is.store.GetOwnedProduct(ctx, productID, p.UserID); err != nil {
		return nil, err
	}
	return is.store.GetStockAdjustments(ctx, productID)
}
