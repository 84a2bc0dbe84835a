package service

import (
	"context"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart update actions
const (
	CartIncrease = "increase"
	CartDecrease = "decrease"
	CartRemove   = "remove"
)

// CartService handles cart, wishlist and saved address operations of a customer
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddItem adds one unit of an active product to the cart
func (cs *CartService) AddItem(ctx context.Context, p models.Principal, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return err
	}
	if _, err := cs.store.GetActiveProduct(ctx, productID); err != nil {
		return err
	}
	if err := cs.store.AddCartItem(ctx, p.UserID, productID); err != nil {
		return err
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	return nil
}

// UpdateItem applies increase, decrease or remove to one of the caller's cart rows.
// Decreasing the last unit deletes the row.
func (cs *CartService) UpdateItem(ctx context.Context, p models.Principal, cartItemID int64, action string) error {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateItem")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return err
	}
	switch action {
	case CartIncrease, CartDecrease, CartRemove:
	default:
		return models.NewError(models.KindValidation, "unknown cart action %q", action)
	}

	item, err := cs.store.GetCartItem(ctx, cartItemID, p.UserID)
	if err != nil {
		return err
	}

	switch action {
	case CartIncrease:
		err = cs.store.IncrementCartItem(ctx, item.ID)
	case CartDecrease:
		err = cs.store.DecrementCartItem(ctx, item.ID)
	default:
		err = cs.store.DeleteCartItem(ctx, item.ID)
	}
	if err != nil {
		return err
	}

	util.CartMutationsTotal.WithLabelValues(action).Inc()
	return nil
}

// Items returns the caller's cart rows with current product data
func (cs *CartService) Items(ctx context.Context, p models.Principal) ([]models.CartItem, error) {
	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	return cs.store.GetCartItems(ctx, p.UserID)
}

// Total sums price times quantity over the caller's cart rows
func (cs *CartService) Total(ctx context.Context, p models.Principal) (decimal.Decimal, error) {
	items, err := cs.Items(ctx, p)
	if err != nil {
		return decimal.Zero, err
	}
	return cartTotal(items), nil
}

// Clear empties the caller's cart
func (cs *CartService) Clear(ctx context.Context, p models.Principal) error {
	if err := p.Require(models.CapShop); err != nil {
		return err
	}
	if err := cs.store.ClearCart(ctx, p.UserID); err != nil {
		return err
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return nil
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}
	return total
}

// ToggleWishlist adds the product to the wishlist, or removes it when already present.
// It reports whether the product is in the wishlist afterwards.
func (cs *CartService) ToggleWishlist(ctx context.Context, p models.Principal, productID int64) (bool, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ToggleWishlist")
	defer span.End()

	if err := p.Require(models.CapShop); err != nil {
		return false, err
	}
	existing, err := cs.store.FindWishlistItem(ctx, p.UserID, productID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, cs.store.DeleteWishlistItem(ctx, existing.ID, p.UserID)
	}
	if _, err := cs.store.GetActiveProduct(ctx, productID); err != nil {
		return false, err
	}
	if err := cs.store.AddWishlistItem(ctx, p.UserID, productID); err != nil {
		return false, err
	}
	return true, nil
}

// Wishlist returns the caller's wishlist
func (cs *CartService) Wishlist(ctx context.Context, p models.Principal) ([]models.WishlistItem, error) {
	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	return cs.store.GetWishlist(ctx, p.UserID)
}

// RemoveWishlistItem deletes one of the caller's wishlist rows
func (cs *CartService) RemoveWishlistItem(ctx context.Context, p models.Principal, id int64) error {
	if err := p.Require(models.CapShop); err != nil {
		return err
	}
	return cs.store.DeleteWishlistItem(ctx, id, p.UserID)
}

// AddressInput is a shipping address typed by the customer
type AddressInput struct {
	Label       string `json:"label" validate:"max=20"`
	FullName    string `json:"full_name" validate:"required,max=100"`
	Phone       string `json:"phone" validate:"required,max=20"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required,max=100"`
	State       string `json:"state" validate:"required,max=100"`
	ZipCode     string `json:"zip_code" validate:"required,max=20"`
	IsDefault   bool   `json:"is_default"`
}

func (in AddressInput) toAddress(p models.Principal) *models.Address {
	return &models.Address{
		UserID:      p.UserID,
		Label:       in.Label,
		FullName:    in.FullName,
		Phone:       in.Phone,
		AddressLine: in.AddressLine,
		City:        in.City,
		State:       in.State,
		ZipCode:     in.ZipCode,
		IsDefault:   in.IsDefault,
	}
}

// Addresses returns the caller's saved addresses, default first
func (cs *CartService) Addresses(ctx context.Context, p models.Principal) ([]models.Address, error) {
	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	return cs.store.GetAddresses(ctx, p.UserID)
}

// SaveAddress stores a new shipping address for the caller
func (cs *CartService) SaveAddress(ctx context.Context, p models.Principal, in AddressInput) (*models.Address, error) {
	if err := p.Require(models.CapShop); err != nil {
		return nil, err
	}
	if err := validateRequest(in); err != nil {
		return nil, err
	}
	addr := in.toAddress(p)
	if err := cs.store.WithTx(ctx, func(tx *store.Store) error {
		return tx.CreateAddress(ctx, addr)
	}); err != nil {
		return nil, err
	}
	return addr, nil
}

// DeleteAddress removes one of the caller's saved addresses
func (cs *CartService) DeleteAddress(ctx context.Context, p models.Principal, id int64) error {
	if err := p.Require(models.CapShop); err != nil {
		return err
	}
	return cs.store.DeleteAddress(ctx, id, p.UserID)
}
