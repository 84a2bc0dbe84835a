package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const cartColumns = `ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
	p.name AS product_name, p.price AS product_price, p.stock AS product_stock, p.is_active AS product_active`

// AddCartItem inserts a cart row with quantity 1, or increments the existing (user, product) row
func (s *Store) AddCartItem(ctx context.Context, userID uuid.UUID, productID int64) error {
	_, err := s.exec(ctx, `
		INSERT INTO cart (user_id, product_id, quantity, created_at) VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart.quantity + 1`,
		userID, productID, now())
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// GetCartItems retrieves a user's cart rows joined with current product data
func (s *Store) GetCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.selectAll(ctx, &items, `
		SELECT `+cartColumns+`
		FROM cart ci JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ? ORDER BY ci.id`, userID)
	return items, err
}

// LockCartItems reads the user's cart rows like GetCartItems. Inside a postgres transaction the rows
// stay locked until commit, so concurrent quantity changes wait for the checkout to finish.
func (s *Store) LockCartItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart ci JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = ? ORDER BY ci.id`
	if s.inTx && s.db.DriverName() == "postgres" {
		query += " FOR UPDATE OF ci"
	}

	var items []models.CartItem
	if err := s.selectAll(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return items, nil
}

// GetCartItem retrieves a cart row only if it belongs to the user
func (s *Store) GetCartItem(ctx context.Context, id int64, userID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := s.get(ctx, &item, `
		SELECT `+cartColumns+`
		FROM cart ci JOIN products p ON p.id = ci.product_id
		WHERE ci.id = ? AND ci.user_id = ?`, id, userID)
	if err != nil {
		return nil, notFound(err, "cart item not found: %d", id)
	}
	return &item, nil
}

// IncrementCartItem adds one to the quantity of a cart row
func (s *Store) IncrementCartItem(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, "UPDATE cart SET quantity = quantity + 1 WHERE id = ?", id)
	return err
}

// DecrementCartItem subtracts one from the quantity of a cart row. A row at quantity 1 is removed.
func (s *Store) DecrementCartItem(ctx context.Context, id int64) error {
	n, err := s.execAffected(ctx, "UPDATE cart SET quantity = quantity - 1 WHERE id = ? AND quantity > 1", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.DeleteCartItem(ctx, id)
	}
	return nil
}

// DeleteCartItem removes a cart row
func (s *Store) DeleteCartItem(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, "DELETE FROM cart WHERE id = ?", id)
	return err
}

// ClearCart deletes every cart row of the user
func (s *Store) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.exec(ctx, "DELETE FROM cart WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// DeleteCartItems removes the given cart rows of the user. Rows added after they were read survive.
func (s *Store) DeleteCartItems(ctx context.Context, userID uuid.UUID, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM cart WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// FindWishlistItem retrieves the (user, product) wishlist row, nil if absent
func (s *Store) FindWishlistItem(ctx context.Context, userID uuid.UUID, productID int64) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := s.get(ctx, &item, `
		SELECT w.id, w.user_id, w.product_id, w.created_at, p.name AS product_name, p.price AS product_price
		FROM wishlist w JOIN products p ON p.id = w.product_id
		WHERE w.user_id = ? AND w.product_id = ?`, userID, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AddWishlistItem inserts a wishlist row
func (s *Store) AddWishlistItem(ctx context.Context, userID uuid.UUID, productID int64) error {
	_, err := s.exec(ctx,
		"INSERT INTO wishlist (user_id, product_id, created_at) VALUES (?, ?, ?)", userID, productID, now())
	if err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindConflict, err, "product already in wishlist")
		}
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

// DeleteWishlistItem removes a wishlist row owned by the user
func (s *Store) DeleteWishlistItem(ctx context.Context, id int64, userID uuid.UUID) error {
	n, err := s.execAffected(ctx, "DELETE FROM wishlist WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
	}
	if n == 0 {
		return models.NewError(models.KindNotFound, "wishlist item not found: %d", id)
	}
	return nil
}

// GetWishlist retrieves a user's wishlist with product data, newest first
func (s *Store) GetWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := s.selectAll(ctx, &items, `
		SELECT w.id, w.user_id, w.product_id, w.created_at, p.name AS product_name, p.price AS product_price
		FROM wishlist w JOIN products p ON p.id = w.product_id
		WHERE w.user_id = ? ORDER BY w.created_at DESC, w.id DESC`, userID)
	return items, err
}

const addressColumns = "id, user_id, label, full_name, phone, address_line, city, state, zip_code, is_default, created_at"

// CreateAddress saves a shipping address. A default address clears the user's previous default.
func (s *Store) CreateAddress(ctx context.Context, a *models.Address) error {
	if a.IsDefault {
		if _, err := s.exec(ctx, "UPDATE addresses SET is_default = ? WHERE user_id = ?", false, a.UserID); err != nil {
			return fmt.Errorf("failed to clear default address: %w", err)
		}
	}
	if a.Label == "" {
		a.Label = "Home"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	id, err := s.insertReturningID(ctx, `
		INSERT INTO addresses (user_id, label, full_name, phone, address_line, city, state, zip_code, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Label, a.FullName, a.Phone, a.AddressLine, a.City, a.State, a.ZipCode, a.IsDefault, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	a.ID = id
	return nil
}

// GetAddresses retrieves a user's saved addresses, default first
func (s *Store) GetAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	err := s.selectAll(ctx, &out,
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = ? ORDER BY is_default DESC, id", userID)
	return out, err
}

// GetAddress retrieves an address only if it belongs to the user
func (s *Store) GetAddress(ctx context.Context, id int64, userID uuid.UUID) (*models.Address, error) {
	var a models.Address
	if err := s.get(ctx, &a, "SELECT "+addressColumns+" FROM addresses WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return nil, notFound(err, "address not found: %d", id)
	}
	return &a, nil
}

// DeleteAddress removes an address owned by the user
func (s *Store) DeleteAddress(ctx context.Context, id int64, userID uuid.UUID) error {
	n, err := s.execAffected(ctx, "DELETE FROM addresses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if n == 0 {
		return models.NewError(models.KindNotFound, "address not found: %d", id)
	}
	return nil
}
