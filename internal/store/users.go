package store

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
)

const userColumns = "id, name, email, password_hash, role, unique_code, is_active, created_at"

// CreateUser creates a new user account
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, unique_code, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.UniqueCode, u.IsActive, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindConflict, err, "email or activation code already in use")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return nil, notFound(err, "user not found: %s", id)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = ?", email); err != nil {
		return nil, notFound(err, "user not found: %s", email)
	}
	return &u, nil
}

// EmailTaken reports whether another account already uses the email
func (s *Store) EmailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	return s.exists(ctx, "SELECT id FROM users WHERE email = ? AND id <> ?", email, except)
}

// UniqueCodeExists reports whether an activation code is already issued
func (s *Store) UniqueCodeExists(ctx context.Context, code string) (bool, error) {
	return s.exists(ctx, "SELECT id FROM users WHERE unique_code = ?", code)
}

// ActivateVendor completes a pending vendor invitation matched by email and code together.
// It returns false when no inactive vendor matches both.
func (s *Store) ActivateVendor(ctx context.Context, email, code, passwordHash string) (bool, error) {
	n, err := s.execAffected(ctx, `
		UPDATE users SET password_hash = ?, is_active = ?, unique_code = NULL
		WHERE email = ? AND unique_code = ? AND role = ? AND is_active = ?`,
		passwordHash, true, email, code, models.RoleSuperAdmin, false)
	if err != nil {
		return false, fmt.Errorf("failed to activate vendor: %w", err)
	}
	return n == 1, nil
}

// UpdateUser writes name, email and active flag
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.exec(ctx, "UPDATE users SET name = ?, email = ?, is_active = ? WHERE id = ?",
		u.Name, u.Email, u.IsActive, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.WrapError(models.KindConflict, err, "email already in use")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user account
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	n, err := s.execAffected(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return models.NewError(models.KindNotFound, "user not found: %s", id)
	}
	return nil
}

// ListUsersByRole retrieves every account with the role, newest first
func (s *Store) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := s.selectAll(ctx, &users,
		"SELECT "+userColumns+" FROM users WHERE role = ? ORDER BY created_at DESC, name", role)
	return users, err
}

// CountUsersByRole counts accounts with the role
func (s *Store) CountUsersByRole(ctx context.Context, role models.Role) (int, error) {
	var n int
	err := s.get(ctx, &n, "SELECT COUNT(*) FROM users WHERE role = ?", role)
	return n, err
}

// SetVendorCategories replaces the vendor's assigned category set
func (s *Store) SetVendorCategories(ctx context.Context, userID uuid.UUID, categoryIDs []int64) error {
	if _, err := s.exec(ctx, "DELETE FROM vendor_categories WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to clear vendor categories: %w", err)
	}
	for _, id := range categoryIDs {
		if _, err := s.exec(ctx,
			"INSERT INTO vendor_categories (user_id, category_id) VALUES (?, ?)", userID, id); err != nil {
			return fmt.Errorf("failed to assign category %d: %w", id, err)
		}
	}
	return nil
}

// GetVendorCategories retrieves the categories assigned to a vendor
func (s *Store) GetVendorCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	err := s.selectAll(ctx, &categories, `
		SELECT c.id, c.name, c.description, c.created_at
		FROM categories c JOIN vendor_categories vc ON vc.category_id = c.id
		WHERE vc.user_id = ? ORDER BY c.name`, userID)
	return categories, err
}

// VendorHasCategory reports whether the category is in the vendor's assigned set
func (s *Store) VendorHasCategory(ctx context.Context, userID uuid.UUID, categoryID int64) (bool, error) {
	return s.exists(ctx,
		"SELECT user_id FROM vendor_categories WHERE user_id = ? AND category_id = ?", userID, categoryID)
}
