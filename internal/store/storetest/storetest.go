// Package storetest builds throwaway in-memory stores and fixtures for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// New opens a private in-memory SQLite database with the full schema applied
func New(t testing.TB) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.NewStoreFromDB(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// Category creates a category
func Category(t testing.TB, s *store.Store, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name}
	require.NoError(t, s.CreateCategory(context.Background(), c))
	return c
}

// Customer creates an active customer with a placeholder credential
func Customer(t testing.TB, s *store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{
		Name:         "Customer " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// Vendor creates an active, registered vendor assigned to the categories
func Vendor(t testing.TB, s *store.Store, email string, categoryIDs ...int64) *models.User {
	t.Helper()
	ctx := context.Background()
	u := &models.User{
		Name:         "Vendor " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         models.RoleSuperAdmin,
		IsActive:     true,
	}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SetVendorCategories(ctx, u.ID, categoryIDs))
	return u
}

// Product creates an active product owned by the vendor
func Product(t testing.TB, s *store.Store, owner *models.User, categoryID int64, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
		OwnerID:    owner.ID,
		IsActive:   true,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

// Stock reads the current stock of a product
func Stock(t testing.TB, s *store.Store, productID int64) int {
	t.Helper()
	p, err := s.GetProductByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}
