package store

import (
	"context"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id {{pk}},
		name VARCHAR(100) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		email VARCHAR(120) NOT NULL UNIQUE,
		password_hash VARCHAR(256) NOT NULL DEFAULT '',
		role VARCHAR(20) NOT NULL DEFAULT 'customer',
		unique_code VARCHAR(50) UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vendor_categories (
		user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id {{pk}},
		name VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC(10, 2) NOT NULL,
		original_price NUMERIC(10, 2),
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		category_id BIGINT NOT NULL REFERENCES categories(id),
		owner_id VARCHAR(36) NOT NULL REFERENCES users(id),
		brand VARCHAR(100) NOT NULL DEFAULT '',
		dimensions VARCHAR(200) NOT NULL DEFAULT '',
		ratings NUMERIC(2, 1) NOT NULL DEFAULT 0,
		num_ratings INTEGER NOT NULL DEFAULT 0,
		sales_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_images (
		id {{pk}},
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart (
		id {{pk}},
		user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS wishlist (
		id {{pk}},
		user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id {{pk}},
		user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		label VARCHAR(20) NOT NULL DEFAULT 'Home',
		full_name VARCHAR(100) NOT NULL,
		phone VARCHAR(20) NOT NULL,
		address_line TEXT NOT NULL,
		city VARCHAR(100) NOT NULL,
		state VARCHAR(100) NOT NULL,
		zip_code VARCHAR(20) NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id {{pk}},
		customer_id VARCHAR(36) NOT NULL REFERENCES users(id),
		total_amount NUMERIC(10, 2) NOT NULL,
		status VARCHAR(50) NOT NULL DEFAULT 'pending',
		payment_method VARCHAR(50) NOT NULL,
		payment_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		shipping_address TEXT NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		idempotency_key VARCHAR(100) UNIQUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		expected_delivery_date TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id {{pk}},
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		price NUMERIC(10, 2) NOT NULL,
		product_name VARCHAR(200) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id {{pk}},
		order_id BIGINT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
		payment_method VARCHAR(50) NOT NULL,
		transaction_id VARCHAR(100),
		payment_status VARCHAR(50) NOT NULL DEFAULT 'pending',
		amount NUMERIC(10, 2) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_adjustments (
		id {{pk}},
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		actor_id VARCHAR(36) NOT NULL,
		delta INTEGER NOT NULL,
		stock_from INTEGER NOT NULL,
		stock_to INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id VARCHAR(36) PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		processed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_products_owner ON products (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_product_images_product ON product_images (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders (customer_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items (product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments (payment_status, created_at)`,
}

// Migrate creates the schema if it does not exist. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	pk := "BIGSERIAL PRIMARY KEY"
	if s.db.DriverName() == "sqlite3" {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	for i, stmt := range schemaStatements {
		if _, err := s.q.ExecContext(ctx, strings.ReplaceAll(stmt, "{{pk}}", pk)); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
