package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// dbtx is satisfied by both *sqlx.DB and *sqlx.Tx
type dbtx interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// Store is the relational store. A Store returned inside WithTx is bound to that transaction.
type Store struct {
	db   *sqlx.DB
	q    dbtx
	inTx bool
}

// NewStore creates a new database store
func NewStore(driver, databaseURL string) (*Store, error) {
	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewStoreFromDB(db), nil
}

// NewStoreFromDB wraps an existing connection pool
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction. Any error returned by fn rolls back every write made through
// the transactional Store. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.GetContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.q.SelectContext(ctx, dest, s.q.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.q.Rebind(query), args...)
}

// execAffected runs a write and returns the number of affected rows
func (s *Store) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) insertReturningID(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := s.get(ctx, &id, query+" RETURNING id", args...); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var n int
	if err := s.get(ctx, &n, "SELECT COUNT(1) FROM ("+query+") AS sub", args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// notFound maps sql.ErrNoRows to a classified NotFound error
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewError(models.KindNotFound, format, args...)
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}

// isUniqueViolation recognises duplicate-key errors from postgres and sqlite
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
