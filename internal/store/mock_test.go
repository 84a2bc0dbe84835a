package store_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewStoreFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestDecrementStockRebindsForPostgres(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $3")).
		WithArgs(5, int64(7), 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DecrementStock(context.Background(), 7, 5)
	assert.True(t, errors.Is(err, models.ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockPropagatesDriverError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("UPDATE products SET stock").WillReturnError(errors.New("connection reset"))

	err := s.DecrementStock(context.Background(), 7, 1)
	require.Error(t, err)
	assert.Equal(t, models.ErrorKind(""), models.KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserMapsPostgresUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := s.CreateUser(context.Background(), &models.User{Name: "A", Email: "a@x.com", Role: models.RoleCustomer})
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnCommitPathFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET stock = stock + $1 WHERE id = $2")).
		WithArgs(2, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart WHERE user_id = $1")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx *store.Store) error {
		if err := tx.RestoreStock(context.Background(), 1, 2); err != nil {
			return err
		}
		return tx.ClearCart(context.Background(), uuid.Nil)
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockCartItemsLocksRowsInsidePostgresTx(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE ci.user_id = $1 ORDER BY ci.id FOR UPDATE OF ci")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart WHERE user_id = $1 AND id IN ($2, $3)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx *store.Store) error {
		items, err := tx.LockCartItems(context.Background(), uuid.New())
		if err != nil {
			return err
		}
		assert.Empty(t, items)
		return tx.DeleteCartItems(context.Background(), uuid.New(), []int64{4, 9})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
