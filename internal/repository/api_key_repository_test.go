package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiKeyRepository_GetByHash(t *testing.T) {
	db, mock := newMock(t)
	repo := NewApiKeyRepository(db)

	mock.ExpectQuery(`(?s)SELECT u.id, u.email.*FROM api_keys k.*JOIN users u`).
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(int64(7), "owner@example.com"))
	mock.ExpectQuery(`(?s)FROM api_keys k`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	user, err := repo.GetByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "owner@example.com", user.Email)

	user, err = repo.GetByHash(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestApiKeyRepository_RemoveScopedToOwner(t *testing.T) {
	db, mock := newMock(t)
	repo := NewApiKeyRepository(db)

	mock.ExpectExec(`DELETE FROM api_keys WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM api_keys`).
		WithArgs(int64(3), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Remove(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.False(t, removed)
}
