package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evn/cleanops/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByUsername(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1")).WithArgs("anna").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "first_name", "role", "status"}).
			AddRow(7, "anna", "hash", "Anna", "worker", "active"))

	u, err := repo.FindByUsername(context.Background(), "anna")
	require.NoError(t, err)
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, "worker", u.Role)
	assert.False(t, u.IsAdmin())
}

func TestFindByID_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).WithArgs(99).WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateUser(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("oleg", "hash", "Oleg", "worker", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))

	id, err := repo.Create(context.Background(), models.User{
		Username: "oleg", PasswordHash: "hash", FirstName: "Oleg", Role: "worker", Status: "active",
	})
	require.NoError(t, err)
	assert.Equal(t, 12, id)
}

func TestCreateUser_Duplicate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	_, err = repo.Create(context.Background(), models.User{Username: "oleg"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestListUsers(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "first_name", "role", "status", "created_at"}).
			AddRow(7, "anna", "Anna", "worker", "active", created))

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, created, users[0].CreatedAt)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()
	repo := NewUserRepository(conn)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = $1")).WithArgs("blocked", 99).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateStatus(context.Background(), 99, "blocked")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
