package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evn/cleanops/internal/models"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already exists")
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `
		SELECT id, username, password_hash, first_name, role, status
		FROM users WHERE username = $1
	`, username)
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (*models.User, error) {
	return r.findOne(ctx, `
		SELECT id, username, password_hash, first_name, role, status
		FROM users WHERE id = $1
	`, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.Role, &u.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// UserListItem - строка списка пользователей для админки.
type UserListItem struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Create добавляет пользователя. Занятый username даёт ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, u models.User) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, first_name, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.Username, u.PasswordHash, u.FirstName, u.Role, u.Status).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (r *UserRepository) List(ctx context.Context) ([]UserListItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, first_name, role, status, created_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []UserListItem{}
	for rows.Next() {
		var u UserListItem
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int, role string) error {
	return r.update(ctx, "UPDATE users SET role = $1 WHERE id = $2", role, id)
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id int, status string) error {
	return r.update(ctx, "UPDATE users SET status = $1 WHERE id = $2", status, id)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	return r.update(ctx, "DELETE FROM users WHERE id = $1", id)
}

func (r *UserRepository) update(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
