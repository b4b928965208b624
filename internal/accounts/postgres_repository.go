package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, full_name, password_hash, image_link, auth_provider, created_at, updated_at`

// Create inserts a user. The UNIQUE constraint on email settles concurrent
// registrations of the same address.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :full_name, :password_hash, :image_link, :auth_provider, :created_at, :updated_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByEmail looks up a user by their email address.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored hash in a single statement.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE email = $1`

	res, err := r.db.ExecContext(ctx, query, email, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireOneRow(res)
}

// UpdateProfile applies the non-nil fields of update and returns the stored row.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, email string, update ProfileUpdate) (User, error) {
	query := `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
		    image_link = COALESCE($3, image_link),
		    updated_at = $4
		WHERE email = $1
		RETURNING ` + userColumns

	var user User
	if err := r.db.GetContext(ctx, &user, query, email, update.FullName, update.ImageLink, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func requireOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
