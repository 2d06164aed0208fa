package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"accountd/internal/models"
	"accountd/internal/utils"
)

// UserRepository is the durable account store, backed by PostgreSQL.
// Uniqueness of email and username is enforced by the users_email_key and
// users_username_key constraints, so concurrent conflicting writes are
// serialized by the database rather than by application pre-checks.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. The plaintext password is hashed here and never
// leaves this boundary.
func (r *UserRepository) Create(ctx context.Context, email, username, password string) (*models.User, error) {
	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           utils.GenerateID("usr"),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, email, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, username, password_hash, created_at, last_login_at
		FROM users
		WHERE email = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, username, password_hash, created_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByUsernameOrEmailExcluding returns a user whose email or username
// matches value, skipping excludeID. Used for update-time uniqueness checks
// so a user never conflicts with their own record.
func (r *UserRepository) FindByUsernameOrEmailExcluding(ctx context.Context, value, excludeID string) (*models.User, error) {
	query := `
		SELECT id, email, username, password_hash, created_at, last_login_at
		FROM users
		WHERE (email = $1 OR username = $1) AND id <> $2
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, value, excludeID))
}

// Save writes back every mutable column in a single statement, so a profile
// update is applied in full or not at all.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, username = $3, password_hash = $4, last_login_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.LastLoginAt,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// TouchLastLogin stamps last_login_at independently of any other mutation
// and returns the new timestamp.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) (time.Time, error) {
	query := `
		UPDATE users
		SET last_login_at = now()
		WHERE id = $1
		RETURNING last_login_at
	`
	var ts time.Time
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, models.ErrUserNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update last login: %w", err)
	}
	return ts, nil
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.CreatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return &user, nil
}

// uniqueViolation maps a Postgres 23505 to the matching duplicate error,
// or returns nil when err is something else.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return models.ErrDuplicateEmail
	case "users_username_key":
		return models.ErrDuplicateUsername
	default:
		return fmt.Errorf("%w: %s", models.ErrPersistence, pqErr.Constraint)
	}
}
