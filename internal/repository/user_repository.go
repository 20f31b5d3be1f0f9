// Package repository reads and writes the election database directly. It is
// the break-glass path used when the API is unavailable.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meowecho-tech/vote/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Resolve implements voterroll.Directory. An identifier that parses as a
// UUID is looked up by id first; anything else, or an id miss, is matched
// against the email case-insensitively.
func (r *UserRepository) Resolve(ctx context.Context, identifier string) (string, bool, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", false, nil
	}

	if id, err := uuid.Parse(identifier); err == nil {
		const byID = `SELECT id::text FROM users WHERE id = $1`
		var userID string
		err := r.pool.QueryRow(ctx, byID, id).Scan(&userID)
		if err == nil {
			return userID, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", false, err
		}
	}

	user, err := r.FindByEmail(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return user.ID, true, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id::text, email, full_name, role, created_at
		FROM users WHERE lower(email) = lower($1)
	`

	row := r.pool.QueryRow(ctx, query, strings.TrimSpace(email))
	var user models.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&role,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.Role = models.Role(role)
	return user, nil
}
