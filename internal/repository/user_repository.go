package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// Upsert inserts the user or replaces the directory fields of an existing record.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (user_name, display_name, email, roles)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_name) DO UPDATE
            SET display_name=EXCLUDED.display_name, email=EXCLUDED.email, roles=EXCLUDED.roles, updated_at=NOW()
        RETURNING created_at, updated_at`

	roles := make([]string, len(user.Roles))
	for i, role := range user.Roles {
		roles[i] = string(role)
	}
	if err := r.pool.QueryRow(ctx, query,
		user.UserName,
		user.DisplayName,
		user.Email,
		roles,
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.UserName, err)
	}
	return nil
}

func (r *userRepository) GetByUserName(ctx context.Context, userName string) (*domain.User, error) {
	const query = `
        SELECT user_name, display_name, email, roles, created_at, updated_at
        FROM users WHERE user_name=$1`

	var (
		user  domain.User
		roles []string
	)
	err := r.pool.QueryRow(ctx, query, userName).Scan(
		&user.UserName,
		&user.DisplayName,
		&user.Email,
		&roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userName, err)
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, domain.UserRole(role))
	}
	return &user, nil
}
