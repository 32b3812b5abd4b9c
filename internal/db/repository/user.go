package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// UserRepository looks up category owners.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Ensure returns the user named username, creating it if needed.
	Ensure(ctx context.Context, username string) (*models.User, error)
}

type userRepository struct {
	db db.Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(q db.Querier) UserRepository {
	return &userRepository{db: q}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		return nil, db.WrapError(err, "get user by id")
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE username = $1`, username,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		return nil, db.WrapError(err, "get user by username")
	}
	return user, nil
}

func (r *userRepository) Ensure(ctx context.Context, username string) (*models.User, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, created_at
	`

	user := &models.User{}
	err := r.db.QueryRow(ctx, query, uuid.New(), username).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		return nil, db.WrapError(err, "ensure user")
	}
	return user, nil
}
