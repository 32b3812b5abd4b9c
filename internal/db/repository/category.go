package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// CategoryRepository defines operations for user-owned categories and their
// channel membership.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)

	// GetByOwnerAndSlug returns the category regardless of visibility.
	GetByOwnerAndSlug(ctx context.Context, ownerID uuid.UUID, slug string) (*models.Category, error)

	// ListByOwner returns the owner's categories ordered by title, restricted
	// to public ones when publicOnly is set.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]*models.Category, error)

	// AddChannel is idempotent.
	AddChannel(ctx context.Context, categoryID, channelID uuid.UUID) error
	RemoveChannel(ctx context.Context, categoryID, channelID uuid.UUID) error
	ListChannels(ctx context.Context, categoryID uuid.UUID) ([]*models.Channel, error)
}

const categoryColumns = `id, owner_id, title, slug, public, created_at, updated_at`

type categoryRepository struct {
	db db.Querier
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(q db.Querier) CategoryRepository {
	return &categoryRepository{db: q}
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, owner_id, title, slug, public, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		category.ID,
		category.OwnerID,
		category.Title,
		category.Slug,
		category.Public,
		category.CreatedAt,
		category.UpdatedAt,
	)
	return db.WrapError(err, "create category")
}

func (r *categoryRepository) Update(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories
		SET title = $2, slug = $3, public = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query,
		category.ID,
		category.Title,
		category.Slug,
		category.Public,
		category.UpdatedAt,
	)
	if err != nil {
		return db.WrapError(err, "update category")
	}
	if tag.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "update category")
	}
	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete category")
	}
	if tag.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete category")
	}
	return nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	category, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get category by id")
	}
	return category, nil
}

func (r *categoryRepository) GetByOwnerAndSlug(ctx context.Context, ownerID uuid.UUID, slug string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE owner_id = $1 AND slug = $2`

	category, err := scanCategory(r.db.QueryRow(ctx, query, ownerID, slug))
	if err != nil {
		return nil, db.WrapError(err, "get category by slug")
	}
	return category, nil
}

func (r *categoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE owner_id = $1 AND (public OR NOT $2)
		ORDER BY title
	`

	rows, err := r.db.Query(ctx, query, ownerID, publicOnly)
	if err != nil {
		return nil, db.WrapError(err, "list categories")
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan category")
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate categories")
	}

	return categories, nil
}

func (r *categoryRepository) AddChannel(ctx context.Context, categoryID, channelID uuid.UUID) error {
	query := `
		INSERT INTO category_channels (category_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, categoryID, channelID)
	return db.WrapError(err, "add channel to category")
}

func (r *categoryRepository) RemoveChannel(ctx context.Context, categoryID, channelID uuid.UUID) error {
	query := `DELETE FROM category_channels WHERE category_id = $1 AND channel_id = $2`

	tag, err := r.db.Exec(ctx, query, categoryID, channelID)
	if err != nil {
		return db.WrapError(err, "remove channel from category")
	}
	if tag.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "remove channel from category")
	}
	return nil
}

func (r *categoryRepository) ListChannels(ctx context.Context, categoryID uuid.UUID) ([]*models.Channel, error) {
	query := `
		SELECT c.id, c.title, c.url, c.feed_url, c.created_at, c.updated_at
		FROM channels c
		JOIN category_channels cc ON cc.channel_id = c.id
		WHERE cc.category_id = $1
		ORDER BY c.title, c.id
	`

	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, db.WrapError(err, "list category channels")
	}
	defer rows.Close()

	return scanChannels(rows)
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	category := &models.Category{}
	err := row.Scan(
		&category.ID,
		&category.OwnerID,
		&category.Title,
		&category.Slug,
		&category.Public,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return category, nil
}
