package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// UserFinder looks users up by name.
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// CategoryFinder reads an owner's categories.
type CategoryFinder interface {
	GetByOwnerAndSlug(ctx context.Context, ownerID uuid.UUID, slug string) (*models.Category, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]*models.Category, error)
}

// PeriodVideos selects the videos of categories for a period selector.
type PeriodVideos interface {
	VideosForPeriod(ctx context.Context, categories []*models.Category, selector string) ([]*models.Video, error)
}

// CategoryPage is everything a viewer sees on one category.
type CategoryPage struct {
	Category   *models.Category
	Categories []*models.Category
	Videos     []*models.Video
}

// AccessGate decides what a viewer may see of another user's categories.
// The owner sees everything; anyone else, anonymous viewers included, sees
// public categories only. Absent and hidden resources both yield ErrNotFound.
type AccessGate struct {
	users      UserFinder
	categories CategoryFinder
	videos     PeriodVideos
}

// NewAccessGate creates an AccessGate.
func NewAccessGate(users UserFinder, categories CategoryFinder, videos PeriodVideos) *AccessGate {
	return &AccessGate{
		users:      users,
		categories: categories,
		videos:     videos,
	}
}

func (g *AccessGate) target(ctx context.Context, username string) (*models.User, error) {
	owner, err := g.users.GetByUsername(ctx, username)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up user %q: %w", username, err)
	}
	return owner, nil
}

// ResolveCategory returns the category slug of username together with the
// categories listed beside it. viewer may be nil.
func (g *AccessGate) ResolveCategory(ctx context.Context, viewer *models.User, username, slug string) (*models.Category, []*models.Category, error) {
	owner, err := g.target(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	isOwner := viewer.Is(owner)

	category, err := g.categories.GetByOwnerAndSlug(ctx, owner.ID, slug)
	if db.IsNotFound(err) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("look up category %q: %w", slug, err)
	}
	if !isOwner && !category.Public {
		return nil, nil, ErrNotFound
	}

	listing, err := g.categories.ListByOwner(ctx, owner.ID, !isOwner)
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	return category, listing, nil
}

// ResolveUserPage returns the categories of username visible to viewer and
// their videos for selector. An empty selector means DefaultPeriod. A
// non-owner looking at a user with no public categories gets ErrNotFound.
func (g *AccessGate) ResolveUserPage(ctx context.Context, viewer *models.User, username, selector string) ([]*models.Category, []*models.Video, error) {
	owner, err := g.target(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	isOwner := viewer.Is(owner)

	categories, err := g.categories.ListByOwner(ctx, owner.ID, !isOwner)
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	if !isOwner && len(categories) == 0 {
		return nil, nil, ErrNotFound
	}

	videos, err := g.videos.VideosForPeriod(ctx, categories, periodOrDefault(selector))
	if err != nil {
		return nil, nil, err
	}
	return categories, videos, nil
}

// CategoryPage resolves a category and loads its videos for selector.
func (g *AccessGate) CategoryPage(ctx context.Context, viewer *models.User, username, slug, selector string) (*CategoryPage, error) {
	category, listing, err := g.ResolveCategory(ctx, viewer, username, slug)
	if err != nil {
		return nil, err
	}

	videos, err := g.videos.VideosForPeriod(ctx, []*models.Category{category}, periodOrDefault(selector))
	if err != nil {
		return nil, err
	}
	return &CategoryPage{
		Category:   category,
		Categories: listing,
		Videos:     videos,
	}, nil
}

func periodOrDefault(selector string) string {
	if selector == "" {
		return DefaultPeriod
	}
	return selector
}
