package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// CategoryStore persists categories and their channel membership.
type CategoryStore interface {
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]*models.Category, error)
	AddChannel(ctx context.Context, categoryID, channelID uuid.UUID) error
	RemoveChannel(ctx context.Context, categoryID, channelID uuid.UUID) error
	ListChannels(ctx context.Context, categoryID uuid.UUID) ([]*models.Channel, error)
}

// CategoryUpdate carries the fields to change. Nil fields are left alone.
type CategoryUpdate struct {
	Title  *string
	Public *bool
}

// CategoryService manages a user's own categories. Every method takes the
// acting user and treats categories of other users as absent.
type CategoryService struct {
	store  CategoryStore
	logger *zap.Logger
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(store CategoryStore, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{store: store, logger: logger}
}

// Create adds a category for owner. New categories are private unless public
// is set.
func (s *CategoryService) Create(ctx context.Context, owner *models.User, title string, public bool) (*models.Category, error) {
	if owner == nil {
		return nil, ErrNotFound
	}
	category := models.NewCategory(owner.ID, strings.TrimSpace(title), public)
	if category.Slug == "" {
		return nil, ErrInvalidCategoryTitle
	}

	if err := s.store.Create(ctx, category); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: %q", ErrCategoryConflict, category.Title)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category created",
		zap.String("category_id", category.ID.String()),
		zap.String("owner", owner.Username),
		zap.String("slug", category.Slug),
	)
	return category, nil
}

// Owned returns category id if owner owns it.
func (s *CategoryService) Owned(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Category, error) {
	if owner == nil {
		return nil, ErrNotFound
	}
	category, err := s.store.GetByID(ctx, id)
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category.OwnerID != owner.ID {
		return nil, ErrNotFound
	}
	return category, nil
}

// Update edits title and visibility. A new title also replaces the slug.
func (s *CategoryService) Update(ctx context.Context, owner *models.User, id uuid.UUID, upd CategoryUpdate) (*models.Category, error) {
	category, err := s.Owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		category.Rename(title)
		if category.Slug == "" {
			return nil, ErrInvalidCategoryTitle
		}
	}
	if upd.Public != nil {
		category.Public = *upd.Public
	}

	if err := s.store.Update(ctx, category); err != nil {
		switch {
		case db.IsDuplicateKey(err):
			return nil, fmt.Errorf("%w: %q", ErrCategoryConflict, category.Title)
		case db.IsNotFound(err):
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("update category: %w", err)
		}
	}
	return category, nil
}

// Delete removes the category and its memberships. Channels stay.
func (s *CategoryService) Delete(ctx context.Context, owner *models.User, id uuid.UUID) error {
	if _, err := s.Owned(ctx, owner, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// List returns all of owner's categories ordered by title.
func (s *CategoryService) List(ctx context.Context, owner *models.User) ([]*models.Category, error) {
	if owner == nil {
		return nil, ErrNotFound
	}
	categories, err := s.store.ListByOwner(ctx, owner.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// AddChannel puts a channel into one of owner's categories. Adding a member
// twice is a no-op.
func (s *CategoryService) AddChannel(ctx context.Context, owner *models.User, categoryID, channelID uuid.UUID) error {
	if _, err := s.Owned(ctx, owner, categoryID); err != nil {
		return err
	}
	if err := s.store.AddChannel(ctx, categoryID, channelID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrChannelNotFound
		}
		return fmt.Errorf("add channel to category: %w", err)
	}
	return nil
}

// RemoveChannel takes a channel out of one of owner's categories.
func (s *CategoryService) RemoveChannel(ctx context.Context, owner *models.User, categoryID, channelID uuid.UUID) error {
	if _, err := s.Owned(ctx, owner, categoryID); err != nil {
		return err
	}
	if err := s.store.RemoveChannel(ctx, categoryID, channelID); err != nil {
		if db.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove channel from category: %w", err)
	}
	return nil
}

// ListChannels returns the channels of one of owner's categories.
func (s *CategoryService) ListChannels(ctx context.Context, owner *models.User, categoryID uuid.UUID) ([]*models.Channel, error) {
	if _, err := s.Owned(ctx, owner, categoryID); err != nil {
		return nil, err
	}
	channels, err := s.store.ListChannels(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list category channels: %w", err)
	}
	return channels, nil
}
