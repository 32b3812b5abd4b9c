package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

type mockCategoryStore struct {
	mock.Mock
}

func (m *mockCategoryStore) Create(ctx context.Context, category *models.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCategoryStore) Update(ctx context.Context, category *models.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *mockCategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, id)
	if c := args.Get(0); c != nil {
		return c.(*models.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCategoryStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, publicOnly bool) ([]*models.Category, error) {
	args := m.Called(ctx, ownerID, publicOnly)
	if c := args.Get(0); c != nil {
		return c.([]*models.Category), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCategoryStore) AddChannel(ctx context.Context, categoryID, channelID uuid.UUID) error {
	return m.Called(ctx, categoryID, channelID).Error(0)
}

func (m *mockCategoryStore) RemoveChannel(ctx context.Context, categoryID, channelID uuid.UUID) error {
	return m.Called(ctx, categoryID, channelID).Error(0)
}

func (m *mockCategoryStore) ListChannels(ctx context.Context, categoryID uuid.UUID) ([]*models.Channel, error) {
	args := m.Called(ctx, categoryID)
	if c := args.Get(0); c != nil {
		return c.([]*models.Channel), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCategoryService_Create(t *testing.T) {
	ctx := context.Background()
	owner := &models.User{ID: uuid.New(), Username: "alice"}

	t.Run("derives slug and defaults to private", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("Create", ctx, mock.MatchedBy(func(c *models.Category) bool {
			return c.OwnerID == owner.ID && c.Title == "Category Title" && c.Slug == "category-title" && !c.Public
		})).Return(nil)

		cat, err := NewCategoryService(store, nil).Create(ctx, owner, "  Category Title ", false)
		require.NoError(t, err)
		assert.Equal(t, "category-title", cat.Slug)
		store.AssertExpectations(t)
	})

	t.Run("title without letters or digits", func(t *testing.T) {
		store := new(mockCategoryStore)
		_, err := NewCategoryService(store, nil).Create(ctx, owner, "!!! ---", true)
		assert.ErrorIs(t, err, ErrInvalidCategoryTitle)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate slug for the same owner", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("Create", ctx, mock.Anything).
			Return(fmt.Errorf("create category: %w (constraint: categories_owner_slug_key)", db.ErrDuplicateKey))

		_, err := NewCategoryService(store, nil).Create(ctx, owner, "Category title", false)
		assert.ErrorIs(t, err, ErrCategoryConflict)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := NewCategoryService(new(mockCategoryStore), nil).Create(ctx, nil, "x", false)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCategoryService_Update(t *testing.T) {
	ctx := context.Background()
	owner := &models.User{ID: uuid.New(), Username: "alice"}
	other := &models.User{ID: uuid.New(), Username: "bob"}

	newTitle := "Retro Computing"
	public := true

	t.Run("rename recomputes slug", func(t *testing.T) {
		store := new(mockCategoryStore)
		cat := models.NewCategory(owner.ID, "Old Title", false)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("Update", ctx, cat).Return(nil)

		got, err := NewCategoryService(store, nil).Update(ctx, owner, cat.ID, CategoryUpdate{Title: &newTitle, Public: &public})
		require.NoError(t, err)
		assert.Equal(t, "Retro Computing", got.Title)
		assert.Equal(t, "retro-computing", got.Slug)
		assert.True(t, got.Public)
	})

	t.Run("visibility only keeps slug", func(t *testing.T) {
		store := new(mockCategoryStore)
		cat := models.NewCategory(owner.ID, "Old Title", false)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("Update", ctx, cat).Return(nil)

		got, err := NewCategoryService(store, nil).Update(ctx, owner, cat.ID, CategoryUpdate{Public: &public})
		require.NoError(t, err)
		assert.Equal(t, "old-title", got.Slug)
	})

	t.Run("foreign category looks absent", func(t *testing.T) {
		store := new(mockCategoryStore)
		cat := models.NewCategory(owner.ID, "Old Title", false)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)

		_, err := NewCategoryService(store, nil).Update(ctx, other, cat.ID, CategoryUpdate{Title: &newTitle})
		assert.ErrorIs(t, err, ErrNotFound)
		store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("missing category", func(t *testing.T) {
		store := new(mockCategoryStore)
		id := uuid.New()
		store.On("GetByID", ctx, id).Return(nil, fmt.Errorf("get category by id: %w", db.ErrNotFound))

		_, err := NewCategoryService(store, nil).Update(ctx, owner, id, CategoryUpdate{Public: &public})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rename onto an existing title", func(t *testing.T) {
		store := new(mockCategoryStore)
		cat := models.NewCategory(owner.ID, "Old Title", false)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("Update", ctx, cat).Return(fmt.Errorf("update category: %w", db.ErrDuplicateKey))

		_, err := NewCategoryService(store, nil).Update(ctx, owner, cat.ID, CategoryUpdate{Title: &newTitle})
		assert.ErrorIs(t, err, ErrCategoryConflict)
	})
}

func TestCategoryService_Membership(t *testing.T) {
	ctx := context.Background()
	owner := &models.User{ID: uuid.New(), Username: "alice"}
	other := &models.User{ID: uuid.New(), Username: "bob"}
	cat := models.NewCategory(owner.ID, "Electronics", true)
	channelID := uuid.New()

	t.Run("add", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("AddChannel", ctx, cat.ID, channelID).Return(nil)

		require.NoError(t, NewCategoryService(store, nil).AddChannel(ctx, owner, cat.ID, channelID))
		store.AssertExpectations(t)
	})

	t.Run("add unknown channel", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("AddChannel", ctx, cat.ID, channelID).
			Return(fmt.Errorf("add channel to category: %w", db.ErrForeignKeyViolation))

		err := NewCategoryService(store, nil).AddChannel(ctx, owner, cat.ID, channelID)
		assert.ErrorIs(t, err, ErrChannelNotFound)
	})

	t.Run("add to foreign category", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)

		err := NewCategoryService(store, nil).AddChannel(ctx, other, cat.ID, channelID)
		assert.ErrorIs(t, err, ErrNotFound)
		store.AssertNotCalled(t, "AddChannel", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remove non-member", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("RemoveChannel", ctx, cat.ID, channelID).
			Return(fmt.Errorf("remove channel from category: %w", db.ErrNotFound))

		err := NewCategoryService(store, nil).RemoveChannel(ctx, owner, cat.ID, channelID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list channels", func(t *testing.T) {
		store := new(mockCategoryStore)
		channels := []*models.Channel{{ID: channelID, Title: "Arduino"}}
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("ListChannels", ctx, cat.ID).Return(channels, nil)

		got, err := NewCategoryService(store, nil).ListChannels(ctx, owner, cat.ID)
		require.NoError(t, err)
		assert.Equal(t, channels, got)
	})

	t.Run("delete", func(t *testing.T) {
		store := new(mockCategoryStore)
		store.On("GetByID", ctx, cat.ID).Return(cat, nil)
		store.On("Delete", ctx, cat.ID).Return(nil)

		require.NoError(t, NewCategoryService(store, nil).Delete(ctx, owner, cat.ID))
		assert.ErrorIs(t, NewCategoryService(store, nil).Delete(ctx, other, cat.ID), ErrNotFound)
		store.AssertNumberOfCalls(t, "Delete", 1)
	})
}
