package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

type mockVideoLister struct {
	mock.Mock
}

func (m *mockVideoLister) ListByCategories(ctx context.Context, categoryIDs []uuid.UUID, since *time.Time) ([]*models.Video, error) {
	args := m.Called(ctx, categoryIDs, since)
	if v := args.Get(0); v != nil {
		return v.([]*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		selector string
		want     Window
		ok       bool
	}{
		{"all", WindowAll, true},
		{"week", WindowLastWeek, true},
		{"last_24h", WindowLast24h, true},
		{"", WindowAll, false},
		{"month", WindowAll, false},
		{"WEEK", WindowAll, false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, ok := ParseWindow(tt.selector)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.selector, got.String())
			}
		})
	}
}

func TestWindow_Since(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.Nil(t, WindowAll.Since(now))
	assert.Equal(t, now.Add(-24*time.Hour), *WindowLast24h.Since(now))
	assert.Equal(t, now.Add(-7*24*time.Hour), *WindowLastWeek.Since(now))

	local := now.In(time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, time.UTC, WindowLast24h.Since(local).Location())
}

func TestVideoQuery_VideosForCategories(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	catA := &models.Category{ID: uuid.New(), Title: "A"}
	catB := &models.Category{ID: uuid.New(), Title: "B"}

	t.Run("no categories skips the store", func(t *testing.T) {
		lister := new(mockVideoLister)
		q := NewVideoQuery(lister, fixedClock(now))

		videos, err := q.VideosForCategories(ctx, nil, WindowAll)
		require.NoError(t, err)
		assert.NotNil(t, videos)
		assert.Empty(t, videos)
		lister.AssertNotCalled(t, "ListByCategories", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("passes deduplicated ids and window bound", func(t *testing.T) {
		lister := new(mockVideoLister)
		since := now.Add(-24 * time.Hour)
		want := []*models.Video{{VideoID: "newest"}, {VideoID: "older"}}
		lister.On("ListByCategories", ctx, []uuid.UUID{catA.ID, catB.ID}, &since).Return(want, nil)

		q := NewVideoQuery(lister, fixedClock(now))
		videos, err := q.VideosForCategories(ctx, []*models.Category{catA, catB, catA}, WindowLast24h)

		require.NoError(t, err)
		assert.Equal(t, want, videos)
		lister.AssertExpectations(t)
	})

	t.Run("all has no bound", func(t *testing.T) {
		lister := new(mockVideoLister)
		lister.On("ListByCategories", ctx, []uuid.UUID{catA.ID}, (*time.Time)(nil)).Return(nil, nil)

		q := NewVideoQuery(lister, fixedClock(now))
		videos, err := q.VideosForCategories(ctx, []*models.Category{catA}, WindowAll)

		require.NoError(t, err)
		assert.NotNil(t, videos)
		assert.Empty(t, videos)
		lister.AssertExpectations(t)
	})

	t.Run("store error", func(t *testing.T) {
		lister := new(mockVideoLister)
		boom := errors.New("boom")
		lister.On("ListByCategories", ctx, mock.Anything, mock.Anything).Return(nil, boom)

		q := NewVideoQuery(lister, fixedClock(now))
		_, err := q.VideosForCategories(ctx, []*models.Category{catA}, WindowLastWeek)
		assert.ErrorIs(t, err, boom)
	})
}

func TestVideoQuery_VideosForPeriod(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	cat := &models.Category{ID: uuid.New()}

	t.Run("unknown selector is empty", func(t *testing.T) {
		lister := new(mockVideoLister)
		q := NewVideoQuery(lister, fixedClock(now))

		videos, err := q.VideosForPeriod(ctx, []*models.Category{cat}, "fortnight")
		require.NoError(t, err)
		assert.NotNil(t, videos)
		assert.Empty(t, videos)
		lister.AssertNotCalled(t, "ListByCategories", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("week", func(t *testing.T) {
		lister := new(mockVideoLister)
		since := now.Add(-7 * 24 * time.Hour)
		lister.On("ListByCategories", ctx, []uuid.UUID{cat.ID}, &since).
			Return([]*models.Video{{VideoID: "w"}}, nil)

		q := NewVideoQuery(lister, fixedClock(now))
		videos, err := q.VideosForPeriod(ctx, []*models.Category{cat}, "week")

		require.NoError(t, err)
		assert.Len(t, videos, 1)
		lister.AssertExpectations(t)
	})
}
