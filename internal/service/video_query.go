package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// DefaultPeriod is the selector used when a request names none.
const DefaultPeriod = "last_24h"

// Window is a publication-time filter.
type Window int

const (
	WindowAll Window = iota
	WindowLastWeek
	WindowLast24h
)

var windowSelectors = map[string]Window{
	"all":      WindowAll,
	"week":     WindowLastWeek,
	"last_24h": WindowLast24h,
}

// ParseWindow maps a period selector to a Window. ok is false for anything
// other than "all", "week" or "last_24h".
func ParseWindow(selector string) (w Window, ok bool) {
	w, ok = windowSelectors[selector]
	return w, ok
}

func (w Window) String() string {
	switch w {
	case WindowAll:
		return "all"
	case WindowLastWeek:
		return "week"
	case WindowLast24h:
		return "last_24h"
	default:
		return fmt.Sprintf("Window(%d)", int(w))
	}
}

// Since returns the inclusive lower bound on published_at, or nil for no
// bound.
func (w Window) Since(now time.Time) *time.Time {
	var since time.Time
	switch w {
	case WindowLastWeek:
		since = now.Add(-7 * 24 * time.Hour)
	case WindowLast24h:
		since = now.Add(-24 * time.Hour)
	default:
		return nil
	}
	since = since.UTC()
	return &since
}

// VideoLister returns the videos of channels in any of the given categories.
type VideoLister interface {
	ListByCategories(ctx context.Context, categoryIDs []uuid.UUID, since *time.Time) ([]*models.Video, error)
}

// VideoQuery answers which videos belong to a set of categories within a
// window, newest first.
type VideoQuery struct {
	videos VideoLister
	now    func() time.Time
}

// NewVideoQuery creates a VideoQuery. A nil now uses time.Now.
func NewVideoQuery(videos VideoLister, now func() time.Time) *VideoQuery {
	if now == nil {
		now = time.Now
	}
	return &VideoQuery{videos: videos, now: now}
}

// VideosForCategories returns the union of the categories' videos published
// inside w, ordered by published_at descending then insertion order. A video
// whose channel sits in several categories appears once.
func (q *VideoQuery) VideosForCategories(ctx context.Context, categories []*models.Category, w Window) ([]*models.Video, error) {
	if len(categories) == 0 {
		return []*models.Video{}, nil
	}

	seen := make(map[uuid.UUID]struct{}, len(categories))
	ids := make([]uuid.UUID, 0, len(categories))
	for _, c := range categories {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	videos, err := q.videos.ListByCategories(ctx, ids, w.Since(q.now()))
	if err != nil {
		return nil, fmt.Errorf("list videos for %d categories: %w", len(ids), err)
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	return videos, nil
}

// VideosForPeriod is VideosForCategories keyed by selector. An unknown
// selector yields no videos and no error.
func (q *VideoQuery) VideosForPeriod(ctx context.Context, categories []*models.Category, selector string) ([]*models.Video, error) {
	w, ok := ParseWindow(selector)
	if !ok {
		return []*models.Video{}, nil
	}
	return q.VideosForCategories(ctx, categories, w)
}
