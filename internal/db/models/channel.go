package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a tracked publisher whose feed is polled for new videos.
type Channel struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	URL       string    `db:"url" json:"url"`
	FeedURL   string    `db:"feed_url" json:"feed_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewChannel creates a Channel with a fresh id. feedURL must already be
// resolved from pageURL.
func NewChannel(title, pageURL, feedURL string) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:        uuid.New(),
		Title:     title,
		URL:       pageURL,
		FeedURL:   feedURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
