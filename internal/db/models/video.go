package models

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Video is a single feed entry. VideoID is unique across the whole store.
type Video struct {
	ID           int64     `db:"id" json:"-"`
	VideoID      string    `db:"video_id" json:"video_id"`
	ChannelID    uuid.UUID `db:"channel_id" json:"channel_id"`
	Title        string    `db:"title" json:"title"`
	URL          string    `db:"url" json:"url"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	PublishedAt  time.Time `db:"published_at" json:"published_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// NewVideo builds a Video. An empty videoID is derived from watchURL.
func NewVideo(videoID string, channelID uuid.UUID, title, watchURL, thumbnailURL string, publishedAt time.Time) *Video {
	if videoID == "" {
		videoID = ExtractVideoID(watchURL)
	}
	return &Video{
		VideoID:      videoID,
		ChannelID:    channelID,
		Title:        title,
		URL:          watchURL,
		ThumbnailURL: thumbnailURL,
		PublishedAt:  publishedAt.UTC(),
	}
}

// ExtractVideoID returns the "v" query parameter of a watch URL, or "".
func ExtractVideoID(watchURL string) string {
	u, err := url.Parse(watchURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// RawFeedEntry keeps the serialized entry a Video was created from.
type RawFeedEntry struct {
	ID          int64     `db:"id" json:"id"`
	VideoID     string    `db:"video_id" json:"video_id"`
	Payload     string    `db:"payload" json:"payload"`
	ContentHash string    `db:"content_hash" json:"content_hash"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
