package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// VideoRepository defines operations for storing and querying videos.
type VideoRepository interface {
	// CreateWithRawEntry inserts the video and its raw feed entry in one
	// transaction. If the video id is already stored it returns
	// db.ErrDuplicateKey and writes nothing.
	CreateWithRawEntry(ctx context.Context, video *models.Video, payload string) error

	// ExistingVideoIDs returns the subset of ids already present in the
	// store, each mapped to the channel it is stored under.
	ExistingVideoIDs(ctx context.Context, ids []string) (map[string]uuid.UUID, error)

	// ListVideoIDs returns every stored video id grouped by channel.
	ListVideoIDs(ctx context.Context) (map[uuid.UUID][]string, error)

	// ListByCategories returns the distinct videos of every channel in any of
	// the categories, published at or after since when since is non-nil,
	// newest first with insertion order breaking ties.
	ListByCategories(ctx context.Context, categoryIDs []uuid.UUID, since *time.Time) ([]*models.Video, error)

	// GetRawEntry returns the serialized entry a video was created from.
	GetRawEntry(ctx context.Context, videoID string) (*models.RawFeedEntry, error)
}

type videoRepository struct {
	db db.Querier
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(q db.Querier) VideoRepository {
	return &videoRepository{db: q}
}

func (r *videoRepository) CreateWithRawEntry(ctx context.Context, video *models.Video, payload string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return db.WrapError(err, "begin video transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	insertVideo := `
		INSERT INTO videos (video_id, channel_id, title, url, thumbnail_url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id) DO NOTHING
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insertVideo,
		video.VideoID,
		video.ChannelID,
		video.Title,
		video.URL,
		video.ThumbnailURL,
		video.PublishedAt,
	).Scan(&video.ID, &video.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("create video %s: %w", video.VideoID, db.ErrDuplicateKey)
	}
	if err != nil {
		return db.WrapError(err, "create video")
	}

	insertRaw := `
		INSERT INTO raw_feed_entries (video_id, payload, content_hash)
		VALUES ($1, $2, $3)
	`
	if _, err = tx.Exec(ctx, insertRaw, video.VideoID, payload, db.ContentHash(payload)); err != nil {
		return db.WrapError(err, "create raw feed entry")
	}

	if err = tx.Commit(ctx); err != nil {
		return db.WrapError(err, "commit video transaction")
	}
	return nil
}

func (r *videoRepository) ExistingVideoIDs(ctx context.Context, ids []string) (map[string]uuid.UUID, error) {
	existing := make(map[string]uuid.UUID)
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(ctx, `SELECT video_id, channel_id FROM videos WHERE video_id = ANY($1)`, ids)
	if err != nil {
		return nil, db.WrapError(err, "check existing videos")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        string
			channelID uuid.UUID
		)
		if err := rows.Scan(&id, &channelID); err != nil {
			return nil, db.WrapError(err, "scan video id")
		}
		existing[id] = channelID
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate video ids")
	}

	return existing, nil
}

func (r *videoRepository) ListVideoIDs(ctx context.Context) (map[uuid.UUID][]string, error) {
	rows, err := r.db.Query(ctx, `SELECT channel_id, video_id FROM videos ORDER BY channel_id, id`)
	if err != nil {
		return nil, db.WrapError(err, "list video ids")
	}
	defer rows.Close()

	byChannel := make(map[uuid.UUID][]string)
	for rows.Next() {
		var (
			channelID uuid.UUID
			id        string
		)
		if err := rows.Scan(&channelID, &id); err != nil {
			return nil, db.WrapError(err, "scan video id")
		}
		byChannel[channelID] = append(byChannel[channelID], id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate video ids")
	}
	return byChannel, nil
}

func (r *videoRepository) ListByCategories(ctx context.Context, categoryIDs []uuid.UUID, since *time.Time) ([]*models.Video, error) {
	if len(categoryIDs) == 0 {
		return []*models.Video{}, nil
	}

	query := `
		SELECT id, video_id, channel_id, title, url, thumbnail_url, published_at, created_at
		FROM videos
		WHERE channel_id IN (
			SELECT channel_id FROM category_channels WHERE category_id = ANY($1)
		)
		AND ($2::timestamptz IS NULL OR published_at >= $2)
		ORDER BY published_at DESC, id ASC
	`

	rows, err := r.db.Query(ctx, query, categoryIDs, since)
	if err != nil {
		return nil, db.WrapError(err, "list videos by categories")
	}
	defer rows.Close()

	videos := []*models.Video{}
	for rows.Next() {
		v := &models.Video{}
		err := rows.Scan(
			&v.ID,
			&v.VideoID,
			&v.ChannelID,
			&v.Title,
			&v.URL,
			&v.ThumbnailURL,
			&v.PublishedAt,
			&v.CreatedAt,
		)
		if err != nil {
			return nil, db.WrapError(err, "scan video")
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate videos")
	}

	return videos, nil
}

func (r *videoRepository) GetRawEntry(ctx context.Context, videoID string) (*models.RawFeedEntry, error) {
	query := `
		SELECT id, video_id, payload, content_hash, created_at
		FROM raw_feed_entries
		WHERE video_id = $1
	`

	entry := &models.RawFeedEntry{}
	err := r.db.QueryRow(ctx, query, videoID).Scan(
		&entry.ID,
		&entry.VideoID,
		&entry.Payload,
		&entry.ContentHash,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, db.WrapError(err, "get raw feed entry")
	}
	return entry, nil
}
