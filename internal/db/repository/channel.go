package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

// ChannelRepository defines operations for managing tracked channels.
type ChannelRepository interface {
	// Create inserts a new channel. A second channel with the same feed URL
	// fails with db.ErrDuplicateKey.
	Create(ctx context.Context, channel *models.Channel) error

	// GetByID retrieves a channel by id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error)

	// GetByFeedURL retrieves the channel polling feedURL.
	GetByFeedURL(ctx context.Context, feedURL string) (*models.Channel, error)

	// List returns every channel ordered by title.
	List(ctx context.Context) ([]*models.Channel, error)

	// ListByIDs returns the channels among ids that exist.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Channel, error)

	// Delete removes a channel together with its videos and memberships.
	Delete(ctx context.Context, id uuid.UUID) error
}

const channelColumns = `id, title, url, feed_url, created_at, updated_at`

type channelRepository struct {
	db db.Querier
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(q db.Querier) ChannelRepository {
	return &channelRepository{db: q}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (id, title, url, feed_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		channel.ID,
		channel.Title,
		channel.URL,
		channel.FeedURL,
		channel.CreatedAt,
		channel.UpdatedAt,
	).Scan(&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "create channel")
	}

	return nil
}

func (r *channelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	channel, err := scanChannel(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get channel by id")
	}
	return channel, nil
}

func (r *channelRepository) GetByFeedURL(ctx context.Context, feedURL string) (*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE feed_url = $1`

	channel, err := scanChannel(r.db.QueryRow(ctx, query, feedURL))
	if err != nil {
		return nil, db.WrapError(err, "get channel by feed url")
	}
	return channel, nil
}

func (r *channelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY title, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, db.WrapError(err, "list channels")
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (r *channelRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Channel, error) {
	if len(ids) == 0 {
		return []*models.Channel{}, nil
	}

	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = ANY($1) ORDER BY title, id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, db.WrapError(err, "list channels by ids")
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (r *channelRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete channel")
	}
	if tag.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "delete channel")
	}
	return nil
}

func scanChannel(row pgx.Row) (*models.Channel, error) {
	channel := &models.Channel{}
	err := row.Scan(
		&channel.ID,
		&channel.Title,
		&channel.URL,
		&channel.FeedURL,
		&channel.CreatedAt,
		&channel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func scanChannels(rows pgx.Rows) ([]*models.Channel, error) {
	channels := []*models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, db.WrapError(err, "scan channel")
		}
		channels = append(channels, channel)
	}

	if err := rows.Err(); err != nil {
		return nil, db.WrapError(err, "iterate channels")
	}

	return channels, nil
}
