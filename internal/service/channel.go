package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/parser"
)

// ChannelStore persists channels.
type ChannelStore interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByFeedURL(ctx context.Context, feedURL string) (*models.Channel, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PageResolver turns a channel page into a feed URL and a title.
type PageResolver interface {
	Resolve(pageURL string) (string, error)
	FetchTitle(ctx context.Context, pageURL string) (*string, error)
}

// CategoryMembership checks and changes category membership on behalf of a
// user.
type CategoryMembership interface {
	Owned(ctx context.Context, owner *models.User, id uuid.UUID) (*models.Category, error)
	AddChannel(ctx context.Context, owner *models.User, categoryID, channelID uuid.UUID) error
}

// ChannelSyncer fetches feeds and syncs single channels.
type ChannelSyncer interface {
	FetchFeed(ctx context.Context, feedURL string) (*parser.Feed, error)
	SyncChannel(ctx context.Context, channel *models.Channel) ([]*models.Video, error)
}

// KnownVideoForgetter drops the known-video set of a deleted channel.
type KnownVideoForgetter interface {
	Forget(ctx context.Context, channelID uuid.UUID) error
}

// AddChannelRequest describes a channel to track.
type AddChannelRequest struct {
	URL        string
	Title      string
	CategoryID *uuid.UUID
}

// AddChannelResult reports what AddChannel did. SyncErr is the outcome of the
// initial sync, which never undoes the creation.
type AddChannelResult struct {
	Channel  *models.Channel
	Existing bool
	Created  []*models.Video
	SyncErr  error
}

// ChannelService adds and removes tracked channels.
type ChannelService struct {
	resolver   PageResolver
	channels   ChannelStore
	categories CategoryMembership
	syncer     ChannelSyncer
	known      KnownVideoForgetter
	logger     *zap.Logger
}

// NewChannelService creates a ChannelService. known may be nil.
func NewChannelService(
	resolver PageResolver,
	channels ChannelStore,
	categories CategoryMembership,
	syncer ChannelSyncer,
	known KnownVideoForgetter,
	logger *zap.Logger,
) *ChannelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelService{
		resolver:   resolver,
		channels:   channels,
		categories: categories,
		syncer:     syncer,
		known:      known,
		logger:     logger,
	}
}

// AddChannel starts tracking the channel at req.URL, or reuses the channel
// already tracking the same feed. A new channel gets an initial sync.
func (s *ChannelService) AddChannel(ctx context.Context, owner *models.User, req AddChannelRequest) (*AddChannelResult, error) {
	pageURL := NormalizePageURL(req.URL)
	feedURL, err := s.resolver.Resolve(pageURL)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil {
		if _, err := s.categories.Owned(ctx, owner, *req.CategoryID); err != nil {
			return nil, err
		}
	}

	result := &AddChannelResult{}
	channel, err := s.channels.GetByFeedURL(ctx, feedURL)
	switch {
	case err == nil:
		result.Existing = true
	case db.IsNotFound(err):
		channel, result.Existing, err = s.create(ctx, pageURL, feedURL, req.Title)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("look up channel: %w", err)
	}
	result.Channel = channel

	if req.CategoryID != nil {
		if err := s.categories.AddChannel(ctx, owner, *req.CategoryID, channel.ID); err != nil {
			return nil, err
		}
	}

	if !result.Existing {
		result.Created, result.SyncErr = s.syncer.SyncChannel(ctx, channel)
		if result.SyncErr != nil {
			s.logger.Warn("initial sync failed",
				zap.String("channel_id", channel.ID.String()),
				zap.Error(result.SyncErr),
			)
		}
	}
	return result, nil
}

func (s *ChannelService) create(ctx context.Context, pageURL, feedURL, title string) (*models.Channel, bool, error) {
	title, err := s.title(ctx, pageURL, feedURL, title)
	if err != nil {
		return nil, false, err
	}

	channel := models.NewChannel(title, pageURL, feedURL)
	err = s.channels.Create(ctx, channel)
	if db.IsDuplicateKey(err) {
		// Another request added the same feed first.
		existing, getErr := s.channels.GetByFeedURL(ctx, feedURL)
		if getErr != nil {
			return nil, false, fmt.Errorf("look up channel: %w", getErr)
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create channel: %w", err)
	}

	s.logger.Info("channel created",
		zap.String("channel_id", channel.ID.String()),
		zap.String("title", channel.Title),
		zap.String("feed_url", feedURL),
	)
	return channel, false, nil
}

// title picks the first non-empty of the given title, the title scraped from
// the page and the feed's own title.
func (s *ChannelService) title(ctx context.Context, pageURL, feedURL, given string) (string, error) {
	if t := strings.TrimSpace(given); t != "" {
		return t, nil
	}

	scraped, err := s.resolver.FetchTitle(ctx, pageURL)
	if err != nil {
		s.logger.Warn("failed to scrape channel title", zap.String("url", pageURL), zap.Error(err))
	}
	if scraped != nil && *scraped != "" {
		return *scraped, nil
	}

	feed, err := s.syncer.FetchFeed(ctx, feedURL)
	if err != nil {
		s.logger.Warn("failed to read title from feed", zap.String("feed_url", feedURL), zap.Error(err))
	}
	if feed != nil && feed.Title != "" {
		return feed.Title, nil
	}

	return "", fmt.Errorf("%w: %s", ErrChannelTitleUnavailable, pageURL)
}

// DeleteChannel removes a channel with its videos and memberships.
func (s *ChannelService) DeleteChannel(ctx context.Context, id uuid.UUID) error {
	if err := s.channels.Delete(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrChannelNotFound
		}
		return fmt.Errorf("delete channel: %w", err)
	}

	// A leftover set is unreachable: a re-added channel gets a new id.
	if s.known != nil {
		if err := s.known.Forget(ctx, id); err != nil {
			s.logger.Warn("failed to drop known-video set",
				zap.String("channel_id", id.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("channel deleted", zap.String("channel_id", id.String()))
	return nil
}
