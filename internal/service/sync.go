package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
	"github.com/mediafeed/mediafeed-go/internal/fetch"
	"github.com/mediafeed/mediafeed-go/internal/metrics"
	"github.com/mediafeed/mediafeed-go/internal/parser"
)

// DefaultSyncConcurrency bounds SyncAll when no concurrency is configured.
const DefaultSyncConcurrency = 4

// VideoStore persists videos together with their raw feed entry.
type VideoStore interface {
	CreateWithRawEntry(ctx context.Context, video *models.Video, payload string) error
	ExistingVideoIDs(ctx context.Context, ids []string) (map[string]uuid.UUID, error)
}

// ChannelLister loads channels for batch syncs.
type ChannelLister interface {
	List(ctx context.Context) ([]*models.Channel, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Channel, error)
}

// KnownVideoSet is a fast, possibly incomplete view of the video ids stored
// under each channel.
type KnownVideoSet interface {
	Known(ctx context.Context, channelID uuid.UUID, ids []string) (map[string]struct{}, error)
	Add(ctx context.Context, channelID uuid.UUID, ids ...string) error
}

// VideoEventPublisher announces newly stored videos.
type VideoEventPublisher interface {
	PublishVideoCreated(ctx context.Context, video *models.Video) error
}

// SyncResult is the outcome of syncing one channel.
type SyncResult struct {
	ChannelID uuid.UUID
	Channel   *models.Channel
	Created   []*models.Video
	Err       error
}

// SyncOption configures a SyncEngine.
type SyncOption func(*SyncEngine)

// WithKnownVideos consults set before the database when checking ids.
func WithKnownVideos(set KnownVideoSet) SyncOption {
	return func(e *SyncEngine) { e.known = set }
}

// WithPublisher publishes an event per created video.
func WithPublisher(p VideoEventPublisher) SyncOption {
	return func(e *SyncEngine) { e.publisher = p }
}

// WithMetrics records sync outcomes in m.
func WithMetrics(m *metrics.Metrics) SyncOption {
	return func(e *SyncEngine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SyncOption {
	return func(e *SyncEngine) { e.logger = l }
}

// WithConcurrency bounds the number of channels SyncAll fetches at once.
func WithConcurrency(n int) SyncOption {
	return func(e *SyncEngine) { e.concurrency = n }
}

// SyncEngine fetches channel feeds and stores the videos it has not seen.
type SyncEngine struct {
	fetcher     fetch.Fetcher
	channels    ChannelLister
	videos      VideoStore
	known       KnownVideoSet
	publisher   VideoEventPublisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	concurrency int
}

// NewSyncEngine creates a SyncEngine.
func NewSyncEngine(fetcher fetch.Fetcher, channels ChannelLister, videos VideoStore, opts ...SyncOption) *SyncEngine {
	e := &SyncEngine{
		fetcher:     fetcher,
		channels:    channels,
		videos:      videos,
		concurrency: DefaultSyncConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// FetchFeed downloads and parses the feed at feedURL.
func (e *SyncEngine) FetchFeed(ctx context.Context, feedURL string) (*parser.Feed, error) {
	resp, err := e.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnreachable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFeedUnreachable, resp.StatusCode, feedURL)
	}
	return parser.Parse(resp.Body)
}

type candidate struct {
	video *models.Video
	raw   string
}

// SyncChannel stores every entry of the channel's feed whose video id is not
// stored yet, in feed order, and returns the videos it created. On a storage
// failure the videos created before it are returned along with the error.
func (e *SyncEngine) SyncChannel(ctx context.Context, channel *models.Channel) (created []*models.Video, err error) {
	start := time.Now()
	defer func() {
		e.metrics.SyncDuration.Observe(time.Since(start).Seconds())
		e.metrics.SyncRuns.WithLabelValues(resultLabel(err)).Inc()
	}()

	feed, err := e.FetchFeed(ctx, channel.FeedURL)
	if err != nil {
		return nil, err
	}

	candidates := e.candidates(channel, feed.Entries)
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.video.VideoID
	}
	known, err := e.knownIDs(ctx, channel.ID, ids)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if _, ok := known[c.video.VideoID]; ok {
			continue
		}
		createErr := e.videos.CreateWithRawEntry(ctx, c.video, c.raw)
		if errors.Is(createErr, db.ErrDuplicateKey) {
			e.metrics.DuplicateVideos.Inc()
			e.logger.Debug("video stored concurrently, skipping",
				zap.String("video_id", c.video.VideoID),
				zap.String("channel_id", channel.ID.String()),
				zap.String("constraint", db.Constraint(createErr)),
			)
			continue
		}
		if createErr != nil {
			err = fmt.Errorf("store video %s: %w", c.video.VideoID, createErr)
			break
		}
		created = append(created, c.video)
	}

	e.afterCreate(ctx, channel.ID, created)

	e.logger.Info("channel synced",
		zap.String("channel_id", channel.ID.String()),
		zap.Int("entries", len(feed.Entries)),
		zap.Int("created", len(created)),
	)
	return created, err
}

func (e *SyncEngine) candidates(channel *models.Channel, entries []parser.Entry) []candidate {
	seen := make(map[string]struct{}, len(entries))
	out := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		v := models.NewVideo(entry.VideoID, channel.ID, entry.Title, entry.Link, entry.ThumbnailURL, entry.Published)
		if v.VideoID == "" {
			e.metrics.SkippedEntries.WithLabelValues("missing_id").Inc()
			e.logger.Warn("feed entry has no video id",
				zap.String("channel_id", channel.ID.String()),
				zap.String("link", entry.Link),
			)
			continue
		}
		if _, dup := seen[v.VideoID]; dup {
			e.metrics.SkippedEntries.WithLabelValues("repeated_in_feed").Inc()
			continue
		}
		seen[v.VideoID] = struct{}{}
		out = append(out, candidate{video: v, raw: entry.Raw})
	}
	return out
}

// knownIDs answers from the channel's known-video set first and checks only
// its misses in the database. A set failure falls back to the database alone.
// Only ids stored under this channel are written back to its set.
func (e *SyncEngine) knownIDs(ctx context.Context, channelID uuid.UUID, ids []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(ids))
	misses := ids

	if e.known != nil {
		hits, err := e.known.Known(ctx, channelID, ids)
		if err != nil {
			e.logger.Warn("known-video set unavailable", zap.Error(err))
			hits = nil
		}
		misses = make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := hits[id]; ok {
				known[id] = struct{}{}
				continue
			}
			misses = append(misses, id)
		}
		e.metrics.CacheHits.Add(float64(len(ids) - len(misses)))
		e.metrics.CacheMisses.Add(float64(len(misses)))
	}

	if len(misses) == 0 {
		return known, nil
	}

	stored, err := e.videos.ExistingVideoIDs(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("check existing videos: %w", err)
	}
	backfill := make([]string, 0, len(stored))
	for id, owner := range stored {
		known[id] = struct{}{}
		if owner == channelID {
			backfill = append(backfill, id)
		}
	}
	if e.known != nil && len(backfill) > 0 {
		if err := e.known.Add(ctx, channelID, backfill...); err != nil {
			e.logger.Warn("failed to backfill known-video set", zap.Error(err))
		}
	}
	return known, nil
}

func (e *SyncEngine) afterCreate(ctx context.Context, channelID uuid.UUID, created []*models.Video) {
	if len(created) == 0 {
		return
	}
	e.metrics.VideosCreated.Add(float64(len(created)))

	if e.known != nil {
		ids := make([]string, len(created))
		for i, v := range created {
			ids[i] = v.VideoID
		}
		if err := e.known.Add(ctx, channelID, ids...); err != nil {
			e.logger.Warn("failed to update known-video set", zap.Error(err))
		}
	}

	if e.publisher == nil {
		return
	}
	for _, v := range created {
		if err := e.publisher.PublishVideoCreated(ctx, v); err != nil {
			e.logger.Warn("failed to publish video event",
				zap.String("video_id", v.VideoID),
				zap.Error(err),
			)
		}
	}
}

// SyncAll syncs channels concurrently. Every channel gets its own result and
// a failing channel never stops the others.
func (e *SyncEngine) SyncAll(ctx context.Context, channels []*models.Channel) map[uuid.UUID]*SyncResult {
	results := make(map[uuid.UUID]*SyncResult, len(channels))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, ch := range channels {
		if _, dup := results[ch.ID]; dup {
			continue
		}
		res := &SyncResult{ChannelID: ch.ID, Channel: ch}
		results[ch.ID] = res
		g.Go(func() error {
			res.Created, res.Err = e.SyncChannel(ctx, ch)
			if res.Err != nil {
				e.logger.Warn("channel sync failed",
					zap.String("channel_id", ch.ID.String()),
					zap.String("feed_url", ch.FeedURL),
					zap.Error(res.Err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// SyncByIDs loads the given channels, or every channel when ids is empty, and
// syncs them. Ids with no channel get an ErrChannelNotFound result.
func (e *SyncEngine) SyncByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*SyncResult, error) {
	var (
		channels []*models.Channel
		err      error
	)
	if len(ids) == 0 {
		channels, err = e.channels.List(ctx)
	} else {
		channels, err = e.channels.ListByIDs(ctx, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}

	results := e.SyncAll(ctx, channels)
	for _, id := range ids {
		if _, ok := results[id]; !ok {
			results[id] = &SyncResult{ChannelID: id, Err: ErrChannelNotFound}
		}
	}
	return results, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrFeedUnreachable):
		return metrics.ResultUnreachable
	case errors.Is(err, ErrMalformedFeed):
		return metrics.ResultMalformed
	default:
		return metrics.ResultError
	}
}
