package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	knownVideosKeyPrefix = "mediafeed:known_videos:"
	loadBatchSize        = 1000
)

// VideoIDLister lists every stored video id grouped by channel.
type VideoIDLister interface {
	ListVideoIDs(ctx context.Context) (map[uuid.UUID][]string, error)
}

// KnownVideoCache mirrors the stored video ids in one Redis set per channel
// so repeated syncs of unchanged feeds skip the database lookup. A member is
// only ever written for the channel the video is stored under, and videos
// leave the store only when their channel is deleted. A re-added channel gets
// a new id and so starts from an empty set.
//
// A nil *KnownVideoCache is valid and knows nothing.
type KnownVideoCache struct {
	client *redis.Client
	repo   VideoIDLister
	logger *zap.Logger
}

// NewKnownVideoCache creates a KnownVideoCache.
func NewKnownVideoCache(client *redis.Client, repo VideoIDLister, logger *zap.Logger) *KnownVideoCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnownVideoCache{
		client: client,
		repo:   repo,
		logger: logger,
	}
}

func knownVideosKey(channelID uuid.UUID) string {
	return knownVideosKeyPrefix + channelID.String()
}

// LoadFromDB replaces every channel set with the ids currently stored.
func (c *KnownVideoCache) LoadFromDB(ctx context.Context) error {
	if c == nil {
		return nil
	}

	byChannel, err := c.repo.ListVideoIDs(ctx)
	if err != nil {
		return fmt.Errorf("load video ids: %w", err)
	}

	var stale []string
	iter := c.client.Scan(ctx, 0, knownVideosKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		stale = append(stale, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan known video sets: %w", err)
	}

	pipe := c.client.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	total := 0
	for channelID, ids := range byChannel {
		key := knownVideosKey(channelID)
		for start := 0; start < len(ids); start += loadBatchSize {
			end := min(start+loadBatchSize, len(ids))
			pipe.SAdd(ctx, key, toMembers(ids[start:end])...)
		}
		total += len(ids)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write known video sets: %w", err)
	}

	c.logger.Info("known video cache loaded",
		zap.Int("channels", len(byChannel)),
		zap.Int("count", total),
	)
	return nil
}

// Known returns the subset of ids present in the channel's set.
func (c *KnownVideoCache) Known(ctx context.Context, channelID uuid.UUID, ids []string) (map[string]struct{}, error) {
	known := make(map[string]struct{})
	if c == nil || len(ids) == 0 {
		return known, nil
	}

	flags, err := c.client.SMIsMember(ctx, knownVideosKey(channelID), toMembers(ids)...).Result()
	if err != nil {
		return nil, fmt.Errorf("check known videos: %w", err)
	}
	for i, ok := range flags {
		if ok {
			known[ids[i]] = struct{}{}
		}
	}
	return known, nil
}

// Add records ids as stored under the channel.
func (c *KnownVideoCache) Add(ctx context.Context, channelID uuid.UUID, ids ...string) error {
	if c == nil || len(ids) == 0 {
		return nil
	}
	if err := c.client.SAdd(ctx, knownVideosKey(channelID), toMembers(ids)...).Err(); err != nil {
		return fmt.Errorf("add known videos: %w", err)
	}
	return nil
}

// Forget drops the channel's set.
func (c *KnownVideoCache) Forget(ctx context.Context, channelID uuid.UUID) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, knownVideosKey(channelID)).Err(); err != nil {
		return fmt.Errorf("forget known videos: %w", err)
	}
	return nil
}

// Count returns the size of the channel's set.
func (c *KnownVideoCache) Count(ctx context.Context, channelID uuid.UUID) (int64, error) {
	if c == nil {
		return 0, nil
	}
	n, err := c.client.SCard(ctx, knownVideosKey(channelID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count known videos: %w", err)
	}
	return n, nil
}

func toMembers(ids []string) []any {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
