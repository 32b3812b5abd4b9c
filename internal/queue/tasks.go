package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeSyncChannel syncs one channel's feed.
const TypeSyncChannel = "feed:sync_channel"

// SyncChannelPayload is the payload of a TypeSyncChannel task.
type SyncChannelPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

// NewSyncChannelTask builds the task for channelID.
func NewSyncChannelTask(channelID uuid.UUID) (*asynq.Task, error) {
	if channelID == uuid.Nil {
		return nil, fmt.Errorf("channel ID is required")
	}
	payload, err := json.Marshal(SyncChannelPayload{ChannelID: channelID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSyncChannel, payload), nil
}

// UnmarshalSyncChannelPayload decodes a TypeSyncChannel payload.
func UnmarshalSyncChannelPayload(data []byte) (*SyncChannelPayload, error) {
	var payload SyncChannelPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.ChannelID == uuid.Nil {
		return nil, fmt.Errorf("payload has no channel ID")
	}
	return &payload, nil
}
