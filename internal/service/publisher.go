package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mediafeed/mediafeed-go/internal/config"
	"github.com/mediafeed/mediafeed-go/internal/db/models"
)

const confirmTimeout = 5 * time.Second

// VideoEvent is the message body published for each newly stored video.
type VideoEvent struct {
	VideoID      string    `json:"video_id"`
	ChannelID    uuid.UUID `json:"channel_id"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	PublishedAt  time.Time `json:"published_at"`
}

// NewVideoEvent builds the event for v.
func NewVideoEvent(v *models.Video) VideoEvent {
	return VideoEvent{
		VideoID:      v.VideoID,
		ChannelID:    v.ChannelID,
		Title:        v.Title,
		URL:          v.URL,
		ThumbnailURL: v.ThumbnailURL,
		PublishedAt:  v.PublishedAt,
	}
}

// MessagePublisher publishes video events to a durable topic exchange with
// publisher confirms.
type MessagePublisher struct {
	cfg      config.RabbitMQConfig
	logger   *zap.Logger
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
}

// NewMessagePublisher dials the broker and declares the exchange.
func NewMessagePublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*MessagePublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MessagePublisher{cfg: cfg, logger: logger}
	if err := mp.connect(); err != nil {
		return nil, err
	}
	return mp, nil
}

func (mp *MessagePublisher) connect() error {
	conn, err := amqp.Dial(mp.cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(
		mp.cfg.Exchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	mp.conn = conn
	mp.channel = ch
	mp.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	mp.logger.Info("connected to RabbitMQ", zap.String("exchange", mp.cfg.Exchange))
	return nil
}

// PublishVideoCreated publishes one event and waits for the broker ack.
func (mp *MessagePublisher) PublishVideoCreated(ctx context.Context, v *models.Video) error {
	body, err := json.Marshal(NewVideoEvent(v))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Confirms arrive in publish order on a single channel, so publishes
	// are serialised to pair each one with its ack.
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.channel == nil {
		return errors.New("publisher is closed")
	}

	tag := mp.channel.GetNextPublishSeqNo()
	err = mp.channel.PublishWithContext(ctx,
		mp.cfg.Exchange,
		mp.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    v.VideoID,
			Type:         mp.cfg.RoutingKey,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	if err := awaitConfirm(ctx, mp.confirms, tag, confirmTimeout); err != nil {
		return err
	}

	mp.logger.Debug("published video event",
		zap.String("video_id", v.VideoID),
		zap.String("routing_key", mp.cfg.RoutingKey),
	)
	return nil
}

// awaitConfirm waits for the confirmation of the message published with tag.
// Confirmations for earlier tags belong to publishes that already gave up
// waiting and are discarded.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, tag uint64, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return errors.New("channel closed before confirmation")
			}
			if confirm.DeliveryTag < tag {
				continue
			}
			if confirm.DeliveryTag > tag {
				return fmt.Errorf("confirmation for tag %d skipped past %d", confirm.DeliveryTag, tag)
			}
			if !confirm.Ack {
				return errors.New("message was not acknowledged by broker")
			}
			return nil
		case <-timer.C:
			return errors.New("timeout waiting for publish confirmation")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsHealthy reports whether the connection is open.
func (mp *MessagePublisher) IsHealthy() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.conn != nil && !mp.conn.IsClosed() && mp.channel != nil
}

// Close closes the channel and the connection.
func (mp *MessagePublisher) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var errs []error
	if mp.channel != nil {
		errs = append(errs, mp.channel.Close())
		mp.channel = nil
	}
	if mp.conn != nil {
		errs = append(errs, mp.conn.Close())
		mp.conn = nil
	}
	return errors.Join(errs...)
}
