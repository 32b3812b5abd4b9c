// Package config loads application settings from config.yaml and APP_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mediafeed/mediafeed-go/internal/db"
	"github.com/mediafeed/mediafeed-go/internal/fetch"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Feed     FeedConfig
	Sync     SyncConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Logging  LoggingConfig
	Auth     AuthConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// FeedConfig controls feed URL resolution and outbound fetching.
type FeedConfig struct {
	BaseURL      string
	FetchTimeout time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	HostInterval time.Duration
	MaxBodySize  int64
}

// SyncConfig controls batch synchronisation.
type SyncConfig struct {
	Concurrency int
	// Interval between runs of cmd/syncer. Zero runs once and exits.
	Interval time.Duration
}

// RedisConfig enables the known-video cache and the sync task queue when
// URL is set.
type RedisConfig struct {
	URL         string
	Concurrency int
	// TaskTimeout bounds one queued channel sync.
	TaskTimeout time.Duration
}

// RabbitMQConfig contains the video event publisher settings.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled    bool
	Host       string
	User       string
	Password   string
	Exchange   string
	RoutingKey string
	Port       int
}

// URL renders the AMQP connection URL.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.User, c.Password, c.Host, c.Port)
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// AuthConfig maps usernames to their API keys.
type AuthConfig struct {
	APIKeys map[string]string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return errors.New("feed.baseurl must be set")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("feed.maxretries must not be negative, got %d", c.Feed.MaxRetries)
	}
	return nil
}

// DB converts the database section for db.NewPool.
func (c *Config) DB() *db.Config {
	return &db.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxConns:        int32(c.Database.MaxConnections),
		MinConns:        int32(c.Database.MinConnections),
		MaxConnLifetime: c.Database.MaxLifetime,
		MaxConnIdleTime: c.Database.MaxIdleTime,
	}
}

// Fetch converts the feed section for fetch.New.
func (c *Config) Fetch() fetch.Config {
	return fetch.Config{
		Timeout:      c.Feed.FetchTimeout,
		MaxRetries:   c.Feed.MaxRetries,
		RetryWait:    c.Feed.RetryWait,
		HostInterval: c.Feed.HostInterval,
		MaxBodySize:  c.Feed.MaxBodySize,
	}
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "mediafeed")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Feed
	viper.SetDefault("feed.baseurl", "https://www.youtube.com/feeds/videos.xml")
	viper.SetDefault("feed.fetchtimeout", 15*time.Second)
	viper.SetDefault("feed.maxretries", 1)
	viper.SetDefault("feed.retrywait", 1*time.Second)
	viper.SetDefault("feed.hostinterval", 200*time.Millisecond)
	viper.SetDefault("feed.maxbodysize", 10<<20)

	// Sync
	viper.SetDefault("sync.concurrency", 4)
	viper.SetDefault("sync.interval", 0)

	// Redis
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.concurrency", 4)
	viper.SetDefault("redis.tasktimeout", 5*time.Minute)

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "mediafeed.videos")
	viper.SetDefault("rabbitmq.routingkey", "video.created")

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
