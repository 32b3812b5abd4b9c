package queue

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisConn is a parsed Redis connection target shared by the task queue and
// the known-video set.
type RedisConn struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
}

// ParseRedisURL accepts
//
//	redis://[user:password@]host:port[/db]
//	rediss://[user:password@]host:port[/db]   (TLS)
//	host:port
func ParseRedisURL(redisURL string) (RedisConn, error) {
	var conn RedisConn

	if !strings.Contains(redisURL, "://") {
		conn.Addr = redisURL
		return conn, nil
	}

	u, err := url.Parse(redisURL)
	if err != nil {
		return conn, fmt.Errorf("invalid redis URL: %w", err)
	}

	switch u.Scheme {
	case "redis":
	case "rediss":
		conn.TLS = true
	default:
		return conn, fmt.Errorf("unsupported redis URL scheme: %s (expected 'redis' or 'rediss')", u.Scheme)
	}

	if u.Host == "" {
		return conn, fmt.Errorf("redis URL missing host")
	}
	conn.Addr = u.Host

	if u.User != nil {
		conn.Username = u.User.Username()
		conn.Password, _ = u.User.Password()
	}

	if path := strings.TrimPrefix(u.Path, "/"); path != "" {
		db, err := strconv.Atoi(path)
		if err != nil {
			return conn, fmt.Errorf("invalid database number in redis URL: %s", path)
		}
		conn.DB = db
	}

	return conn, nil
}

func (c RedisConn) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// AsynqOpt converts c for asynq clients and servers.
func (c RedisConn) AsynqOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      c.Addr,
		Username:  c.Username,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	}
}

// Options converts c for go-redis.
func (c RedisConn) Options() *redis.Options {
	return &redis.Options{
		Addr:      c.Addr,
		Username:  c.Username,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	}
}

// NewRedisClient connects to redisURL and pings it.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	conn, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(conn.Options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", conn.Addr, err)
	}
	return client, nil
}
