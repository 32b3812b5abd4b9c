// Package fetch performs the outbound GETs for channel pages and feeds.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrBodyTooLarge is returned when a response body exceeds Config.MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher issues a plain GET and reads the whole body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Config controls timeouts, retries and per-host spacing.
type Config struct {
	// Timeout bounds a single attempt, body read included.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transport error or
	// a 429/5xx status.
	MaxRetries int
	RetryWait  time.Duration
	// HostInterval is the minimum spacing between requests to one host.
	// Zero disables spacing.
	HostInterval time.Duration
	MaxBodySize  int64
}

// DefaultConfig returns one retry, a 15s attempt timeout and a 10MB body cap.
func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		MaxRetries:   1,
		RetryWait:    time.Second,
		HostInterval: 0,
		MaxBodySize:  10 << 20,
	}
}

// HTTPFetcher is the net/http backed Fetcher.
type HTTPFetcher struct {
	client  *http.Client
	cfg     Config
	limiter *HostRateLimiter
	logger  *zap.Logger
}

// New creates an HTTPFetcher. A nil client uses a fresh http.Client.
func New(cfg Config, client *http.Client, logger *zap.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	return &HTTPFetcher{
		client:  client,
		cfg:     cfg,
		limiter: NewHostRateLimiter(cfg.HostInterval),
		logger:  logger,
	}
}

// Fetch GETs url. A non-2xx status is not an error: the last response is
// returned as-is once retries are exhausted.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.cfg.RetryWait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := f.attempt(ctx, url)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if err != nil && !retryableError(err) {
			return nil, err
		}

		if attempt < f.cfg.MaxRetries {
			f.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
		if err == nil {
			// Out of retries on a 429/5xx: hand the status to the caller.
			if attempt == f.cfg.MaxRetries {
				return resp, nil
			}
			continue
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *HTTPFetcher) attempt(ctx context.Context, url string) (*Response, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", url, err)
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > f.cfg.MaxBodySize {
		return nil, fmt.Errorf("read %s: %w (limit %d bytes)", url, ErrBodyTooLarge, f.cfg.MaxBodySize)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
