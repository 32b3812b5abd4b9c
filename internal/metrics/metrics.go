// Package metrics defines the Prometheus collectors for sync runs and the
// HTTP API.
package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcome labels.
const (
	ResultOK          = "ok"
	ResultUnreachable = "unreachable"
	ResultMalformed   = "malformed"
	ResultError       = "error"
)

// Metrics holds every collector. Collectors are usable before Register.
type Metrics struct {
	SyncRuns         *prometheus.CounterVec
	SyncDuration     prometheus.Histogram
	VideosCreated    prometheus.Counter
	DuplicateVideos  prometheus.Counter
	SkippedEntries   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediafeed_sync_runs_total",
				Help: "Channel sync runs, by result.",
			},
			[]string{"result"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mediafeed_sync_duration_seconds",
				Help:    "Duration of a single channel sync.",
				Buckets: prometheus.DefBuckets,
			},
		),
		VideosCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mediafeed_videos_created_total",
				Help: "Videos stored by feed sync.",
			},
		),
		DuplicateVideos: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mediafeed_duplicate_videos_total",
				Help: "Inserts that lost a race against an identical video id.",
			},
		),
		SkippedEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediafeed_skipped_entries_total",
				Help: "Feed entries dropped before storage, by reason.",
			},
			[]string{"reason"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mediafeed_known_video_cache_hits_total",
				Help: "Candidate video ids answered by the Redis known-video set.",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mediafeed_known_video_cache_misses_total",
				Help: "Candidate video ids that had to be checked in PostgreSQL.",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediafeed_http_request_duration_seconds",
				Help:    "HTTP request duration, by route, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mediafeed_http_requests_in_flight",
				Help: "HTTP requests currently being served.",
			},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.SyncRuns,
		m.SyncDuration,
		m.VideosCreated,
		m.DuplicateVideos,
		m.SkippedEntries,
		m.CacheHits,
		m.CacheMisses,
		m.RequestDuration,
		m.RequestsInFlight,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPool exposes live pgx pool statistics.
func RegisterPool(reg prometheus.Registerer, pool *pgxpool.Pool) error {
	active := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mediafeed_db_pool_acquired_connections",
			Help: "Database connections currently in use.",
		},
		func() float64 { return float64(pool.Stat().AcquiredConns()) },
	)
	idle := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mediafeed_db_pool_idle_connections",
			Help: "Idle database connections.",
		},
		func() float64 { return float64(pool.Stat().IdleConns()) },
	)
	if err := reg.Register(active); err != nil {
		return err
	}
	return reg.Register(idle)
}
