package gridfilter

import (
	"log/slog"
	"time"

	"github.com/hupe1980/gridfilter/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resourceConfig   resource.Config
	clock            func() time.Time

	guardWindow   time.Duration
	bulkThreshold time.Duration
	quietPeriod   time.Duration

	deltaRebuildThreshold int
	typeSampleSize        int
}

// Option configures Engine constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. timing-specific constructor variants).
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := gridfilter.NewJSONLogger(slog.LevelInfo)
//	eng, _ := gridfilter.New(gridfilter.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &gridfilter.BasicMetricsCollector{}
//	eng, _ := gridfilter.New(gridfilter.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceConfig bounds background cache builds: concurrency and scan
// throughput.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithClock injects the clock used for synchronization timing and cache
// timestamps. Intended for tests; defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithGuardWindow overrides the circular-change guard window.
func WithGuardWindow(d time.Duration) Option {
	return func(o *options) {
		o.guardWindow = d
	}
}

// WithBulkThreshold overrides the gap below which same-source edits count
// as one bulk burst.
func WithBulkThreshold(d time.Duration) Option {
	return func(o *options) {
		o.bulkThreshold = d
	}
}

// WithQuietPeriod overrides how long a bulk burst must stay quiet before
// its deferred synchronization pass runs.
func WithQuietPeriod(d time.Duration) Option {
	return func(o *options) {
		o.quietPeriod = d
	}
}

// WithDeltaRebuildThreshold overrides the delta size above which an
// incremental cache update falls back to a full rebuild.
func WithDeltaRebuildThreshold(n int) Option {
	return func(o *options) {
		o.deltaRebuildThreshold = n
	}
}

// WithTypeSampleSize overrides how many leading non-null values type
// inference samples per column.
func WithTypeSampleSize(n int) Option {
	return func(o *options) {
		o.typeSampleSize = n
	}
}
