package eventpipe

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/collector"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/observability"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/validate"
)

// pipelineConfig holds the collaborators of a Pipeline.
type pipelineConfig struct {
	logger    *slog.Logger
	store     store.Store
	validator validate.Validator
	transport collector.Transport
	now       func() time.Time
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	queueSize int
}

func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		logger:    slog.Default(),
		now:       time.Now,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		queueSize: 256,
	}
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStore supplies the durable store. The pipeline takes ownership and
// closes it in Close. Default: a SQLite file at Settings.StorePath.
func WithStore(st store.Store) Option {
	return func(c *pipelineConfig) { c.store = st }
}

// WithValidator replaces the default validate.Rules built from Settings.
func WithValidator(v validate.Validator) Option {
	return func(c *pipelineConfig) { c.validator = v }
}

// WithTransport sets the HTTP transport used for the collector.
//
// Example:
//
//	p, err := eventpipe.New(settings, eventpipe.WithTransport(&http.Client{
//	    Transport: customRoundTripper,
//	}))
func WithTransport(t collector.Transport) Option {
	return func(c *pipelineConfig) { c.transport = t }
}

// WithClock overrides the device clock.
func WithClock(now func() time.Time) Option {
	return func(c *pipelineConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics enables OpenTelemetry metrics for events, batches and
// diagnostic reports.
//
// Example:
//
//	p, err := eventpipe.New(settings, eventpipe.WithMetrics(true))
func WithMetrics(enabled bool) Option {
	return func(c *pipelineConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables one span per delivery cycle and per collector request.
func WithTracing(enabled bool) Option {
	return func(c *pipelineConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithWorkQueueSize sets how many calls may wait for the writer before
// callers block. Default: 256.
func WithWorkQueueSize(n int) Option {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}
