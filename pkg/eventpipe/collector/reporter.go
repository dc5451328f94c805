package collector

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/observability"
)

// Diagnostic kinds.
const (
	ReportRejected = "rejected"
)

// DefaultReportCap is the number of delivered reports allowed per kind.
const DefaultReportCap = 10

// Reporter sends diagnostic events straight to the collector, bypassing the
// queue. Each report runs on its own goroutine with no retry; a kind stops
// being reported once DefaultReportCap (or the configured cap) of its
// reports have been delivered.
type Reporter struct {
	client      *Client
	annotations func() event.Value
	cap         int
	logger      *slog.Logger
	metrics     observability.MetricsRecorder

	mu     sync.Mutex
	counts map[string]int
	wg     sync.WaitGroup
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithReportCap sets the per-kind ceiling.
func WithReportCap(n int) ReporterOption {
	return func(r *Reporter) {
		if n >= 0 {
			r.cap = n
		}
	}
}

// WithReporterLogger sets the reporter's logger.
func WithReporterLogger(logger *slog.Logger) ReporterOption {
	return func(r *Reporter) { r.logger = logger }
}

// WithReporterMetrics sets the metrics recorder.
func WithReporterMetrics(m observability.MetricsRecorder) ReporterOption {
	return func(r *Reporter) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewReporter creates a reporter. annotations supplies the base fields of
// each diagnostic event.
func NewReporter(client *Client, annotations func() event.Value, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		client:      client,
		annotations: annotations,
		cap:         DefaultReportCap,
		logger:      slog.Default(),
		metrics:     observability.NoopMetrics{},
		counts:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report sends one diagnostic event of the given kind unless the kind has
// reached its cap. It returns immediately.
func (r *Reporter) Report(kind string) {
	if r.Count(kind) >= r.cap {
		r.metrics.RecordErrorReport(context.Background(), kind, false)
		return
	}

	payload, err := event.From(r.annotations()).SetString("type", kind).Build().MarshalJSON()
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("failed to encode sdk error event", slog.String("error", err.Error()))
		}
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.send(kind, payload)
	}()
}

func (r *Reporter) send(kind string, payload []byte) {
	ctx := context.Background()
	// A 200 counts even when the body cannot be classified.
	res, _ := r.client.SendEvents(ctx, [][]byte{payload})
	sent := res.StatusCode == http.StatusOK
	if sent {
		r.mu.Lock()
		r.counts[kind]++
		r.mu.Unlock()
	} else if r.logger != nil {
		r.logger.Debug("sdk error event not delivered",
			slog.String("type", kind),
			slog.String("outcome", res.Outcome.String()),
		)
	}
	r.metrics.RecordErrorReport(ctx, kind, sent)
}

// Count returns the number of delivered reports of kind.
func (r *Reporter) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Wait blocks until every in-flight report has finished.
func (r *Reporter) Wait() {
	r.wg.Wait()
}
