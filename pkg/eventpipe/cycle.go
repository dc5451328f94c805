package eventpipe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/collector"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	eperrors "github.com/randalmurphal/eventpipe/pkg/eventpipe/errors"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/observability"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
)

// deliverer runs delivery cycles. Like the recorder it is only used from
// the writer goroutine.
type deliverer struct {
	rec       *recorder
	client    *collector.Client
	spans     observability.SpanManager
	batchSize int
}

// run executes one delivery cycle. With cleanup set, stuck claims are
// released and stale sessions are closed before claiming. Nothing runs
// while submission is disabled.
func (d *deliverer) run(ctx context.Context, filter event.Category, cleanup bool) {
	r := d.rec
	ctx, span := d.spans.StartCycleSpan(ctx, filterName(filter), cleanup)
	var cycleErr error
	defer func() { d.spans.EndSpanWithError(span, cycleErr) }()

	if !r.state.SubmissionEnabled() {
		d.spans.AddSpanEvent(ctx, "submission_disabled")
		r.logger.Debug("delivery cycle skipped", slog.String("reason", eperrors.KindSubmissionDisabled.String()))
		return
	}

	if cleanup {
		if _, err := r.queue.ResetStuck(ctx); err != nil {
			observability.LogStoreError(r.logger, "reset stuck", err)
		}
		d.reconcile(ctx)
	}

	requestID, rows, err := r.queue.Claim(ctx, filter, d.batchSize)
	if err != nil {
		cycleErr = err
		observability.LogStoreError(r.logger, "claim", err)
		return
	}
	if len(rows) == 0 {
		observability.LogCycleEmpty(r.logger, filterName(filter))
		d.keepAlive(ctx)
		return
	}

	logger := observability.EnrichLogger(r.logger, r.state.SessionID(), requestID)
	observability.LogCycleStart(logger, filterName(filter), len(rows))

	payloads := make([][]byte, len(rows))
	for i, row := range rows {
		payloads[i] = row.Payload
	}

	done := observability.TimedOperation()
	sendCtx, sendSpan := d.spans.StartSendSpan(ctx, requestID, len(rows))
	res, err := d.client.SendEvents(sendCtx, payloads)
	d.spans.EndSpanWithError(sendSpan, err)
	durationMs := done()
	r.metrics.RecordBatch(ctx, res.Outcome.String(), len(rows), time.Duration(durationMs*float64(time.Millisecond)))

	switch {
	case err == nil:
		d.commit(ctx, requestID)
		observability.LogCycleComplete(logger, len(rows), durationMs)
	case eperrors.IsRetryable(err):
		cycleErr = err
		d.spans.AddSpanEvent(ctx, "putback", attribute.Int("rows", len(rows)))
		if _, perr := r.queue.Putback(ctx, requestID); perr != nil {
			observability.LogStoreError(logger, "putback", perr)
		}
		observability.LogSendFailed(logger, res.Outcome.String(), len(rows), res.Rejected, true)
	default:
		// Only a missing response is retried. A 500 is dropped like any
		// other answer from the collector.
		cycleErr = err
		d.commit(ctx, requestID)
		observability.LogSendFailed(logger, res.Outcome.String(), len(rows), res.Rejected, false)
	}
}

func (d *deliverer) commit(ctx context.Context, requestID string) {
	if _, err := d.rec.queue.Commit(ctx, requestID); err != nil {
		observability.LogStoreError(d.rec.logger, "commit", err)
	}
}

// keepAlive refreshes the live session's row so reconciliation after a
// crash reports a recent snapshot.
func (d *deliverer) keepAlive(ctx context.Context) {
	r := d.rec
	if !r.state.SessionStarted() {
		return
	}
	if err := r.sessions.Upsert(ctx, r.state.SessionID(), r.state.SessionStart(), r.state.Annotations()); err != nil {
		observability.LogStoreError(r.logger, "keep session alive", err)
	}
}

// reconcile records a session_end for every session row that does not
// belong to the live session. Recording the end deletes the row.
func (d *deliverer) reconcile(ctx context.Context) {
	r := d.rec
	stale, err := r.sessions.Stale(ctx, r.state.SessionID())
	if err != nil {
		observability.LogStoreError(r.logger, "list stale sessions", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	repaired := 0
	for _, s := range stale {
		if d.closeSession(ctx, s) {
			repaired++
		}
	}
	observability.LogSessionsRepaired(r.logger, repaired)
	r.metrics.RecordSessionsRepaired(ctx, repaired)
	d.spans.AddSpanEvent(ctx, "sessions_repaired", attribute.Int("count", repaired))
}

// closeSession records the session_end of a stale session from its stored
// snapshot alone. A snapshot without a client timestamp takes the current
// adjusted one.
func (d *deliverer) closeSession(ctx context.Context, s queue.SessionRecord) bool {
	r := d.rec
	now := r.state.AdjustedClientTS()
	length := max(0, now-s.StartTS)

	b := event.From(s.Snapshot).SetString("session_id", s.SessionID)
	if ts, ok := s.Snapshot.Get("client_ts"); !ok || ts.Kind() != event.KindNumber {
		b.SetInt("client_ts", now)
	}
	ev := b.SetString("category", event.SessionEnd.String()).
		SetInt("length", length).
		Build()
	return r.persist(ctx, event.SessionEnd, ev, event.Null())
}

// filterName names a claim filter in logs and spans.
func filterName(c event.Category) string {
	if c == event.CategoryAny {
		return "all"
	}
	return c.String()
}
