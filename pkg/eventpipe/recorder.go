package eventpipe

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/collector"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	eperrors "github.com/randalmurphal/eventpipe/pkg/eventpipe/errors"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/observability"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/state"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/validate"
)

// recorder turns public calls into persisted queue rows. Every method runs
// on the writer goroutine.
type recorder struct {
	state     *state.State
	store     store.Store
	queue     *queue.Queue
	sessions  *queue.Sessions
	validator validate.Validator
	reporter  *collector.Reporter
	logger    *slog.Logger
	metrics   observability.MetricsRecorder

	maxStoreBytes int64
}

// ready reports whether a regular event may be recorded and logs why not.
func (r *recorder) ready(ctx context.Context, category event.Category, needsSession bool) bool {
	var reason eperrors.Kind
	switch {
	case !r.state.SubmissionEnabled():
		reason = eperrors.KindSubmissionDisabled
	case !r.store.Ready():
		reason = eperrors.KindStoreUnavailable
	case !r.state.Initialized():
		reason = eperrors.KindNotInitialized
	case needsSession && !r.state.SessionStarted():
		reason = eperrors.KindSessionNotStarted
	default:
		return true
	}
	r.drop(ctx, category, reason)
	return false
}

// drop logs and counts an event that never reached the queue. The kind
// name is the drop reason.
func (r *recorder) drop(ctx context.Context, category event.Category, reason eperrors.Kind) {
	observability.LogEventDropped(r.logger, category.String(), reason.String())
	r.metrics.RecordEventDropped(ctx, category.String(), reason.String())
}

// eventID joins id parts, dropping the event when they do not form a
// valid id.
func (r *recorder) eventID(ctx context.Context, category event.Category, parts ...string) (string, bool) {
	id, err := event.JoinID(parts...)
	if err != nil {
		observability.LogEventRejected(r.logger, category.String(), eperrors.New(eperrors.KindInvalidEventID, "join event id", err))
		r.metrics.RecordEventDropped(ctx, category.String(), eperrors.KindInvalidEventID.String())
		return "", false
	}
	return id, true
}

// validate runs the validator and reports rejections.
func (r *recorder) validate(ctx context.Context, category event.Category, candidate event.Value) bool {
	err := r.validator.Validate(category, candidate)
	if err == nil {
		return true
	}
	observability.LogEventRejected(r.logger, category.String(), eperrors.Rejected("validate "+category.String(), err))
	r.metrics.RecordEventDropped(ctx, category.String(), eperrors.KindValidationRejected.String())
	if r.reporter != nil && r.state.ErrorReporting() {
		r.reporter.Report(collector.ReportRejected)
	}
	return false
}

// sessionStart begins a new session and records its start event.
func (r *recorder) sessionStart(ctx context.Context) bool {
	if !r.ready(ctx, event.SessionStart, false) {
		return false
	}
	if r.state.SessionStarted() {
		r.sessionEnd(ctx)
	}

	r.state.BeginSession()
	if _, err := r.state.IncrementSessionNum(ctx); err != nil {
		observability.LogStoreError(r.logger, "increment session num", err)
	}
	return r.record(ctx, event.SessionStart, event.NewBuilder().Build(), event.Null())
}

// sessionEnd records the end of the live session and clears it.
func (r *recorder) sessionEnd(ctx context.Context) bool {
	if !r.ready(ctx, event.SessionEnd, true) {
		return false
	}

	length := max(0, r.state.AdjustedClientTS()-r.state.SessionStart())
	fields := event.NewBuilder().SetInt("length", length).Build()
	ok := r.record(ctx, event.SessionEnd, fields, event.Null())
	r.state.EndSession()
	return ok
}

func (r *recorder) business(ctx context.Context, e BusinessEvent) {
	if !r.ready(ctx, event.Business, true) {
		return
	}
	candidate := event.NewBuilder().
		SetString("currency", e.Currency).
		SetInt("amount", e.Amount).
		SetString("item_type", e.ItemType).
		SetString("item_id", e.ItemID).
		SetIfNotEmpty("cart_type", e.CartType).
		Build()
	if !r.validate(ctx, event.Business, candidate) {
		return
	}
	id, ok := r.eventID(ctx, event.Business, e.ItemType, e.ItemID)
	if !ok {
		return
	}

	txn, err := r.state.IncrementTransactionNum(ctx)
	if err != nil {
		observability.LogStoreError(r.logger, "increment transaction num", err)
	}

	fields := event.NewBuilder().
		SetString("event_id", id).
		SetString("currency", e.Currency).
		SetInt("amount", e.Amount).
		SetInt("transaction_num", int64(txn)).
		SetIfNotEmpty("cart_type", e.CartType).
		Build()
	r.record(ctx, event.Business, fields, e.Fields)
}

func (r *recorder) resource(ctx context.Context, e ResourceEvent) {
	if !r.ready(ctx, event.Resource, true) {
		return
	}
	candidate := event.NewBuilder().
		SetString("flow_type", e.Flow.String()).
		SetString("currency", e.Currency).
		SetNumber("amount", e.Amount).
		SetString("item_type", e.ItemType).
		SetString("item_id", e.ItemID).
		Build()
	if !r.validate(ctx, event.Resource, candidate) {
		return
	}
	id, ok := r.eventID(ctx, event.Resource, e.Flow.String(), e.Currency, e.ItemType, e.ItemID)
	if !ok {
		return
	}

	amount := e.Amount
	if e.Flow == event.Sink {
		amount = -amount
	}

	fields := event.NewBuilder().
		SetString("event_id", id).
		SetNumber("amount", amount).
		Build()
	r.record(ctx, event.Resource, fields, e.Fields)
}

func (r *recorder) progression(ctx context.Context, e ProgressionEvent) {
	if !r.ready(ctx, event.Progression, true) {
		return
	}
	candidate := event.NewBuilder().
		SetString("progression_status", e.Status.String()).
		SetIfNotEmpty("progression_01", e.Progression01).
		SetIfNotEmpty("progression_02", e.Progression02).
		SetIfNotEmpty("progression_03", e.Progression03).
		Build()
	if !r.validate(ctx, event.Progression, candidate) {
		return
	}

	parts := e.progressionParts()
	id, ok := r.eventID(ctx, event.Progression, parts...)
	if !ok {
		return
	}
	eventID, ok := r.eventID(ctx, event.Progression, append([]string{e.Status.String()}, parts...)...)
	if !ok {
		return
	}
	b := event.NewBuilder().SetString("event_id", eventID)

	counters := r.state.Counters()
	switch e.Status {
	case event.ProgressionFail:
		if _, err := counters.IncrementProgressionTries(ctx, id); err != nil {
			observability.LogStoreError(r.logger, "increment progression tries", err)
		}
	case event.ProgressionComplete:
		tries, err := counters.IncrementProgressionTries(ctx, id)
		if err != nil {
			observability.LogStoreError(r.logger, "increment progression tries", err)
		}
		b.SetInt("attempt_num", int64(tries))
		if err := counters.ClearProgressionTries(ctx, id); err != nil {
			observability.LogStoreError(r.logger, "clear progression tries", err)
		}
	}

	if e.SendScore && e.Status != event.ProgressionStart {
		b.SetInt("score", e.Score)
	}
	r.record(ctx, event.Progression, b.Build(), e.Fields)
}

func (r *recorder) design(ctx context.Context, e DesignEvent) {
	if !r.ready(ctx, event.Design, true) {
		return
	}
	candidate := event.NewBuilder().SetString("event_id", e.EventID).Build()
	if !r.validate(ctx, event.Design, candidate) {
		return
	}

	b := event.NewBuilder().SetString("event_id", e.EventID)
	if e.SendValue {
		b.SetNumber("value", e.Value)
	}
	r.record(ctx, event.Design, b.Build(), e.Fields)
}

func (r *recorder) errorEvent(ctx context.Context, e ErrorEvent) {
	if !r.ready(ctx, event.Error, true) {
		return
	}
	fields := event.NewBuilder().
		SetString("severity", e.Severity.String()).
		SetString("message", e.Message).
		Build()
	if !r.validate(ctx, event.Error, fields) {
		return
	}
	r.record(ctx, event.Error, fields, e.Fields)
}

// record assembles a live event from the current annotations, custom
// dimensions and custom fields, then persists it.
func (r *recorder) record(ctx context.Context, category event.Category, fields, custom event.Value) bool {
	annotations := r.state.Annotations()
	b := event.From(annotations).
		SetString("category", category.String()).
		Merge(fields)

	dims := r.state.Dimensions()
	b.SetIfNotEmpty("custom_01", dims[0]).
		SetIfNotEmpty("custom_02", dims[1]).
		SetIfNotEmpty("custom_03", dims[2])

	if !custom.IsNull() {
		cleaned, dropped := validate.CleanFields(custom)
		if dropped > 0 {
			r.logger.Warn("custom fields dropped",
				slog.String("category", category.String()),
				slog.Int("dropped", dropped),
			)
		}
		if cleaned.Len() > 0 {
			b.Set("custom_fields", cleaned)
		}
	}
	return r.persist(ctx, category, b.Build(), annotations)
}

// persist applies the admission policy, stores ev and updates the session
// table. snapshot becomes the session's stored annotations; a session_end
// removes the session row instead.
func (r *recorder) persist(ctx context.Context, category event.Category, ev, snapshot event.Value) bool {
	if !r.admit(ctx, category) {
		return false
	}

	payload, err := ev.MarshalJSON()
	if err != nil {
		r.drop(ctx, category, eperrors.KindEncodeFailure)
		return false
	}

	sessionID := ev.GetString("session_id")
	if err := r.queue.Add(ctx, category, sessionID, ev.GetInt("client_ts"), payload); err != nil {
		observability.LogStoreError(r.logger, "add event", err)
		r.metrics.RecordEventDropped(ctx, category.String(), eperrors.KindStoreUnavailable.String())
		return false
	}

	if category == event.SessionEnd {
		err = r.sessions.Delete(ctx, sessionID)
	} else {
		err = r.sessions.Upsert(ctx, sessionID, r.state.SessionStart(), snapshot)
	}
	if err != nil {
		observability.LogStoreError(r.logger, "update session", err)
	}

	observability.LogEventAdded(r.logger, category.String(), ev.GetString("event_id"))
	observability.LogEventPayload(r.logger, payload)
	r.metrics.RecordEventAdded(ctx, category.String())
	return true
}

// admit applies the store size ceiling. Only essential categories pass
// once the store is over it.
func (r *recorder) admit(ctx context.Context, category event.Category) bool {
	if category.Essential() {
		return true
	}
	size, err := r.store.Size(ctx)
	if err != nil {
		observability.LogStoreError(r.logger, "read store size", err)
		r.metrics.RecordEventDropped(ctx, category.String(), eperrors.KindStoreUnavailable.String())
		return false
	}
	if size > r.maxStoreBytes {
		r.drop(ctx, category, eperrors.KindAdmissionDropped)
		return false
	}
	return true
}
