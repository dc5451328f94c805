package eventpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/collector"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/config"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/state"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/validate"
)

// Pipeline records analytics events into a durable local queue and delivers
// them to the collector in batches.
//
// Every queue and session mutation runs on one writer goroutine. Public
// methods hand work to it and return; the recording methods never block on
// the network and never return errors.
type Pipeline struct {
	settings config.Settings
	logger   *slog.Logger

	store    store.Store
	state    *state.State
	client   *collector.Client
	reporter *collector.Reporter
	rec      *recorder
	deliv    *deliverer
	sched    *scheduler

	work     chan func(context.Context)
	done     chan struct{}
	closeErr error

	mu     sync.RWMutex
	closed bool
}

// New validates settings, opens the store and starts the writer goroutine.
// Call Initialize before recording events.
func New(settings config.Settings, opts ...Option) (*Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	st := cfg.store
	if st == nil {
		sqlite, err := store.NewSQLiteStore(settings.StorePath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		st = sqlite
	}

	stt := state.New(store.NewCounters(st),
		state.WithClock(cfg.now),
		state.WithUserID(settings.UserID),
		state.WithBuild(settings.Build),
		state.WithAvailableDimensions(settings.CustomDimensions01, settings.CustomDimensions02, settings.CustomDimensions03),
		state.WithErrorReporting(settings.ErrorReporting),
		state.WithManualSessionHandling(settings.ManualSessionHandling),
	)

	clientOpts := []collector.ClientOption{
		collector.WithGzip(settings.UseGzip),
		collector.WithTimeout(settings.RequestTimeout),
		collector.WithLogger(cfg.logger),
	}
	if cfg.transport != nil {
		clientOpts = append(clientOpts, collector.WithTransport(cfg.transport))
	}
	client := collector.NewClient(settings.BaseURL, settings.GameKey, settings.SecretKey, clientOpts...)

	reporter := collector.NewReporter(client, stt.SDKErrorAnnotations,
		collector.WithReportCap(settings.ErrorReportCap),
		collector.WithReporterLogger(cfg.logger),
		collector.WithReporterMetrics(cfg.metrics),
	)

	validator := cfg.validator
	if validator == nil {
		validator = validate.Rules{
			ResourceCurrencies: settings.ResourceCurrencies,
			ResourceItemTypes:  settings.ResourceItemTypes,
		}
	}

	rec := &recorder{
		state:         stt,
		store:         st,
		queue:         queue.New(st),
		sessions:      queue.NewSessions(st),
		validator:     validator,
		reporter:      reporter,
		logger:        cfg.logger,
		metrics:       cfg.metrics,
		maxStoreBytes: settings.MaxStoreBytes,
	}

	p := &Pipeline{
		settings: settings,
		logger:   cfg.logger,
		store:    st,
		state:    stt,
		client:   client,
		reporter: reporter,
		rec:      rec,
		deliv: &deliverer{
			rec:       rec,
			client:    client,
			spans:     cfg.spans,
			batchSize: settings.BatchSize,
		},
		work: make(chan func(context.Context), cfg.queueSize),
		done: make(chan struct{}),
	}
	p.sched = newScheduler(settings.FlushInterval, p.submit, func(ctx context.Context) {
		p.deliv.run(ctx, event.CategoryAny, true)
	})

	go p.writer()
	return p, nil
}

// writer executes submitted work in order until the work channel closes,
// then closes the store.
func (p *Pipeline) writer() {
	defer close(p.done)
	ctx := context.Background()
	for fn := range p.work {
		p.exec(ctx, fn)
	}
	p.closeErr = p.store.Close()
}

func (p *Pipeline) exec(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline work panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn(ctx)
}

// submit queues fn for the writer. Returns false once the pipeline is closed.
func (p *Pipeline) submit(fn func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.work <- fn
	return true
}

// call runs fn on the writer and waits for it. fn receives ctx without its
// cancellation: once started, work runs to completion.
func (p *Pipeline) call(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	submitted := p.submit(func(context.Context) {
		defer close(finished)
		fn(context.WithoutCancel(ctx))
	})
	if !submitted {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post submits fire-and-forget work, logging when the pipeline is closed.
func (p *Pipeline) post(category event.Category, fn func(context.Context)) {
	if !p.submit(fn) {
		p.logger.Warn("event dropped",
			slog.String("category", category.String()),
			slog.String("reason", ErrClosed.Error()),
		)
	}
}

// Initialize loads persisted state, performs the init request, starts a
// session unless manual session handling is set, and starts the flush
// timer. An unreachable collector is not an error; the clock offset then
// stays zero.
func (p *Pipeline) Initialize(ctx context.Context) error {
	var initErr error
	err := p.call(ctx, func(ctx context.Context) {
		initErr = p.initialize(ctx)
	})
	if err != nil {
		return err
	}
	return initErr
}

func (p *Pipeline) initialize(ctx context.Context) error {
	if p.state.Initialized() {
		return ErrAlreadyInitialized
	}
	if err := p.state.Load(ctx); err != nil {
		return err
	}

	serverTS, outcome, err := p.client.Init(ctx, p.state.InitAnnotations())
	if err != nil {
		p.logger.Warn("init request failed",
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()),
		)
	} else {
		p.state.SetServerTime(serverTS)
	}

	p.state.SetInitialized(true)
	if !p.state.ManualSessionHandling() {
		p.startSession(ctx)
	}
	p.sched.start()
	return nil
}

// StartSession starts a new session, ending the live one first if any, and
// delivers the session start immediately.
func (p *Pipeline) StartSession() {
	p.post(event.SessionStart, p.startSession)
}

func (p *Pipeline) startSession(ctx context.Context) {
	if p.rec.sessionStart(ctx) {
		p.deliv.run(ctx, event.SessionStart, false)
	}
}

// EndSession ends the live session and delivers the session end
// immediately.
func (p *Pipeline) EndSession() {
	p.post(event.SessionEnd, p.endSession)
}

func (p *Pipeline) endSession(ctx context.Context) {
	if p.rec.sessionEnd(ctx) {
		p.deliv.run(ctx, event.SessionEnd, false)
	}
}

// AddBusinessEvent records a purchase.
func (p *Pipeline) AddBusinessEvent(e BusinessEvent) {
	p.post(event.Business, func(ctx context.Context) { p.rec.business(ctx, e) })
}

// AddResourceEvent records a virtual currency flow.
func (p *Pipeline) AddResourceEvent(e ResourceEvent) {
	p.post(event.Resource, func(ctx context.Context) { p.rec.resource(ctx, e) })
}

// AddProgressionEvent records a progression attempt.
func (p *Pipeline) AddProgressionEvent(e ProgressionEvent) {
	p.post(event.Progression, func(ctx context.Context) { p.rec.progression(ctx, e) })
}

// AddDesignEvent records a design event.
func (p *Pipeline) AddDesignEvent(e DesignEvent) {
	p.post(event.Design, func(ctx context.Context) { p.rec.design(ctx, e) })
}

// AddErrorEvent records an application error.
func (p *Pipeline) AddErrorEvent(e ErrorEvent) {
	p.post(event.Error, func(ctx context.Context) { p.rec.errorEvent(ctx, e) })
}

// SetCustomDimension sets custom dimension slot 1, 2 or 3 for events
// recorded after this call. An empty value clears the slot.
func (p *Pipeline) SetCustomDimension(slot int, value string) error {
	var dimErr error
	err := p.call(context.Background(), func(context.Context) {
		dimErr = p.state.SetCustomDimension(slot, value)
	})
	if err != nil {
		return err
	}
	return dimErr
}

// SetEnabledEventSubmission turns recording on or off. While off, every
// recording call is a no-op.
func (p *Pipeline) SetEnabledEventSubmission(enabled bool) {
	p.submit(func(context.Context) {
		p.state.SetSubmissionEnabled(enabled)
	})
}

// Flush runs a full delivery cycle and waits for it.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.call(ctx, func(ctx context.Context) {
		p.deliv.run(ctx, event.CategoryAny, true)
	})
}

// Sync waits until all work submitted before the call has been processed.
func (p *Pipeline) Sync(ctx context.Context) error {
	return p.call(ctx, func(context.Context) {})
}

// SessionID returns the live session id, or "" when no session is running.
func (p *Pipeline) SessionID() string {
	return p.state.SessionID()
}

// Close ends the live session (unless manual session handling is set),
// stops the flush timer, drains pending work and closes the store.
func (p *Pipeline) Close(ctx context.Context) error {
	p.sched.stop()

	if !p.state.ManualSessionHandling() {
		err := p.call(ctx, func(ctx context.Context) {
			if p.state.SessionStarted() {
				p.endSession(ctx)
			}
		})
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.work)
	p.mu.Unlock()

	select {
	case <-p.done:
		return p.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
