package eventpipe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/config"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/queue"
	"github.com/randalmurphal/eventpipe/pkg/eventpipe/store"
)

const (
	testGameKey   = "0123456789abcdef0123456789abcdef"
	testSecretKey = "0123456789abcdef0123456789abcdef01234567"
)

// fakeCollector stands in for the remote collector. It records every event
// it receives and answers the events endpoint with a configurable status.
type fakeCollector struct {
	srv *httptest.Server

	mu         sync.Mutex
	received   []gjson.Result
	initBody   string
	eventsCode int
	eventsBody string
	requests   int
}

func newFakeCollector(t *testing.T) *fakeCollector {
	t.Helper()
	c := &fakeCollector{initBody: `{}`, eventsCode: http.StatusOK, eventsBody: `{}`}
	c.srv = httptest.NewServer(http.HandlerFunc(c.handle))
	t.Cleanup(c.srv.Close)
	return c
}

func (c *fakeCollector) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		if zr, err := gzip.NewReader(bytes.NewReader(raw)); err == nil {
			raw, _ = io.ReadAll(zr)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if strings.HasSuffix(r.URL.Path, "/init") {
		_, _ = io.WriteString(w, c.initBody)
		return
	}

	c.requests++
	if c.eventsCode == http.StatusOK && c.eventsBody != "" {
		c.received = append(c.received, gjson.ParseBytes(raw).Array()...)
	}
	w.WriteHeader(c.eventsCode)
	_, _ = io.WriteString(w, c.eventsBody)
}

func (c *fakeCollector) respond(code int, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsCode = code
	c.eventsBody = body
}

func (c *fakeCollector) setInitBody(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initBody = body
}

func (c *fakeCollector) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

// events returns the delivered events of a category ("" for all).
func (c *fakeCollector) events(category string) []gjson.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []gjson.Result
	for _, ev := range c.received {
		if category == "" || ev.Get("category").String() == category {
			out = append(out, ev)
		}
	}
	return out
}

// testClock is a settable device clock with one-second resolution.
type testClock struct {
	sec atomic.Int64
}

func newTestClock(sec int64) *testClock {
	c := &testClock{}
	c.sec.Store(sec)
	return c
}

func (c *testClock) now() time.Time { return time.Unix(c.sec.Load(), 0) }
func (c *testClock) set(sec int64)  { c.sec.Store(sec) }

type harness struct {
	p         *Pipeline
	collector *fakeCollector
	clock     *testClock
	store     *store.SQLiteStore
	queue     *queue.Queue
	sessions  *queue.Sessions
}

// newHarness builds a pipeline against a fake collector and an in-memory
// store. The flush timer is effectively disabled unless mutate changes it.
func newHarness(t *testing.T, mutate func(*config.Settings), opts ...Option) *harness {
	t.Helper()

	col := newFakeCollector(t)
	clock := newTestClock(1000)

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	settings := config.Defaults()
	settings.GameKey = testGameKey
	settings.SecretKey = testSecretKey
	settings.BaseURL = col.srv.URL
	settings.FlushInterval = time.Hour
	settings.ResourceCurrencies = []string{"gems"}
	settings.ResourceItemTypes = []string{"weapons"}
	if mutate != nil {
		mutate(&settings)
	}

	opts = append([]Option{
		WithStore(st),
		WithClock(clock.now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	p, err := New(settings, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return &harness{
		p:         p,
		collector: col,
		clock:     clock,
		store:     st,
		queue:     queue.New(st),
		sessions:  queue.NewSessions(st),
	}
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, h.p.Initialize(context.Background()))
}

func (h *harness) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, h.p.Sync(context.Background()))
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.p.Flush(context.Background()))
}

// queued returns the payloads of queued rows of a category.
func (h *harness) queued(t *testing.T, category string) []gjson.Result {
	t.Helper()
	records, err := h.queue.List(context.Background())
	require.NoError(t, err)
	var out []gjson.Result
	for _, r := range records {
		if r.Category.String() == category {
			out = append(out, gjson.ParseBytes(r.Payload))
		}
	}
	return out
}
