// Package collector talks to the remote analytics collector: signed,
// optionally compressed batch delivery, the init handshake, and rate-limited
// diagnostic reports.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
)

// Endpoint paths under <base>/<game_key>/.
const (
	PathEvents = "events"
	PathInit   = "init"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// ErrNoEvents is returned by SendEvents when the batch has no valid event.
var ErrNoEvents = errors.New("no events to send")

// Transport executes HTTP requests. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the classified outcome of a batch delivery.
type Result struct {
	Outcome    Outcome
	StatusCode int

	// Rejected is the number of items the collector reported as invalid
	// on a 400 response.
	Rejected int

	// Skipped is the number of stored payloads that were not valid JSON
	// and were left out of the request.
	Skipped int
}

// Client sends requests to the collector.
type Client struct {
	baseURL   string
	gameKey   string
	secretKey string
	gzip      bool
	timeout   time.Duration
	transport Transport
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport overrides the HTTP transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithGzip toggles gzip compression of event batches.
func WithGzip(enabled bool) ClientOption {
	return func(c *Client) { c.gzip = enabled }
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a collector client.
func NewClient(baseURL, gameKey, secretKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		gameKey:   gameKey,
		secretKey: secretKey,
		gzip:      true,
		timeout:   60 * time.Second,
		transport: http.DefaultClient,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint URL for path.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + c.gameKey + "/" + path
}

// SendEvents posts a batch of serialized events. The returned error is nil
// only for OutcomeOK; use errors.IsRetryable to decide whether the batch
// should be kept for another attempt.
func (c *Client) SendEvents(ctx context.Context, events [][]byte) (Result, error) {
	payload, skipped := buildArray(events)
	if payload == nil {
		return Result{Outcome: OutcomeJSONEncodeFailed, Skipped: skipped},
			outcomeError(OutcomeJSONEncodeFailed, 0, PathEvents, ErrNoEvents)
	}

	status, body, err := c.post(ctx, c.URL(PathEvents), payload, c.gzip)
	outcome := OutcomeNoResponse
	if err == nil {
		outcome = classify(status, body)
	}

	res := Result{Outcome: outcome, StatusCode: status, Skipped: skipped}
	if outcome == OutcomeBadRequest {
		res.Rejected = len(gjson.ParseBytes(body).Array())
		if c.logger != nil {
			c.logger.Debug("collector rejected events", slog.String("response", string(body)))
		}
	}
	return res, outcomeError(outcome, status, PathEvents, err)
}

// Init performs the init handshake and returns the collector's clock in
// seconds. The body is never compressed.
func (c *Client) Init(ctx context.Context, annotations event.Value) (int64, Outcome, error) {
	payload, err := annotations.MarshalJSON()
	if err != nil {
		return 0, OutcomeJSONEncodeFailed, outcomeError(OutcomeJSONEncodeFailed, 0, PathInit, err)
	}

	status, body, err := c.post(ctx, c.URL(PathInit), payload, false)
	if err != nil {
		return 0, OutcomeNoResponse, outcomeError(OutcomeNoResponse, 0, PathInit, err)
	}

	outcome := classify(status, body)
	if outcome != OutcomeOK {
		return 0, outcome, outcomeError(outcome, status, PathInit, nil)
	}

	ts := gjson.GetBytes(body, "server_ts")
	if ts.Type != gjson.Number || ts.Int() <= 0 {
		return 0, OutcomeBadResponse, outcomeError(OutcomeBadResponse, status, PathInit, errors.New("missing server_ts"))
	}
	return ts.Int(), OutcomeOK, nil
}

// post sends a signed request and returns the status and body. A non-nil
// error means no response was received.
func (c *Client) post(ctx context.Context, url string, payload []byte, compress bool) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if compress {
		zipped, err := Compress(payload)
		if err != nil {
			return 0, nil, err
		}
		if c.logger != nil {
			c.logger.Debug("gzip stats",
				slog.Int("size", len(payload)),
				slog.Int("compressed", len(zipped)),
			)
		}
		payload = zipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", Sign(c.secretKey, payload))
	req.Header.Set("Content-Type", "application/json")
	if compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := c.transport.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
