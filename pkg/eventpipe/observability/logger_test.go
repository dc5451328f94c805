package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptureLogger returns a JSON logger writing to a buffer.
func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), buf
}

// lastRecord decodes the last JSON line in buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestEnrichLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "s", "r"))
	})

	t.Run("adds fields", func(t *testing.T) {
		logger, buf := newCaptureLogger()
		EnrichLogger(logger, "session-1", "req-1").Info("hello")

		rec := lastRecord(t, buf)
		assert.Equal(t, "session-1", rec["session_id"])
		assert.Equal(t, "req-1", rec["request_id"])
	})
}

func TestLogHelpers(t *testing.T) {
	tests := []struct {
		name   string
		log    func(*slog.Logger)
		level  string
		msg    string
		fields map[string]any
	}{
		{
			name:   "event added",
			log:    func(l *slog.Logger) { LogEventAdded(l, "design", "level:boss") },
			level:  "INFO",
			msg:    "event added",
			fields: map[string]any{"category": "design", "event_id": "level:boss"},
		},
		{
			name:   "event dropped",
			log:    func(l *slog.Logger) { LogEventDropped(l, "design", "store_full") },
			level:  "WARN",
			msg:    "event dropped",
			fields: map[string]any{"reason": "store_full"},
		},
		{
			name:   "event rejected",
			log:    func(l *slog.Logger) { LogEventRejected(l, "business", errors.New("bad currency")) },
			level:  "WARN",
			msg:    "event rejected",
			fields: map[string]any{"error": "bad currency"},
		},
		{
			name:   "payload",
			log:    func(l *slog.Logger) { LogEventPayload(l, []byte(`{"a":1}`)) },
			level:  "DEBUG",
			msg:    "event added to queue",
			fields: map[string]any{"payload": `{"a":1}`},
		},
		{
			name:   "cycle start",
			log:    func(l *slog.Logger) { LogCycleStart(l, "user", 3) },
			level:  "INFO",
			msg:    "sending events",
			fields: map[string]any{"count": float64(3)},
		},
		{
			name:   "send failed",
			log:    func(l *slog.Logger) { LogSendFailed(l, "bad_request", 10, 2, false) },
			level:  "WARN",
			msg:    "failed to send events",
			fields: map[string]any{"rejected": float64(2), "retrying": false},
		},
		{
			name:   "sessions repaired",
			log:    func(l *slog.Logger) { LogSessionsRepaired(l, 2) },
			level:  "INFO",
			msg:    "sessions located with missing session_end event",
			fields: map[string]any{"count": float64(2)},
		},
		{
			name:   "store error",
			log:    func(l *slog.Logger) { LogStoreError(l, "claim", errors.New("locked")) },
			level:  "WARN",
			msg:    "store operation failed",
			fields: map[string]any{"operation": "claim", "error": "locked"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newCaptureLogger()
			tt.log(logger)

			rec := lastRecord(t, buf)
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, tt.msg, rec["msg"])
			for k, v := range tt.fields {
				assert.Equal(t, v, rec[k], k)
			}
		})
	}
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogEventAdded(nil, "design", "")
		LogEventPayload(nil, nil)
		LogEventDropped(nil, "design", "")
		LogEventRejected(nil, "design", errors.New("x"))
		LogCycleStart(nil, "", 0)
		LogCycleEmpty(nil, "")
		LogCycleComplete(nil, 0, 0)
		LogSendFailed(nil, "", 0, 0, true)
		LogSessionsRepaired(nil, 0)
		LogStoreError(nil, "", errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
