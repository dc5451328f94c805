// Package observability provides structured logging, metrics, and tracing
// for the event pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds delivery context to a logger.
// Returns a new logger with session_id and request_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "a1b2...", "c3d4...")
//	enriched.Info("sending") // includes session_id, request_id
func EnrichLogger(logger *slog.Logger, sessionID, requestID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("request_id", requestID),
	)
}

// LogEventAdded logs an event persisted to the queue.
func LogEventAdded(logger *slog.Logger, category, eventID string) {
	if logger == nil {
		return
	}
	logger.Info("event added",
		slog.String("category", category),
		slog.String("event_id", eventID),
	)
}

// LogEventPayload logs the full persisted payload. Verbose only.
func LogEventPayload(logger *slog.Logger, payload []byte) {
	if logger == nil {
		return
	}
	logger.Debug("event added to queue",
		slog.String("payload", string(payload)),
	)
}

// LogEventDropped logs an event that was not persisted.
func LogEventDropped(logger *slog.Logger, category, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("event dropped",
		slog.String("category", category),
		slog.String("reason", reason),
	)
}

// LogEventRejected logs a validation failure.
func LogEventRejected(logger *slog.Logger, category string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event rejected",
		slog.String("category", category),
		slog.String("error", err.Error()),
	)
}

// LogCycleStart logs a claimed batch about to be sent.
func LogCycleStart(logger *slog.Logger, category string, count int) {
	if logger == nil {
		return
	}
	logger.Info("sending events",
		slog.String("category", category),
		slog.Int("count", count),
	)
}

// LogCycleEmpty logs a cycle that found nothing to send.
func LogCycleEmpty(logger *slog.Logger, category string) {
	if logger == nil {
		return
	}
	logger.Debug("no events to send",
		slog.String("category", category),
	)
}

// LogCycleComplete logs a committed batch.
func LogCycleComplete(logger *slog.Logger, count int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("events sent",
		slog.Int("count", count),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSendFailed logs a batch the collector did not accept.
// retrying tells whether the rows were put back.
func LogSendFailed(logger *slog.Logger, outcome string, count, rejected int, retrying bool) {
	if logger == nil {
		return
	}
	logger.Warn("failed to send events",
		slog.String("outcome", outcome),
		slog.Int("count", count),
		slog.Int("rejected", rejected),
		slog.Bool("retrying", retrying),
	)
}

// LogSessionsRepaired logs synthesized session_end events.
func LogSessionsRepaired(logger *slog.Logger, count int) {
	if logger == nil {
		return
	}
	logger.Info("sessions located with missing session_end event",
		slog.Int("count", count),
	)
}

// LogStoreError logs a store failure (non-fatal).
func LogStoreError(logger *slog.Logger, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("store operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
