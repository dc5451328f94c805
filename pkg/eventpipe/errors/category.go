// Package errors classifies pipeline failures.
//
// Every failure inside the pipeline is handled locally: it is logged, and
// depending on its category the affected batch is retried on the next
// delivery cycle or discarded. Nothing is surfaced to the host program.
//
//   - Kind: what went wrong (validation, store, transport, server response)
//   - Category: whether retrying on a later cycle can help
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a pipeline error.
type Kind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown Kind = iota

	// KindValidationRejected means the event failed validation and was dropped
	// before it reached the queue.
	KindValidationRejected

	// KindStoreUnavailable means the durable store could not be used.
	KindStoreUnavailable

	// KindNotInitialized means the pipeline was not initialized when the
	// event arrived.
	KindNotInitialized

	// KindSubmissionDisabled means event submission was switched off.
	KindSubmissionDisabled

	// KindSessionNotStarted means the event arrived with no live session.
	KindSessionNotStarted

	// KindInvalidEventID means an event id could not be built from its parts.
	KindInvalidEventID

	// KindAdmissionDropped means the store was over its size ceiling and the
	// event category is not admitted under pressure.
	KindAdmissionDropped

	// KindTransportFailure means no response was received from the collector.
	KindTransportFailure

	// KindServerRejected means the collector answered 400.
	KindServerRejected

	// KindUnauthorized means the collector answered 401 (or status 0).
	KindUnauthorized

	// KindServerError means the collector answered 500.
	KindServerError

	// KindDecodeFailure means the response body could not be decoded.
	KindDecodeFailure

	// KindEncodeFailure means an event or batch could not be encoded.
	KindEncodeFailure

	// KindUnknownResponse means the collector answered with an unexpected status.
	KindUnknownResponse
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidationRejected:
		return "validation_rejected"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindNotInitialized:
		return "not_initialized"
	case KindSubmissionDisabled:
		return "submission_disabled"
	case KindSessionNotStarted:
		return "session_not_started"
	case KindInvalidEventID:
		return "invalid_event_id"
	case KindAdmissionDropped:
		return "admission_dropped"
	case KindTransportFailure:
		return "transport_failure"
	case KindServerRejected:
		return "server_rejected"
	case KindUnauthorized:
		return "unauthorized"
	case KindServerError:
		return "server_error"
	case KindDecodeFailure:
		return "decode_failure"
	case KindEncodeFailure:
		return "encode_failure"
	case KindUnknownResponse:
		return "unknown_response"
	default:
		return "unknown"
	}
}

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates a later delivery cycle may succeed.
	CategoryTransient Category = iota

	// CategoryPermanent indicates the work is discarded.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// PipelineError wraps an error with its kind and the operation that failed.
type PipelineError struct {
	// Kind is the failure class.
	Kind Kind

	// Op describes what was being attempted ("claim", "send events", ...).
	Op string

	// Err is the underlying error. May be nil.
	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// New creates a pipeline error.
func New(kind Kind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// Transport creates a transport failure.
func Transport(op string, err error) *PipelineError {
	return New(KindTransportFailure, op, err)
}

// Rejected creates a validation rejection.
func Rejected(op string, err error) *PipelineError {
	return New(KindValidationRejected, op, err)
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidationRejected
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return kindForStatus(httpErr.StatusCode)
	}

	return KindUnknown
}

// kindForStatus maps a collector status code to a kind.
func kindForStatus(status int) Kind {
	switch status {
	case 0, 401:
		return KindUnauthorized
	case 400:
		return KindServerRejected
	case 500:
		return KindServerError
	default:
		return KindUnknownResponse
	}
}

// Categorize determines how an error should be handled.
//
// Only transport failures are transient. A 500 from the collector is
// permanent: the batch is discarded so local storage stays bounded.
func Categorize(err error) Category {
	if KindOf(err) == KindTransportFailure {
		return CategoryTransient
	}
	return CategoryPermanent
}

// IsRetryable reports whether the work should be retried on a later cycle.
func IsRetryable(err error) bool {
	return err != nil && Categorize(err) == CategoryTransient
}
