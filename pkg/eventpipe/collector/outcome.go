package collector

import (
	"github.com/tidwall/gjson"

	eperrors "github.com/randalmurphal/eventpipe/pkg/eventpipe/errors"
)

// Outcome classifies a collector exchange.
type Outcome int

const (
	OutcomeNoResponse Outcome = iota
	OutcomeOK
	OutcomeBadRequest
	OutcomeUnauthorized
	OutcomeInternalServerError
	OutcomeUnknownResponseCode
	OutcomeJSONDecodeFailed
	OutcomeJSONEncodeFailed
	OutcomeBadResponse
)

// String returns the outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoResponse:
		return "no_response"
	case OutcomeOK:
		return "ok"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeInternalServerError:
		return "internal_server_error"
	case OutcomeUnknownResponseCode:
		return "unknown_response_code"
	case OutcomeJSONDecodeFailed:
		return "json_decode_failed"
	case OutcomeJSONEncodeFailed:
		return "json_encode_failed"
	case OutcomeBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// classify maps a status code and body to an outcome. An empty body means
// the request most likely never reached the collector.
func classify(status int, body []byte) Outcome {
	if len(body) == 0 {
		return OutcomeNoResponse
	}

	var o Outcome
	switch status {
	case 200:
		o = OutcomeOK
	case 0, 401:
		return OutcomeUnauthorized
	case 400:
		o = OutcomeBadRequest
	case 500:
		return OutcomeInternalServerError
	default:
		return OutcomeUnknownResponseCode
	}

	if !gjson.ValidBytes(body) {
		return OutcomeJSONDecodeFailed
	}
	return o
}

// outcomeError converts a non-OK outcome into a pipeline error. Only
// OutcomeNoResponse yields a retryable error.
func outcomeError(o Outcome, status int, endpoint string, cause error) error {
	switch o {
	case OutcomeOK:
		return nil
	case OutcomeNoResponse:
		return eperrors.Transport(endpoint, cause)
	case OutcomeJSONDecodeFailed, OutcomeBadResponse:
		return eperrors.New(eperrors.KindDecodeFailure, endpoint, cause)
	case OutcomeJSONEncodeFailed:
		return eperrors.New(eperrors.KindEncodeFailure, endpoint, cause)
	default:
		return &eperrors.HTTPError{StatusCode: status, Message: o.String(), Endpoint: endpoint}
	}
}
