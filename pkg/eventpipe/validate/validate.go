// Package validate checks event parameters before they are recorded.
//
// The pipeline only depends on the Validator interface. Rules is the default
// implementation and mirrors the collector's own field rules, so events it
// accepts are not rejected server side.
package validate

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
	eperrors "github.com/randalmurphal/eventpipe/pkg/eventpipe/errors"
)

// Validator accepts or rejects the category-specific fields of a candidate
// event. A nil error accepts.
//
// Candidate fields by category:
//
//	business:    currency, amount, item_type, item_id, cart_type
//	resource:    flow_type, currency, amount, item_type, item_id
//	progression: progression_status, progression_01, progression_02, progression_03
//	design:      event_id
//	error:       severity, message
type Validator interface {
	Validate(category event.Category, fields event.Value) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(category event.Category, fields event.Value) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(category event.Category, fields event.Value) error {
	return f(category, fields)
}

// Field limits.
const (
	MaxShortString   = 32
	MaxMessageLength = 8192
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Rules is the default Validator.
type Rules struct {
	// ResourceCurrencies lists accepted resource currencies. Empty rejects
	// every resource event.
	ResourceCurrencies []string

	// ResourceItemTypes lists accepted resource item types.
	ResourceItemTypes []string
}

// Compile-time interface check.
var _ Validator = Rules{}

// Validate implements Validator.
func (r Rules) Validate(category event.Category, fields event.Value) error {
	switch category {
	case event.Business:
		return r.business(fields)
	case event.Resource:
		return r.resource(fields)
	case event.Progression:
		return progression(fields)
	case event.Design:
		return design(fields)
	case event.Error:
		return errorEvent(fields)
	case event.SessionStart, event.SessionEnd:
		return nil
	default:
		return reject("category", "unsupported category %d", category)
	}
}

func (r Rules) business(f event.Value) error {
	if !currencyPattern.MatchString(f.GetString("currency")) {
		return reject("currency", "must be 3 uppercase letters, got %q", f.GetString("currency"))
	}
	if amount, _ := number(f, "amount"); amount < 0 {
		return reject("amount", "cannot be less than 0, got %v", amount)
	}
	if cart := f.GetString("cart_type"); len(cart) > MaxShortString {
		return reject("cart_type", "cannot be above %d characters", MaxShortString)
	}
	if err := eventPart(f, "item_type"); err != nil {
		return err
	}
	return eventPart(f, "item_id")
}

func (r Rules) resource(f event.Value) error {
	flow := f.GetString("flow_type")
	if flow != event.Source.String() && flow != event.Sink.String() {
		return reject("flow_type", "invalid flow type %q", flow)
	}
	currency := f.GetString("currency")
	if currency == "" {
		return reject("currency", "cannot be empty")
	}
	if !slices.Contains(r.ResourceCurrencies, currency) {
		return reject("currency", "%q not in available resource currencies", currency)
	}
	if amount, ok := number(f, "amount"); !ok || !(amount > 0) {
		return reject("amount", "must be greater than 0, got %v", amount)
	}
	if err := eventPart(f, "item_type"); err != nil {
		return err
	}
	if itemType := f.GetString("item_type"); !slices.Contains(r.ResourceItemTypes, itemType) {
		return reject("item_type", "%q not in available resource item types", itemType)
	}
	return eventPart(f, "item_id")
}

func progression(f event.Value) error {
	status := f.GetString("progression_status")
	switch status {
	case event.ProgressionStart.String(), event.ProgressionComplete.String(), event.ProgressionFail.String():
	default:
		return reject("progression_status", "invalid progression status %q", status)
	}

	p1, p2, p3 := f.GetString("progression_01"), f.GetString("progression_02"), f.GetString("progression_03")
	switch {
	case p3 != "" && (p2 == "" || p1 == ""):
		return reject("progression_03", "set without 01 and 02; use 01, 01+02 or 01+02+03")
	case p2 != "" && p1 == "":
		return reject("progression_02", "set without 01; use 01, 01+02 or 01+02+03")
	case p1 == "":
		return reject("progression_01", "required")
	}

	for _, key := range []string{"progression_01", "progression_02", "progression_03"} {
		if f.GetString(key) == "" {
			continue
		}
		if err := eventPart(f, key); err != nil {
			return err
		}
	}
	return nil
}

func design(f event.Value) error {
	id := f.GetString("event_id")
	if _, err := event.SplitID(id); err != nil {
		return reject("event_id", "need 1-5 parts separated by ':' of 1-64 characters A-z, 0-9, -_.()!? and spaces, got %q", id)
	}
	return nil
}

func errorEvent(f event.Value) error {
	severity := f.GetString("severity")
	switch severity {
	case event.SeverityDebug.String(), event.SeverityInfo.String(), event.SeverityWarning.String(),
		event.SeverityError.String(), event.SeverityCritical.String():
	default:
		return reject("severity", "unsupported severity %q", severity)
	}
	if len(f.GetString("message")) > MaxMessageLength {
		return reject("message", "cannot be above %d characters", MaxMessageLength)
	}
	return nil
}

func eventPart(f event.Value, key string) error {
	v := f.GetString(key)
	if !event.ValidIDPart(v) {
		return reject(key, "need 1-64 characters A-z, 0-9, -_.()!? and spaces, got %q", v)
	}
	return nil
}

func number(f event.Value, key string) (float64, bool) {
	v, ok := f.Get(key)
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

func reject(field, format string, args ...any) error {
	return &eperrors.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
