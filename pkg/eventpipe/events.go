package eventpipe

import "github.com/randalmurphal/eventpipe/pkg/eventpipe/event"

// BusinessEvent is a real-money purchase. Amount is in cents.
type BusinessEvent struct {
	Currency string
	Amount   int64
	ItemType string
	ItemID   string
	CartType string

	// Fields holds optional custom fields (flat key to scalar).
	Fields event.Value
}

// ResourceEvent is a virtual currency gain (Source) or spend (Sink).
// Amount is always given as a positive number.
type ResourceEvent struct {
	Flow     event.FlowType
	Currency string
	Amount   float64
	ItemType string
	ItemID   string
	Fields   event.Value
}

// ProgressionEvent tracks attempts at a level or stage. Progression01 is
// required; 02 and 03 narrow it further.
type ProgressionEvent struct {
	Status        event.ProgressionStatus
	Progression01 string
	Progression02 string
	Progression03 string

	// Score is sent only when SendScore is set and Status is not Start.
	Score     int64
	SendScore bool

	Fields event.Value
}

// DesignEvent is a free-form gameplay event. EventID is 1 to 5 parts
// joined by ':'.
type DesignEvent struct {
	EventID   string
	Value     float64
	SendValue bool
	Fields    event.Value
}

// ErrorEvent reports an error raised by the host application.
type ErrorEvent struct {
	Severity event.Severity
	Message  string
	Fields   event.Value
}

// progressionParts returns the non-empty progression levels in order.
func (e ProgressionEvent) progressionParts() []string {
	parts := []string{e.Progression01}
	if e.Progression02 != "" {
		parts = append(parts, e.Progression02)
	}
	if e.Progression03 != "" {
		parts = append(parts, e.Progression03)
	}
	return parts
}
