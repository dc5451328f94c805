package event

import "fmt"

// Category is the event kind.
type Category int

const (
	// CategoryAny matches every category in filters.
	CategoryAny Category = iota
	SessionStart
	SessionEnd
	Business
	Resource
	Progression
	Design
	Error
)

// String returns the collector wire name for the category.
func (c Category) String() string {
	switch c {
	case SessionStart:
		return "user"
	case SessionEnd:
		return "session_end"
	case Business:
		return "business"
	case Resource:
		return "resource"
	case Progression:
		return "progression"
	case Design:
		return "design"
	case Error:
		return "error"
	default:
		return ""
	}
}

// Essential reports whether the category is admitted while the store is
// over its size ceiling.
func (c Category) Essential() bool {
	return c == SessionStart || c == SessionEnd || c == Business
}

// ParseCategory returns the category for a wire name.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "user":
		return SessionStart, nil
	case "session_end":
		return SessionEnd, nil
	case "business":
		return Business, nil
	case "resource":
		return Resource, nil
	case "progression":
		return Progression, nil
	case "design":
		return Design, nil
	case "error":
		return Error, nil
	default:
		return CategoryAny, fmt.Errorf("unknown category %q", s)
	}
}

// FlowType is the direction of a resource event.
type FlowType int

const (
	Source FlowType = iota + 1
	Sink
)

// String returns the wire name.
func (f FlowType) String() string {
	switch f {
	case Source:
		return "Source"
	case Sink:
		return "Sink"
	default:
		return ""
	}
}

// ProgressionStatus is the state of a progression event.
type ProgressionStatus int

const (
	ProgressionStart ProgressionStatus = iota + 1
	ProgressionComplete
	ProgressionFail
)

// String returns the wire name.
func (s ProgressionStatus) String() string {
	switch s {
	case ProgressionStart:
		return "Start"
	case ProgressionComplete:
		return "Complete"
	case ProgressionFail:
		return "Fail"
	default:
		return ""
	}
}

// Severity is the level of an error event.
type Severity int

const (
	SeverityDebug Severity = iota + 1
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the wire name.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return ""
	}
}
