package validate

import (
	"math"
	"regexp"

	"github.com/randalmurphal/eventpipe/pkg/eventpipe/event"
)

// Custom field limits.
const (
	MaxCustomFields      = 50
	MaxCustomFieldString = 256
)

var fieldKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,64}$`)

// CleanFields returns the valid subset of custom fields and the number of
// entries dropped. Keys must be 1-64 word characters; values must be
// strings up to 256 characters, finite numbers, or bools. Only the first
// MaxCustomFields valid entries are kept. Non-object input yields an empty
// object.
func CleanFields(fields event.Value) (event.Value, int) {
	out := event.NewBuilder()
	dropped := 0

	for _, m := range fields.Members() {
		if out.Len() >= MaxCustomFields || !fieldKeyPattern.MatchString(m.Key) || !validFieldValue(m.Value) {
			dropped++
			continue
		}
		out.Set(m.Key, m.Value)
	}
	return out.Build(), dropped
}

func validFieldValue(v event.Value) bool {
	switch v.Kind() {
	case event.KindString:
		s, _ := v.AsString()
		return len(s) <= MaxCustomFieldString
	case event.KindNumber:
		f, _ := v.AsNumber()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case event.KindBool:
		return true
	default:
		return false
	}
}
