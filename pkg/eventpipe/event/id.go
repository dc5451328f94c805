package event

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Event id limits.
const (
	MaxIDParts      = 5
	MaxIDPartLength = 64
)

// ErrInvalidEventID indicates an event id exceeds the part or length limits
// or contains characters outside the allowed set.
var ErrInvalidEventID = errors.New("invalid event id")

var idPartPattern = regexp.MustCompile(`^[A-Za-z0-9\s\-_.()!?]{1,64}$`)

// ValidIDPart reports whether s is a valid single event id segment.
func ValidIDPart(s string) bool {
	return idPartPattern.MatchString(s)
}

// JoinID joins parts into a colon-separated event id.
// Every part must be 1-64 characters of the allowed set and at most
// MaxIDParts parts may be given.
func JoinID(parts ...string) (string, error) {
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no parts", ErrInvalidEventID)
	}
	if len(parts) > MaxIDParts {
		return "", fmt.Errorf("%w: %d parts, at most %d allowed", ErrInvalidEventID, len(parts), MaxIDParts)
	}
	for i, p := range parts {
		if !ValidIDPart(p) {
			return "", fmt.Errorf("%w: part %d %q", ErrInvalidEventID, i+1, p)
		}
	}
	return strings.Join(parts, ":"), nil
}

// SplitID validates id and returns its parts.
func SplitID(id string) ([]string, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEventID)
	}
	parts := strings.Split(id, ":")
	if _, err := JoinID(parts...); err != nil {
		return nil, err
	}
	return parts, nil
}
