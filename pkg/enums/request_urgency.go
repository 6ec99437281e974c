package enums

import "fmt"

// RequestUrgency is an informational priority hint on a supplier item request.
type RequestUrgency string

const (
	RequestUrgencyHigh   RequestUrgency = "high"
	RequestUrgencyMedium RequestUrgency = "medium"
	RequestUrgencyLow    RequestUrgency = "low"
)

var validRequestUrgencies = []RequestUrgency{
	RequestUrgencyHigh,
	RequestUrgencyMedium,
	RequestUrgencyLow,
}

// String implements fmt.Stringer.
func (r RequestUrgency) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RequestUrgency.
func (r RequestUrgency) IsValid() bool {
	for _, candidate := range validRequestUrgencies {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRequestUrgency converts raw input into a RequestUrgency.
func ParseRequestUrgency(value string) (RequestUrgency, error) {
	for _, candidate := range validRequestUrgencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request urgency %q", value)
}
