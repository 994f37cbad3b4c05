package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RequestStatus is the lifecycle state of a computation request.
type RequestStatus uint32

const (
	RequestStatusUnspecified RequestStatus = iota
	RequestStatusPending
	RequestStatusMatched
	RequestStatusInProgress
	RequestStatusCompleted
	RequestStatusFailed
	RequestStatusCancelled
)

var requestStatusNames = map[RequestStatus]string{
	RequestStatusUnspecified: "UNSPECIFIED",
	RequestStatusPending:     "PENDING",
	RequestStatusMatched:     "MATCHED",
	RequestStatusInProgress:  "IN_PROGRESS",
	RequestStatusCompleted:   "COMPLETED",
	RequestStatusFailed:      "FAILED",
	RequestStatusCancelled:   "CANCELLED",
}

// allowedTransitions is the complete lifecycle graph. Anything not listed is illegal.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending:    {RequestStatusMatched, RequestStatusCancelled},
	RequestStatusMatched:    {RequestStatusInProgress, RequestStatusCompleted, RequestStatusFailed, RequestStatusCancelled},
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusFailed, RequestStatusCancelled},
}

func (s RequestStatus) String() string {
	if name, ok := requestStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RequestStatus(%d)", uint32(s))
}

// ParseRequestStatus parses the name produced by String, case-insensitively.
func ParseRequestStatus(name string) (RequestStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for status, n := range requestStatusNames {
		if n == upper && status != RequestStatusUnspecified {
			return status, nil
		}
	}
	return RequestStatusUnspecified, fmt.Errorf("unknown request status %q", name)
}

// MarshalJSON encodes the status by name.
func (s RequestStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *RequestStatus) UnmarshalJSON(bz []byte) error {
	var name string
	if err := json.Unmarshal(bz, &name); err != nil {
		return err
	}
	parsed, err := ParseRequestStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsValid reports whether s is a known, specified status.
func (s RequestStatus) IsValid() bool {
	return s >= RequestStatusPending && s <= RequestStatusCancelled
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusFailed || s == RequestStatusCancelled
}

// IsEngaged reports whether the request currently holds a resource.
// InProgress is a sub-state of a live match.
func (s RequestStatus) IsEngaged() bool {
	return s == RequestStatusMatched || s == RequestStatusInProgress
}

// CanTransitionTo reports whether from -> to is an edge of the lifecycle graph.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidStateTransition for an illegal edge.
func ValidateTransition(from, to RequestStatus) error {
	if !from.CanTransitionTo(to) {
		return ErrInvalidStateTransition.Wrapf("%s -> %s", from, to)
	}
	return nil
}
