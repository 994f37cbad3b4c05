package types

import (
	"errors"
	"strings"

	sdkerrors "cosmossdk.io/errors"
)

// Matching module sentinel errors with recovery suggestions

var (
	// Authorization errors
	ErrUnauthorized           = sdkerrors.Register(ModuleName, 2, "unauthorized operation")
	ErrUnauthorizedMatcher    = sdkerrors.Register(ModuleName, 3, "unauthorized matcher")
	ErrUnauthorizedCompletion = sdkerrors.Register(ModuleName, 4, "unauthorized completion")

	// Request lifecycle errors
	ErrRequestNotFound        = sdkerrors.Register(ModuleName, 10, "computation request not found")
	ErrRequestNotPending      = sdkerrors.Register(ModuleName, 11, "request is not in pending status")
	ErrRequestNotMatched      = sdkerrors.Register(ModuleName, 12, "request is not matched")
	ErrInvalidStateTransition = sdkerrors.Register(ModuleName, 13, "invalid request state transition")
	ErrResourceMismatch       = sdkerrors.Register(ModuleName, 14, "resource does not match the request")
	ErrSettlementFailed       = sdkerrors.Register(ModuleName, 15, "settlement transfer failed")

	// Resource errors
	ErrResourceNotFound   = sdkerrors.Register(ModuleName, 20, "resource not found")
	ErrResourceNotActive  = sdkerrors.Register(ModuleName, 21, "resource is not active")
	ErrResourceEngaged    = sdkerrors.Register(ModuleName, 22, "resource has no free engagement slot")
	ErrNoEligibleResource = sdkerrors.Register(ModuleName, 23, "no eligible resource for request")

	// Capability errors
	ErrInsufficientComputationPower = sdkerrors.Register(ModuleName, 30, "insufficient computation power")
	ErrInsufficientMemory           = sdkerrors.Register(ModuleName, 31, "insufficient memory")
	ErrInsufficientCapability       = sdkerrors.Register(ModuleName, 32, "insufficient capability")
	ErrPriceTooHigh                 = sdkerrors.Register(ModuleName, 33, "price too high")
	ErrReputationTooLow             = sdkerrors.Register(ModuleName, 34, "resource reputation too low")
	ErrLocationMismatch             = sdkerrors.Register(ModuleName, 35, "resource location does not satisfy request")
	ErrInvalidCapability            = sdkerrors.Register(ModuleName, 36, "invalid capability description")

	// Consistency errors
	ErrCounterUnderflow = sdkerrors.Register(ModuleName, 40, "counter underflow")
	ErrCounterOverflow  = sdkerrors.Register(ModuleName, 41, "counter overflow")
	ErrStoreFailure     = sdkerrors.Register(ModuleName, 42, "store failure")

	// Configuration errors
	ErrInvalidParams  = sdkerrors.Register(ModuleName, 50, "invalid module parameters")
	ErrInvalidGenesis = sdkerrors.Register(ModuleName, 51, "invalid genesis state")
	ErrInvalidMessage = sdkerrors.Register(ModuleName, 52, "invalid message")
)

// JoinErrors returns an error matching every non-nil err. Its message is
// the plain messages joined by ": ", without the source locations that
// %+v formatting of registered errors would add.
func JoinErrors(errs ...error) error {
	joined := &joinedError{}
	for _, err := range errs {
		if err != nil {
			joined.errs = append(joined.errs, err)
		}
	}
	switch len(joined.errs) {
	case 0:
		return nil
	case 1:
		return joined.errs[0]
	}
	return joined
}

type joinedError struct {
	errs []error
}

func (e *joinedError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, ": ")
}

func (e *joinedError) Unwrap() []error {
	return e.errs
}

// ErrorWithRecovery wraps an error with recovery suggestions
type ErrorWithRecovery struct {
	Err      error
	Recovery string
}

func (e *ErrorWithRecovery) Error() string {
	return e.Err.Error()
}

func (e *ErrorWithRecovery) Unwrap() error {
	return e.Err
}

// RecoverySuggestions provides actionable recovery steps for each error type
var RecoverySuggestions = map[error]string{
	ErrUnauthorized:           "Sign the operation with the identity that owns the record. Resource changes need the provider, request changes need the requester.",
	ErrUnauthorizedMatcher:    "Only the deploying authority or the provider of the offered resource may match a request.",
	ErrUnauthorizedCompletion: "Completion and cancellation are limited to the requester, the matched provider and the authority.",

	ErrRequestNotFound:        "Verify the request id. Ids start at 1 and are never reused.",
	ErrRequestNotPending:      "The request was already matched, cancelled or finalized. Query its status before retrying.",
	ErrRequestNotMatched:      "Match the request before reporting completion.",
	ErrInvalidStateTransition: "Completed, failed and cancelled requests are final. Submit a new request instead.",
	ErrResourceMismatch:       "Report completion against the resource the request was matched to.",
	ErrSettlementFailed:       "The payment transfer was refused. Check the requester balance and retry completion.",

	ErrResourceNotFound:   "Verify the resource id. Ids start at 1 and are never reused.",
	ErrResourceNotActive:  "The provider must re-activate the resource before it can be matched.",
	ErrResourceEngaged:    "The resource is busy. Wait for the current engagement to finish or select another resource.",
	ErrNoEligibleResource: "No active resource satisfies capability, price, location and reputation. Relax the request or retry later.",

	ErrInsufficientComputationPower: "Pick a resource with more computation power or lower the requirement.",
	ErrInsufficientMemory:           "Pick a resource with more memory or lower the requirement.",
	ErrInsufficientCapability:       "Pick a resource whose storage and GPU satisfy the request.",
	ErrPriceTooHigh:                 "Raise the maximum price per unit or pick a cheaper resource.",
	ErrReputationTooLow:             "Lower the minimum reputation or pick a resource with a better track record.",
	ErrLocationMismatch:             "Drop strict location or pick a resource in the preferred location.",
	ErrInvalidCapability:            "Check identities, labels, location length and GPU fields of the record.",

	ErrCounterUnderflow: "System counters disagree with stored records. Run the invariant checks and inspect the logs.",
}

// WrapWithRecovery wraps an error with recovery suggestion
func WrapWithRecovery(err error, msg string, args ...interface{}) error {
	wrapped := sdkerrors.Wrapf(err, msg, args...)

	if suggestion, ok := RecoverySuggestions[err]; ok {
		return &ErrorWithRecovery{
			Err:      wrapped,
			Recovery: suggestion,
		}
	}

	return wrapped
}

// GetRecoverySuggestion returns the recovery suggestion for the first
// registered error found in the chain of err.
func GetRecoverySuggestion(err error) string {
	for sentinel, suggestion := range RecoverySuggestions {
		if errors.Is(err, sentinel) {
			return suggestion
		}
	}

	return "No recovery suggestion available. Check error message for details."
}
