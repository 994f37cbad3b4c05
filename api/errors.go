package api

import (
	"encoding/json"
	"errors"
	"net/http"

	sdkerrors "cosmossdk.io/errors"

	"github.com/calctra/resmatch/x/matching/types"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Codespace  string `json:"codespace,omitempty"`
	ABCICode   uint32 `json:"abci_code,omitempty"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// statusMapping lists error kinds in the order they are tested. A joined
// error takes the status of its first listed kind.
var statusMapping = []struct {
	err    error
	status int
}{
	{types.ErrUnauthorized, http.StatusForbidden},
	{types.ErrUnauthorizedMatcher, http.StatusForbidden},
	{types.ErrUnauthorizedCompletion, http.StatusForbidden},

	{types.ErrRequestNotFound, http.StatusNotFound},
	{types.ErrResourceNotFound, http.StatusNotFound},

	{types.ErrInvalidMessage, http.StatusBadRequest},
	{types.ErrInvalidCapability, http.StatusBadRequest},
	{types.ErrInvalidParams, http.StatusBadRequest},
	{types.ErrInvalidGenesis, http.StatusBadRequest},

	{types.ErrRequestNotPending, http.StatusConflict},
	{types.ErrRequestNotMatched, http.StatusConflict},
	{types.ErrInvalidStateTransition, http.StatusConflict},
	{types.ErrResourceMismatch, http.StatusConflict},
	{types.ErrResourceNotActive, http.StatusConflict},
	{types.ErrResourceEngaged, http.StatusConflict},

	{types.ErrInsufficientComputationPower, http.StatusUnprocessableEntity},
	{types.ErrInsufficientMemory, http.StatusUnprocessableEntity},
	{types.ErrInsufficientCapability, http.StatusUnprocessableEntity},
	{types.ErrPriceTooHigh, http.StatusUnprocessableEntity},
	{types.ErrReputationTooLow, http.StatusUnprocessableEntity},
	{types.ErrLocationMismatch, http.StatusUnprocessableEntity},
	{types.ErrNoEligibleResource, http.StatusUnprocessableEntity},

	{types.ErrSettlementFailed, http.StatusBadGateway},
}

// HTTPStatus maps a keeper error to an HTTP status code
func HTTPStatus(err error) int {
	for _, m := range statusMapping {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// NewErrorResponse describes err for the client
func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Error:      err.Error(),
		Code:       "INTERNAL_ERROR",
		Suggestion: types.GetRecoverySuggestion(err),
	}

	var coded *sdkerrors.Error
	if errors.As(err, &coded) {
		resp.Code = "MATCHING_ERROR"
		resp.Codespace = coded.Codespace()
		resp.ABCICode = coded.ABCICode()
	}
	return resp
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	resp := NewErrorResponse(err)
	resp.RequestID = RequestIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		s.logger.Error("matching operation failed",
			"path", r.URL.Path, "error", err, "request_id", resp.RequestID)
	}
	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      "BAD_REQUEST",
		RequestID: RequestIDFromContext(r.Context()),
	}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
