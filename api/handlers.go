package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/calctra/resmatch/app/telemetry"
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// Request bodies. The signer of every message is the token subject, so no
// body carries an identity.

type RegisterResourceRequest struct {
	ResourceType string            `json:"resource_type"`
	Spec         types.ComputeSpec `json:"spec"`
	PricePerUnit uint64            `json:"price_per_unit"`
	Location     string            `json:"location"`
}

type SetResourceActiveRequest struct {
	Active bool `json:"active"`
}

type UpdateResourcePriceRequest struct {
	PricePerUnit uint64 `json:"price_per_unit"`
}

type SubmitRequestRequest struct {
	ComputationType   string            `json:"computation_type"`
	Spec              types.ComputeSpec `json:"spec"`
	MaxPricePerUnit   uint64            `json:"max_price_per_unit"`
	PreferredLocation string            `json:"preferred_location"`
	StrictLocation    bool              `json:"strict_location"`
	MinReputation     int64             `json:"min_reputation"`
	DurationEstimate  uint64            `json:"duration_estimate"`
}

type MatchRequestRequest struct {
	ResourceID uint64 `json:"resource_id"`
}

type CompleteRequest struct {
	ResourceID     uint64 `json:"resource_id"`
	ActualDuration uint64 `json:"actual_duration"`
	Success        bool   `json:"success"`
}

type UpdateParamsRequest struct {
	Params types.Params `json:"params"`
}

// execute runs msg through the message server and writes its response
func (s *Server) execute(w http.ResponseWriter, r *http.Request, status int, msg types.Msg) {
	ctx, span := telemetry.StartMsgSpan(r.Context(), msg)
	defer span.End()

	resp, err := keeper.Dispatch(ctx, s.msgServer, msg)
	if err != nil {
		telemetry.RecordError(span, err)
		s.writeError(w, r, err)
		return
	}
	telemetry.SetSpanStatus(span, true, "")
	writeJSON(w, status, resp)
}

// Resource handlers

func (s *Server) handleRegisterResource(w http.ResponseWriter, r *http.Request) {
	var req RegisterResourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusCreated, &types.MsgRegisterResource{
		Provider:     callerFromRequest(r),
		ResourceType: req.ResourceType,
		Spec:         req.Spec,
		PricePerUnit: req.PricePerUnit,
		Location:     req.Location,
	})
}

func (s *Server) handleSetResourceActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SetResourceActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgSetResourceActive{
		Provider:   callerFromRequest(r),
		ResourceId: id,
		Active:     req.Active,
	})
}

func (s *Server) handleUpdateResourcePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateResourcePriceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgUpdateResourcePrice{
		Provider:     callerFromRequest(r),
		ResourceId:   id,
		PricePerUnit: req.PricePerUnit,
	})
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := s.keeper.GetResource(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleListResources lists resources, optionally filtered by provider or
// to active ones only.
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		resources []types.Resource
		err       error
	)
	switch {
	case query.Get("provider") != "":
		resources, err = s.keeper.GetResourcesByProvider(r.Context(), types.Identity(query.Get("provider")))
	case query.Get("active") == "true":
		resources, err = s.keeper.GetActiveResources(r.Context())
	default:
		resources, err = s.keeper.GetAllResources(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if resources == nil {
		resources = []types.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resources": resources,
		"total":     len(resources),
	})
}

// Request handlers

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusCreated, &types.MsgSubmitRequest{
		Requester:         callerFromRequest(r),
		ComputationType:   req.ComputationType,
		Spec:              req.Spec,
		MaxPricePerUnit:   req.MaxPricePerUnit,
		PreferredLocation: req.PreferredLocation,
		StrictLocation:    req.StrictLocation,
		MinReputation:     req.MinReputation,
		DurationEstimate:  req.DurationEstimate,
	})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := s.keeper.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleListRequests lists requests, optionally filtered by status or requester
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var (
		requests []types.Request
		err      error
	)
	switch {
	case query.Get("status") != "":
		status, parseErr := types.ParseRequestStatus(query.Get("status"))
		if parseErr != nil {
			writeBadRequest(w, r, "Invalid status filter", parseErr)
			return
		}
		requests, err = s.keeper.GetRequestsByStatus(r.Context(), status)
	case query.Get("requester") != "":
		requests, err = s.keeper.GetRequestsByRequester(r.Context(), types.Identity(query.Get("requester")))
	default:
		requests, err = s.keeper.GetAllRequests(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if requests == nil {
		requests = []types.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"total":    len(requests),
	})
}

// handleRankCandidates returns every eligible resource for a pending
// request, best first.
func (s *Server) handleRankCandidates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ranked, err := s.keeper.RankCandidates(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ranked == nil {
		ranked = []types.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": id,
		"candidates": ranked,
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req MatchRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgMatchRequest{
		Matcher:    callerFromRequest(r),
		RequestId:  id,
		ResourceId: req.ResourceID,
	})
}

func (s *Server) handleAutoMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgAutoMatch{
		Matcher:   callerFromRequest(r),
		RequestId: id,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgStartComputation{
		Caller:    callerFromRequest(r),
		RequestId: id,
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgCompleteComputation{
		Caller:         callerFromRequest(r),
		RequestId:      id,
		ResourceId:     req.ResourceID,
		ActualDuration: req.ActualDuration,
		Success:        req.Success,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgCancelRequest{
		Caller:    callerFromRequest(r),
		RequestId: id,
	})
}

// Module handlers

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	params, err := s.keeper.GetParams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var req UpdateParamsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.execute(w, r, http.StatusOK, &types.MsgUpdateParams{
		Authority: callerFromRequest(r),
		Params:    req.Params,
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.keeper.GetSystemState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, r, "limit must be a positive integer", err)
			return
		}
		limit = min(n, maxEventLimit)
	}

	events := []types.Event{}
	if s.events != nil {
		events = append(events, s.events.Recent(limit)...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

func (s *Server) handleExportGenesis(w http.ResponseWriter, r *http.Request) {
	gs, err := s.keeper.ExportGenesis(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeBadRequest(w, r, fmt.Sprintf("invalid id %q", raw), err)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, r, "Invalid request body", err)
		return false
	}
	return true
}
