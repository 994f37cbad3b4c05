package keeper

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/calctra/resmatch/x/matching/types"
)

// MatchResult describes a successful match.
type MatchResult struct {
	RequestID     uint64 `json:"request_id"`
	ResourceID    uint64 `json:"resource_id"`
	ActiveMatches uint64 `json:"active_matches"`
}

// Match binds a pending request to resourceID on behalf of caller, who must
// be the authority or the resource's provider. Preconditions are checked in
// a fixed order and nothing is written unless all of them hold.
func (k *Keeper) Match(ctx context.Context, requestID, resourceID uint64, caller types.Identity) (result MatchResult, err error) {
	ctx, done := k.trace(ctx, opMatch,
		attribute.Int64("request_id", int64(requestID)),
		attribute.Int64("resource_id", int64(resourceID)),
	)
	defer func() {
		k.metrics.RecordMatchAttempt(err)
		done(err)
	}()

	if err := k.requireSigner(ctx, caller); err != nil {
		return MatchResult{}, err
	}

	unlockRequest := k.lockRequest(requestID)
	defer unlockRequest()
	unlockResource := k.lockResource(resourceID)
	defer unlockResource()

	branch := k.branch()
	req, err := k.getRequest(branch, requestID)
	if err != nil {
		return MatchResult{}, err
	}
	res, err := k.getResource(branch, resourceID)
	if err != nil {
		return MatchResult{}, err
	}
	authority, err := k.GetAuthority(ctx)
	if err != nil {
		return MatchResult{}, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return MatchResult{}, err
	}

	if caller != authority && caller != res.Provider {
		return MatchResult{}, types.ErrUnauthorizedMatcher.Wrapf("%s may not match resource %d", caller, resourceID)
	}
	if req.Status != types.RequestStatusPending {
		return MatchResult{}, notPendingError(req)
	}
	if err := types.CheckEligibility(effectiveRequest(req, params), res); err != nil {
		return MatchResult{}, err
	}
	if res.ActiveMatches >= params.MaxMatchesPerResource {
		return MatchResult{}, types.ErrResourceEngaged.Wrapf("resource %d holds %d of %d engagements",
			resourceID, res.ActiveMatches, params.MaxMatchesPerResource)
	}

	now := k.timestamp()
	previous := req.Status
	req.Status = types.RequestStatusMatched
	req.MatchedResource = &resourceID
	req.AgreedPrice = res.PricePerUnit
	req.MatchedAt = &now
	res.ActiveMatches++
	res.UpdatedAt = now

	if err := k.setRequest(branch, req, previous); err != nil {
		return MatchResult{}, err
	}
	if err := k.setResource(branch, res); err != nil {
		return MatchResult{}, err
	}
	state, err := k.commit(ctx, branch, incrementActiveMatches)
	if err != nil {
		return MatchResult{}, err
	}

	k.logger.Info("request matched", "request_id", requestID, "resource_id", resourceID, "matcher", caller, "active_matches", state.ActiveMatches)
	k.emit(ctx, types.NewEvent(types.EventTypeRequestMatched,
		types.AttributeKeyRequestID, strconv.FormatUint(requestID, 10),
		types.AttributeKeyResourceID, strconv.FormatUint(resourceID, 10),
		types.AttributeKeyCaller, caller.String(),
		types.AttributeKeyPrice, strconv.FormatUint(res.PricePerUnit, 10),
		types.AttributeKeyActiveMatches, strconv.FormatUint(state.ActiveMatches, 10),
	))

	return MatchResult{RequestID: requestID, ResourceID: resourceID, ActiveMatches: state.ActiveMatches}, nil
}

// notPendingError reports a match attempt on a request that has left
// Pending. Finalized requests also carry ErrInvalidStateTransition.
func notPendingError(req types.Request) error {
	notPending := types.ErrRequestNotPending.Wrapf("request %d is %s", req.Id, req.Status)
	if req.Status.IsTerminal() {
		return types.JoinErrors(notPending, types.ValidateTransition(req.Status, types.RequestStatusMatched))
	}
	return notPending
}

// effectiveRequest applies module-wide location strictness to req.
func effectiveRequest(req types.Request, params types.Params) types.Request {
	if params.StrictLocation && strings.TrimSpace(req.PreferredLocation) != "" {
		req.StrictLocation = true
	}
	return req
}

// FindBestMatch returns the resource SelectBestCandidate would pick for a
// pending request among active resources with a free engagement slot.
func (k *Keeper) FindBestMatch(ctx context.Context, requestID uint64) (uint64, bool, error) {
	req, err := k.GetRequest(ctx, requestID)
	if err != nil {
		return 0, false, err
	}
	if req.Status != types.RequestStatusPending {
		return 0, false, notPendingError(req)
	}
	pool, err := k.candidatePool(ctx)
	if err != nil {
		return 0, false, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, false, err
	}

	k.metrics.ObserveCandidatePool(len(pool))
	id, ok := types.SelectBestCandidate(effectiveRequest(req, params), pool)
	return id, ok, nil
}

// RankCandidates lists eligible resources for a request in selection order.
func (k *Keeper) RankCandidates(ctx context.Context, requestID uint64) ([]types.Resource, error) {
	req, err := k.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	pool, err := k.candidatePool(ctx)
	if err != nil {
		return nil, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	return types.RankCandidates(effectiveRequest(req, params), pool), nil
}

func (k *Keeper) candidatePool(ctx context.Context) ([]types.Resource, error) {
	params, err := k.GetParams(ctx)
	if err != nil {
		return nil, err
	}
	active, err := k.GetActiveResources(ctx)
	if err != nil {
		return nil, err
	}
	pool := active[:0]
	for _, res := range active {
		if res.ActiveMatches < params.MaxMatchesPerResource {
			pool = append(pool, res)
		}
	}
	return pool, nil
}

// AutoMatch selects the best candidate for a request and makes a single
// Match attempt with it. A lost race surfaces as the Match error; there is
// no retry.
func (k *Keeper) AutoMatch(ctx context.Context, requestID uint64, caller types.Identity) (MatchResult, error) {
	resourceID, ok, err := k.FindBestMatch(ctx, requestID)
	if err != nil {
		return MatchResult{}, err
	}
	if !ok {
		return MatchResult{}, types.ErrNoEligibleResource.Wrapf("request %d", requestID)
	}
	return k.Match(ctx, requestID, resourceID, caller)
}
