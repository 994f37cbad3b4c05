package keeper

import (
	"context"
	"errors"
	"strconv"

	"cosmossdk.io/math"
	"cosmossdk.io/store/cachekv"
	"go.opentelemetry.io/otel/attribute"

	"github.com/calctra/resmatch/x/matching/types"
)

// CompletionResult describes the ledger effects of a completion.
type CompletionResult struct {
	Status         types.RequestStatus `json:"status"`
	Reputation     int64               `json:"reputation"`
	TotalUsageTime uint64              `json:"total_usage_time"`
	SettledAmount  math.Int            `json:"settled_amount"`
	ActiveMatches  uint64              `json:"active_matches"`
}

// engagement is a request together with the resource it is matched to,
// both loaded from the same branch under their locks.
type engagement struct {
	branch   *cachekv.Store
	request  types.Request
	resource *types.Resource
	unlock   func()
}

// loadEngagement locks requestID and, when the request is matched, its
// resource. The returned unlock releases both in reverse order.
func (k *Keeper) loadEngagement(requestID uint64) (*engagement, error) {
	unlockRequest := k.lockRequest(requestID)

	branch := k.branch()
	req, err := k.getRequest(branch, requestID)
	if err != nil {
		unlockRequest()
		return nil, err
	}

	e := &engagement{branch: branch, request: req, unlock: unlockRequest}
	if !req.HasMatch() {
		return e, nil
	}

	unlockResource := k.lockResource(*req.MatchedResource)
	res, err := k.getResource(branch, *req.MatchedResource)
	if err != nil {
		unlockResource()
		unlockRequest()
		return nil, err
	}
	e.resource = &res
	e.unlock = func() {
		unlockResource()
		unlockRequest()
	}
	return e, nil
}

// mayFinish reports whether caller is the requester, the matched provider
// or the authority.
func (e *engagement) mayFinish(caller, authority types.Identity) bool {
	if caller == authority || caller == e.request.Requester {
		return true
	}
	return e.resource != nil && caller == e.resource.Provider
}

// Start moves a matched request to InProgress. Only the matched provider or
// the authority may start it.
func (k *Keeper) Start(ctx context.Context, requestID uint64, caller types.Identity) (err error) {
	ctx, done := k.trace(ctx, opStart, attribute.Int64("request_id", int64(requestID)))
	defer func() { done(err) }()

	if err := k.requireSigner(ctx, caller); err != nil {
		return err
	}

	e, err := k.loadEngagement(requestID)
	if err != nil {
		return err
	}
	defer e.unlock()

	authority, err := k.GetAuthority(ctx)
	if err != nil {
		return err
	}
	if caller != authority && (e.resource == nil || caller != e.resource.Provider) {
		return types.ErrUnauthorized.Wrapf("%s may not start request %d", caller, requestID)
	}
	req := e.request
	if req.Status == types.RequestStatusPending {
		return types.ErrRequestNotMatched.Wrapf("request %d is %s", requestID, req.Status)
	}
	if err := types.ValidateTransition(req.Status, types.RequestStatusInProgress); err != nil {
		return err
	}

	req.Status = types.RequestStatusInProgress
	if err := k.setRequest(e.branch, req, types.RequestStatusMatched); err != nil {
		return err
	}
	if _, err := k.commit(ctx, e.branch, nil); err != nil {
		return err
	}

	k.logger.Info("computation started", "request_id", requestID, "resource_id", req.MatchedResourceID())
	k.emit(ctx, types.NewEvent(types.EventTypeRequestStarted,
		types.AttributeKeyRequestID, strconv.FormatUint(requestID, 10),
		types.AttributeKeyResourceID, strconv.FormatUint(req.MatchedResourceID(), 10),
		types.AttributeKeyCaller, caller.String(),
	))
	return nil
}

// Complete finalizes an engaged request as Completed or Failed, applies the
// usage and reputation update to its resource and releases the engagement.
// On success the agreed price times actualDuration is settled from requester
// to provider before anything is committed; a failed transfer aborts the
// whole completion.
func (k *Keeper) Complete(
	ctx context.Context,
	requestID, resourceID, actualDuration uint64,
	success bool,
	caller types.Identity,
) (result CompletionResult, err error) {
	ctx, done := k.trace(ctx, opComplete,
		attribute.Int64("request_id", int64(requestID)),
		attribute.Int64("resource_id", int64(resourceID)),
		attribute.Bool("success", success),
	)
	defer func() { done(err) }()

	if err := k.requireSigner(ctx, caller); err != nil {
		return CompletionResult{}, err
	}

	e, err := k.loadEngagement(requestID)
	if err != nil {
		return CompletionResult{}, err
	}
	defer e.unlock()

	authority, err := k.GetAuthority(ctx)
	if err != nil {
		return CompletionResult{}, err
	}
	// Reputation bounds must not change between the clamp and the commit.
	k.paramsGate.RLock()
	defer k.paramsGate.RUnlock()
	params, err := k.GetParams(ctx)
	if err != nil {
		return CompletionResult{}, err
	}

	req := e.request
	if !e.mayFinish(caller, authority) {
		return CompletionResult{}, types.ErrUnauthorizedCompletion.Wrapf("%s may not complete request %d", caller, requestID)
	}
	if !req.Status.IsEngaged() {
		notMatched := types.ErrRequestNotMatched.Wrapf("request %d is %s", requestID, req.Status)
		if req.Status.IsTerminal() {
			return CompletionResult{}, types.JoinErrors(types.ValidateTransition(req.Status, types.RequestStatusCompleted), notMatched)
		}
		return CompletionResult{}, notMatched
	}
	if req.MatchedResourceID() != resourceID || e.resource == nil {
		return CompletionResult{}, types.ErrResourceMismatch.Wrapf("request %d is matched to %d, not %d",
			requestID, req.MatchedResourceID(), resourceID)
	}

	res := *e.resource
	if res.ActiveMatches == 0 {
		return CompletionResult{}, k.consistencyFault(ctx,
			types.ErrCounterUnderflow.Wrapf("resource %d has no engagement to release", res.Id), "request_id", requestID)
	}
	state, err := k.GetSystemState(ctx)
	if err != nil {
		return CompletionResult{}, err
	}
	if state.ActiveMatches == 0 {
		return CompletionResult{}, k.consistencyFault(ctx,
			types.ErrCounterUnderflow.Wrap("active matches already zero"), "request_id", requestID)
	}

	previous := req.Status
	update := applyUsage(&res, actualDuration, success, params)
	now := k.timestamp()
	req.Status = types.RequestStatusFailed
	if success {
		req.Status = types.RequestStatusCompleted
	}
	req.ActualDuration = actualDuration
	req.FinishedAt = &now
	res.ActiveMatches--
	res.UpdatedAt = now

	amount := math.ZeroInt()
	if success {
		amount = SettlementAmount(req.AgreedPrice, actualDuration)
		req.SettledAmount = &amount
	}

	if err := k.setRequest(e.branch, req, previous); err != nil {
		return CompletionResult{}, err
	}
	if err := k.setResource(e.branch, res); err != nil {
		return CompletionResult{}, err
	}

	// Funds move under the counter lock, after the gauge decrement succeeded.
	settle := func(state *types.SystemState) error {
		if err := decrementActiveMatches(state); err != nil {
			return err
		}
		if !amount.IsPositive() {
			return nil
		}
		if err := k.settlement.Transfer(ctx, req.Requester, res.Provider, amount); err != nil {
			return types.ErrSettlementFailed.Wrapf("transfer %s from %s to %s: %v",
				amount, req.Requester, res.Provider, err)
		}
		return nil
	}

	state, err = k.commit(ctx, e.branch, settle)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrCounterUnderflow):
			return CompletionResult{}, k.consistencyFault(ctx, err, "request_id", requestID)
		case errors.Is(err, types.ErrSettlementFailed):
			k.metrics.RecordSettlementFailure()
			k.logger.Error("settlement failed; completion aborted", "request_id", requestID, "amount", amount.String(), "error", err)
		}
		return CompletionResult{}, err
	}

	k.metrics.RecordCompletion(req.Status, actualDuration)
	k.logger.Info("computation finished",
		"request_id", requestID, "resource_id", resourceID, "status", req.Status,
		"duration", actualDuration, "reputation", res.Reputation, "settled", amount.String())

	eventType := types.EventTypeRequestFailed
	if success {
		eventType = types.EventTypeRequestCompleted
	}
	k.emit(ctx, types.NewEvent(eventType,
		types.AttributeKeyRequestID, strconv.FormatUint(requestID, 10),
		types.AttributeKeyResourceID, strconv.FormatUint(resourceID, 10),
		types.AttributeKeyStatus, req.Status.String(),
		types.AttributeKeyDuration, strconv.FormatUint(actualDuration, 10),
		types.AttributeKeyCaller, caller.String(),
		types.AttributeKeyActiveMatches, strconv.FormatUint(state.ActiveMatches, 10),
	))
	k.emit(ctx, types.NewEvent(types.EventTypeReputationUpdated,
		types.AttributeKeyResourceID, strconv.FormatUint(resourceID, 10),
		types.AttributeKeyReputation, strconv.FormatInt(update.reputation, 10),
		types.AttributeKeyTotalUsageTime, strconv.FormatUint(update.totalUsageTime, 10),
	))
	if amount.IsPositive() {
		k.emit(ctx, types.NewEvent(types.EventTypeSettlement,
			types.AttributeKeyRequestID, strconv.FormatUint(requestID, 10),
			types.AttributeKeyRequester, req.Requester.String(),
			types.AttributeKeyProvider, res.Provider.String(),
			types.AttributeKeyAmount, amount.String(),
		))
	}

	return CompletionResult{
		Status:         req.Status,
		Reputation:     res.Reputation,
		TotalUsageTime: res.TotalUsageTime,
		SettledAmount:  amount,
		ActiveMatches:  state.ActiveMatches,
	}, nil
}

// Cancel withdraws a request that has not finished. Cancelling an engaged
// request releases its resource and clears the match.
func (k *Keeper) Cancel(ctx context.Context, requestID uint64, caller types.Identity) (err error) {
	ctx, done := k.trace(ctx, opCancel, attribute.Int64("request_id", int64(requestID)))
	defer func() { done(err) }()

	if err := k.requireSigner(ctx, caller); err != nil {
		return err
	}

	e, err := k.loadEngagement(requestID)
	if err != nil {
		return err
	}
	defer e.unlock()

	authority, err := k.GetAuthority(ctx)
	if err != nil {
		return err
	}

	req := e.request
	if !e.mayFinish(caller, authority) {
		return types.ErrUnauthorizedCompletion.Wrapf("%s may not cancel request %d", caller, requestID)
	}
	if err := types.ValidateTransition(req.Status, types.RequestStatusCancelled); err != nil {
		return err
	}

	previous := req.Status
	engaged := previous.IsEngaged()
	releasedResource := req.MatchedResourceID()
	now := k.timestamp()
	req.Status = types.RequestStatusCancelled
	req.MatchedResource = nil
	req.AgreedPrice = 0
	req.FinishedAt = &now

	var update func(*types.SystemState) error
	if engaged {
		if e.resource == nil {
			return k.consistencyFault(ctx, types.ErrStoreFailure.Wrapf("engaged request %d has no resource", requestID))
		}
		res := *e.resource
		if res.ActiveMatches == 0 {
			return k.consistencyFault(ctx,
				types.ErrCounterUnderflow.Wrapf("resource %d has no engagement to release", res.Id), "request_id", requestID)
		}
		res.ActiveMatches--
		res.UpdatedAt = now
		if err := k.setResource(e.branch, res); err != nil {
			return err
		}
		update = decrementActiveMatches
	}
	if err := k.setRequest(e.branch, req, previous); err != nil {
		return err
	}

	state, err := k.commit(ctx, e.branch, update)
	if err != nil {
		if errors.Is(err, types.ErrCounterUnderflow) {
			return k.consistencyFault(ctx, err, "request_id", requestID)
		}
		return err
	}

	k.metrics.RecordCancellation(previous)
	k.logger.Info("request cancelled", "request_id", requestID, "from", previous, "caller", caller)
	attrs := []string{
		types.AttributeKeyRequestID, strconv.FormatUint(requestID, 10),
		types.AttributeKeyStatus, previous.String(),
		types.AttributeKeyCaller, caller.String(),
		types.AttributeKeyActiveMatches, strconv.FormatUint(state.ActiveMatches, 10),
	}
	if engaged {
		attrs = append(attrs, types.AttributeKeyResourceID, strconv.FormatUint(releasedResource, 10))
	}
	k.emit(ctx, types.NewEvent(types.EventTypeRequestCancelled, attrs...))
	return nil
}
