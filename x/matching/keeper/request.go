package keeper

import (
	"context"
	"encoding/json"
	"strconv"

	storetypes "cosmossdk.io/store/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/calctra/resmatch/x/matching/types"
)

// SubmitRequest queues draft as a new pending request and returns its id.
// Id, status, match and timestamps of the draft are ignored.
func (k *Keeper) SubmitRequest(ctx context.Context, draft types.Request) (id uint64, err error) {
	ctx, done := k.trace(ctx, opSubmitRequest, attribute.String("requester", draft.Requester.String()))
	defer func() { done(err) }()

	req := draft
	req.Id = 0
	req.Status = types.RequestStatusPending
	req.MatchedResource = nil
	req.AgreedPrice = 0
	req.ActualDuration = 0
	req.SettledAmount = nil
	req.CreatedAt = k.timestamp()
	req.MatchedAt = nil
	req.FinishedAt = nil

	if err := req.ValidateBasic(); err != nil {
		return 0, err
	}
	params, err := k.GetParams(ctx)
	if err != nil {
		return 0, err
	}
	if req.MinReputation < params.ReputationFloor || req.MinReputation > params.ReputationCeiling {
		return 0, types.ErrInvalidCapability.Wrapf("min reputation %d outside [%d, %d]",
			req.MinReputation, params.ReputationFloor, params.ReputationCeiling)
	}
	if err := k.requireSigner(ctx, req.Requester); err != nil {
		return 0, err
	}

	branch := k.branch()
	_, err = k.commit(ctx, branch, func(state *types.SystemState) error {
		next, err := nextRequestID(state)
		if err != nil {
			return err
		}
		req.Id = next
		return k.setRequest(branch, req, types.RequestStatusUnspecified)
	})
	if err != nil {
		return 0, err
	}

	k.metrics.RecordRequestSubmitted(req.ComputationType)
	k.logger.Info("request submitted", "request_id", req.Id, "requester", req.Requester, "max_price", req.MaxPricePerUnit)
	k.emit(ctx, types.NewEvent(types.EventTypeRequestSubmitted,
		types.AttributeKeyRequestID, strconv.FormatUint(req.Id, 10),
		types.AttributeKeyRequester, req.Requester.String(),
		types.AttributeKeyPrice, strconv.FormatUint(req.MaxPricePerUnit, 10),
	))

	return req.Id, nil
}

// GetRequest returns a request by id
func (k *Keeper) GetRequest(_ context.Context, requestID uint64) (types.Request, error) {
	return k.getRequest(k.store, requestID)
}

func (k *Keeper) getRequest(store storetypes.KVStore, requestID uint64) (types.Request, error) {
	var req types.Request
	found, err := getJSON(store, GetRequestKey(requestID), &req)
	if err != nil {
		return types.Request{}, err
	}
	if !found {
		return types.Request{}, types.ErrRequestNotFound.Wrapf("request %d", requestID)
	}
	return req, nil
}

// setRequest stores the record and moves its status index entry from
// previous to the current status. Pass RequestStatusUnspecified for new records.
func (k *Keeper) setRequest(store storetypes.KVStore, req types.Request, previous types.RequestStatus) error {
	if err := setJSON(store, GetRequestKey(req.Id), req); err != nil {
		return err
	}
	if previous != req.Status {
		if previous != types.RequestStatusUnspecified {
			store.Delete(GetRequestByStatusKey(previous, req.Id))
		}
		store.Set(GetRequestByStatusKey(req.Status, req.Id), []byte{1})
	}
	store.Set(GetRequestByRequesterKey(req.Requester, req.Id), []byte{1})
	return nil
}

// IterateRequests calls cb for every request in id order until cb returns true.
// Records are read before cb runs, so cb may call back into the keeper.
func (k *Keeper) IterateRequests(_ context.Context, cb func(types.Request) (stop bool)) error {
	var requests []types.Request
	err := decodeAll(k.store, RequestKeyPrefix, func(bz []byte) error {
		var req types.Request
		if err := json.Unmarshal(bz, &req); err != nil {
			return types.ErrStoreFailure.Wrapf("decode request: %v", err)
		}
		requests = append(requests, req)
		return nil
	})
	if err != nil {
		return err
	}

	for _, req := range requests {
		if cb(req) {
			break
		}
	}
	return nil
}

// GetAllRequests returns every request in id order.
func (k *Keeper) GetAllRequests(ctx context.Context) ([]types.Request, error) {
	var requests []types.Request
	err := k.IterateRequests(ctx, func(req types.Request) bool {
		requests = append(requests, req)
		return false
	})
	return requests, err
}

// GetRequestsByStatus returns the requests currently in status, in id order.
func (k *Keeper) GetRequestsByStatus(_ context.Context, status types.RequestStatus) ([]types.Request, error) {
	return k.requestsByIndex(GetRequestsByStatusPrefix(status))
}

// GetPendingRequests returns the requests waiting for a match.
func (k *Keeper) GetPendingRequests(ctx context.Context) ([]types.Request, error) {
	return k.GetRequestsByStatus(ctx, types.RequestStatusPending)
}

// GetRequestsByRequester returns the requests submitted by requester, in id order.
func (k *Keeper) GetRequestsByRequester(_ context.Context, requester types.Identity) ([]types.Request, error) {
	return k.requestsByIndex(GetRequestsByRequesterPrefix(requester))
}

func (k *Keeper) requestsByIndex(prefix []byte) ([]types.Request, error) {
	ids := collectIndexIDs(k.store, prefix)
	requests := make([]types.Request, 0, len(ids))
	for _, id := range ids {
		req, err := k.getRequest(k.store, id)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}
