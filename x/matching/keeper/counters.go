package keeper

import (
	"context"
	"math"

	"cosmossdk.io/store/cachekv"
	storetypes "cosmossdk.io/store/types"

	"github.com/calctra/resmatch/x/matching/types"
)

// GetSystemState returns the sequence counters and the active match gauge.
func (k *Keeper) GetSystemState(_ context.Context) (types.SystemState, error) {
	return loadSystemState(k.store)
}

func loadSystemState(store storetypes.KVStore) (types.SystemState, error) {
	var state types.SystemState
	found, err := getJSON(store, SystemStateKey, &state)
	if err != nil {
		return types.SystemState{}, err
	}
	if !found {
		return types.SystemState{}, types.ErrStoreFailure.Wrap("system state not initialized")
	}
	return state, nil
}

// commit writes the branch to the backing store. When update is non-nil it
// runs against the current system state first; the updated state is staged
// in the same branch, so records and counters land together or not at all.
func (k *Keeper) commit(ctx context.Context, branch *cachekv.Store, update func(*types.SystemState) error) (types.SystemState, error) {
	k.counterMu.Lock()
	defer k.counterMu.Unlock()

	state, err := loadSystemState(k.store)
	if err != nil {
		return types.SystemState{}, err
	}
	if update != nil {
		if err := update(&state); err != nil {
			return types.SystemState{}, err
		}
		if err := setJSON(branch, SystemStateKey, state); err != nil {
			return types.SystemState{}, err
		}
	}

	branch.Write()
	k.metrics.SetActiveMatches(state.ActiveMatches)
	return state, nil
}

// nextResourceID advances the resource sequence. Ids start at 1.
func nextResourceID(state *types.SystemState) (uint64, error) {
	if state.ResourceCount == math.MaxUint64 {
		return 0, types.ErrCounterOverflow.Wrap("resource sequence exhausted")
	}
	state.ResourceCount++
	return state.ResourceCount, nil
}

// nextRequestID advances the request sequence. Ids start at 1.
func nextRequestID(state *types.SystemState) (uint64, error) {
	if state.RequestCount == math.MaxUint64 {
		return 0, types.ErrCounterOverflow.Wrap("request sequence exhausted")
	}
	state.RequestCount++
	return state.RequestCount, nil
}

func incrementActiveMatches(state *types.SystemState) error {
	if state.ActiveMatches == math.MaxUint64 {
		return types.ErrCounterOverflow.Wrap("active matches")
	}
	state.ActiveMatches++
	return nil
}

func decrementActiveMatches(state *types.SystemState) error {
	if state.ActiveMatches == 0 {
		return types.ErrCounterUnderflow.Wrap("active matches already zero")
	}
	state.ActiveMatches--
	return nil
}

// consistencyFault reports a counter that disagrees with stored records.
func (k *Keeper) consistencyFault(ctx context.Context, err error, keyvals ...interface{}) error {
	k.logger.Error("matching consistency fault", append([]interface{}{"error", err}, keyvals...)...)
	k.metrics.RecordConsistencyFault()
	k.emit(ctx, types.NewEvent(types.EventTypeConsistencyFault, types.AttributeKeyReason, err.Error()))
	return err
}
