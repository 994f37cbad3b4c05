package keeper

import (
	"context"
	"fmt"

	"github.com/calctra/resmatch/x/matching/types"
)

// InitGenesis initializes the matching module's state from a genesis state.
// The store must not hold system state yet.
func (k *Keeper) InitGenesis(ctx context.Context, data types.GenesisState) error {
	if err := data.Validate(); err != nil {
		return types.ErrInvalidGenesis.Wrap(err.Error())
	}

	k.counterMu.Lock()
	defer k.counterMu.Unlock()

	if k.store.Has(SystemStateKey) {
		return types.ErrInvalidGenesis.Wrap("store already initialized")
	}

	branch := k.branch()

	// Set params
	if err := setJSON(branch, ParamsKey, data.Params); err != nil {
		return fmt.Errorf("failed to set params: %w", err)
	}

	// Initialize resources
	for _, res := range data.Resources {
		if err := k.setResource(branch, res); err != nil {
			return fmt.Errorf("failed to initialize resource %d: %w", res.Id, err)
		}
	}

	// Initialize requests
	for _, req := range data.Requests {
		if err := k.setRequest(branch, req, types.RequestStatusUnspecified); err != nil {
			return fmt.Errorf("failed to initialize request %d: %w", req.Id, err)
		}
	}

	// Counters last, so a partially written genesis is never mistaken for
	// an initialized store.
	if err := setJSON(branch, SystemStateKey, data.State); err != nil {
		return fmt.Errorf("failed to set system state: %w", err)
	}
	branch.Write()

	k.invalidateParams()
	k.metrics.SetActiveMatches(data.State.ActiveMatches)
	k.logger.Info("matching genesis initialized",
		"authority", data.State.Authority,
		"resources", len(data.Resources),
		"requests", len(data.Requests),
	)
	return nil
}

// ExportGenesis returns the matching module's exported genesis state.
func (k *Keeper) ExportGenesis(ctx context.Context) (*types.GenesisState, error) {
	var (
		gs  types.GenesisState
		err error
	)
	k.snapshot(func() {
		if gs.Params, err = k.GetParams(ctx); err != nil {
			err = fmt.Errorf("failed to get params: %w", err)
			return
		}
		if gs.State, err = loadSystemState(k.store); err != nil {
			err = fmt.Errorf("failed to get system state: %w", err)
			return
		}
		if gs.Resources, err = k.GetAllResources(ctx); err != nil {
			err = fmt.Errorf("failed to get resources: %w", err)
			return
		}
		if gs.Requests, err = k.GetAllRequests(ctx); err != nil {
			err = fmt.Errorf("failed to get requests: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	if gs.Resources == nil {
		gs.Resources = []types.Resource{}
	}
	if gs.Requests == nil {
		gs.Requests = []types.Request{}
	}
	return &gs, nil
}
