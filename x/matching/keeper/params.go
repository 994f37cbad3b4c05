package keeper

import (
	"context"

	"github.com/calctra/resmatch/x/matching/types"
)

// GetParams returns the current module parameters
func (k *Keeper) GetParams(_ context.Context) (types.Params, error) {
	k.paramsMu.RLock()
	if k.paramsCache != nil {
		params := *k.paramsCache
		k.paramsMu.RUnlock()
		return params, nil
	}
	k.paramsMu.RUnlock()

	k.paramsMu.Lock()
	defer k.paramsMu.Unlock()
	if k.paramsCache != nil {
		return *k.paramsCache, nil
	}

	var params types.Params
	found, err := getJSON(k.store, ParamsKey, &params)
	if err != nil {
		return types.Params{}, err
	}
	if !found {
		params = types.DefaultParams()
	}
	k.paramsCache = &params
	return params, nil
}

// SetParams validates and stores module parameters. Reputation bounds
// that would exclude a stored reputation are rejected.
func (k *Keeper) SetParams(ctx context.Context, params types.Params) error {
	if err := params.Validate(); err != nil {
		return types.ErrInvalidParams.Wrap(err.Error())
	}

	k.paramsGate.Lock()
	defer k.paramsGate.Unlock()

	var outside error
	err := k.IterateResources(ctx, func(res types.Resource) bool {
		if res.Reputation < params.ReputationFloor || res.Reputation > params.ReputationCeiling {
			outside = types.ErrInvalidParams.Wrapf("resource %d reputation %d outside [%d, %d]",
				res.Id, res.Reputation, params.ReputationFloor, params.ReputationCeiling)
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	if outside != nil {
		return outside
	}

	branch := k.branch()
	if err := setJSON(branch, ParamsKey, params); err != nil {
		return err
	}
	if _, err := k.commit(ctx, branch, nil); err != nil {
		return err
	}

	k.invalidateParams()
	return nil
}

func (k *Keeper) invalidateParams() {
	k.paramsMu.Lock()
	k.paramsCache = nil
	k.paramsMu.Unlock()
}

// UpdateParams replaces module parameters on behalf of the authority.
// Lowering MaxMatchesPerResource does not release existing engagements.
func (k *Keeper) UpdateParams(ctx context.Context, caller types.Identity, params types.Params) error {
	if err := k.requireSigner(ctx, caller); err != nil {
		return err
	}
	authority, err := k.GetAuthority(ctx)
	if err != nil {
		return err
	}
	if caller != authority {
		return types.ErrUnauthorized.Wrapf("%s is not the authority", caller)
	}
	return k.SetParams(ctx, params)
}
