package keeper

import (
	"context"
	"encoding/json"
	"strconv"

	storetypes "cosmossdk.io/store/types"
	"go.opentelemetry.io/otel/attribute"

	"github.com/calctra/resmatch/x/matching/types"
)

// RegisterResource stores a new active resource offer for provider and
// returns its id. Every call creates a new record.
func (k *Keeper) RegisterResource(
	ctx context.Context,
	provider types.Identity,
	resourceType string,
	spec types.ComputeSpec,
	pricePerUnit uint64,
	location string,
) (id uint64, err error) {
	ctx, done := k.trace(ctx, opRegisterResource, attribute.String("provider", provider.String()))
	defer func() { done(err) }()

	now := k.timestamp()
	res := types.Resource{
		Provider:     provider,
		ResourceType: resourceType,
		Spec:         spec,
		PricePerUnit: pricePerUnit,
		Location:     location,
		Active:       true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := res.ValidateBasic(); err != nil {
		return 0, err
	}
	if err := k.requireSigner(ctx, provider); err != nil {
		return 0, err
	}

	branch := k.branch()
	_, err = k.commit(ctx, branch, func(state *types.SystemState) error {
		next, err := nextResourceID(state)
		if err != nil {
			return err
		}
		res.Id = next
		return k.setResource(branch, res)
	})
	if err != nil {
		return 0, err
	}

	k.metrics.RecordResourceRegistered(resourceType)
	k.logger.Info("resource registered", "resource_id", res.Id, "provider", provider, "location", location, "price", pricePerUnit)
	k.emit(ctx, types.NewEvent(types.EventTypeResourceRegistered,
		types.AttributeKeyResourceID, strconv.FormatUint(res.Id, 10),
		types.AttributeKeyProvider, provider.String(),
		types.AttributeKeyPrice, strconv.FormatUint(pricePerUnit, 10),
		types.AttributeKeyLocation, location,
	))

	return res.Id, nil
}

// SetResourceActive toggles whether the resource accepts new matches.
// Only its provider may do so. Live engagements are unaffected.
func (k *Keeper) SetResourceActive(ctx context.Context, resourceID uint64, caller types.Identity, active bool) (err error) {
	ctx, done := k.trace(ctx, opSetResourceActive, attribute.Int64("resource_id", int64(resourceID)))
	defer func() { done(err) }()

	if err := k.requireSigner(ctx, caller); err != nil {
		return err
	}

	unlock := k.lockResource(resourceID)
	defer unlock()

	branch := k.branch()
	res, err := k.getResource(branch, resourceID)
	if err != nil {
		return err
	}
	if res.Provider != caller {
		return types.ErrUnauthorized.Wrapf("%s does not own resource %d", caller, resourceID)
	}
	if res.Active == active {
		return nil
	}

	res.Active = active
	res.UpdatedAt = k.timestamp()
	if err := k.setResource(branch, res); err != nil {
		return err
	}
	if _, err := k.commit(ctx, branch, nil); err != nil {
		return err
	}

	eventType := types.EventTypeResourceDeactivated
	if active {
		eventType = types.EventTypeResourceActivated
	}
	k.logger.Info("resource activity changed", "resource_id", resourceID, "active", active)
	k.emit(ctx, types.NewEvent(eventType,
		types.AttributeKeyResourceID, strconv.FormatUint(resourceID, 10),
		types.AttributeKeyProvider, caller.String(),
	))
	return nil
}

// UpdateResourcePrice changes the price the provider asks per unit. Live
// matches keep the price agreed when they were matched.
func (k *Keeper) UpdateResourcePrice(ctx context.Context, resourceID uint64, caller types.Identity, pricePerUnit uint64) (err error) {
	ctx, done := k.trace(ctx, opUpdateResourcePrice, attribute.Int64("resource_id", int64(resourceID)))
	defer func() { done(err) }()

	if err := k.requireSigner(ctx, caller); err != nil {
		return err
	}

	unlock := k.lockResource(resourceID)
	defer unlock()

	branch := k.branch()
	res, err := k.getResource(branch, resourceID)
	if err != nil {
		return err
	}
	if res.Provider != caller {
		return types.ErrUnauthorized.Wrapf("%s does not own resource %d", caller, resourceID)
	}

	res.PricePerUnit = pricePerUnit
	res.UpdatedAt = k.timestamp()
	if err := k.setResource(branch, res); err != nil {
		return err
	}
	if _, err := k.commit(ctx, branch, nil); err != nil {
		return err
	}

	k.emit(ctx, types.NewEvent(types.EventTypeResourcePriceUpdated,
		types.AttributeKeyResourceID, strconv.FormatUint(resourceID, 10),
		types.AttributeKeyPrice, strconv.FormatUint(pricePerUnit, 10),
	))
	return nil
}

// GetResource returns a resource by id
func (k *Keeper) GetResource(_ context.Context, resourceID uint64) (types.Resource, error) {
	return k.getResource(k.store, resourceID)
}

func (k *Keeper) getResource(store storetypes.KVStore, resourceID uint64) (types.Resource, error) {
	var res types.Resource
	found, err := getJSON(store, GetResourceKey(resourceID), &res)
	if err != nil {
		return types.Resource{}, err
	}
	if !found {
		return types.Resource{}, types.ErrResourceNotFound.Wrapf("resource %d", resourceID)
	}
	return res, nil
}

// setResource stores the record and keeps the active and provider indexes in step.
func (k *Keeper) setResource(store storetypes.KVStore, res types.Resource) error {
	if err := setJSON(store, GetResourceKey(res.Id), res); err != nil {
		return err
	}
	if res.Active {
		store.Set(GetActiveResourceKey(res.Id), []byte{1})
	} else {
		store.Delete(GetActiveResourceKey(res.Id))
	}
	store.Set(GetResourceByProviderKey(res.Provider, res.Id), []byte{1})
	return nil
}

// IterateResources calls cb for every resource in id order until cb returns true.
// Records are read before cb runs, so cb may call back into the keeper.
func (k *Keeper) IterateResources(_ context.Context, cb func(types.Resource) (stop bool)) error {
	var resources []types.Resource
	err := decodeAll(k.store, ResourceKeyPrefix, func(bz []byte) error {
		var res types.Resource
		if err := json.Unmarshal(bz, &res); err != nil {
			return types.ErrStoreFailure.Wrapf("decode resource: %v", err)
		}
		resources = append(resources, res)
		return nil
	})
	if err != nil {
		return err
	}

	for _, res := range resources {
		if cb(res) {
			break
		}
	}
	return nil
}

// GetAllResources returns every resource in id order.
func (k *Keeper) GetAllResources(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	err := k.IterateResources(ctx, func(res types.Resource) bool {
		resources = append(resources, res)
		return false
	})
	return resources, err
}

// GetActiveResources returns every active resource in id order.
func (k *Keeper) GetActiveResources(_ context.Context) ([]types.Resource, error) {
	return k.resourcesByIndex(ActiveResourcesPrefix)
}

// GetResourcesByProvider returns the resources owned by provider in id order.
func (k *Keeper) GetResourcesByProvider(_ context.Context, provider types.Identity) ([]types.Resource, error) {
	return k.resourcesByIndex(GetResourcesByProviderPrefix(provider))
}

func (k *Keeper) resourcesByIndex(prefix []byte) ([]types.Resource, error) {
	ids := collectIndexIDs(k.store, prefix)
	resources := make([]types.Resource, 0, len(ids))
	for _, id := range ids {
		res, err := k.getResource(k.store, id)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}
