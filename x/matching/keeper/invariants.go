package keeper

import (
	"context"
	"fmt"

	"github.com/calctra/resmatch/x/matching/types"
)

// Invariant checks a property of the stored state. It returns a description
// and whether the property is broken.
type Invariant func(ctx context.Context) (string, bool)

// InvariantRegistry collects named invariants.
type InvariantRegistry interface {
	RegisterRoute(moduleName, route string, invar Invariant)
}

// RegisterInvariants registers all matching module invariants
func RegisterInvariants(ir InvariantRegistry, k *Keeper) {
	ir.RegisterRoute(types.ModuleName, "active-matches", ActiveMatchesInvariant(k))
	ir.RegisterRoute(types.ModuleName, "engagement-exclusivity", EngagementInvariant(k))
	ir.RegisterRoute(types.ModuleName, "sequences", SequenceInvariant(k))
	ir.RegisterRoute(types.ModuleName, "reputation-bounds", ReputationBoundsInvariant(k))
	ir.RegisterRoute(types.ModuleName, "status-index", StatusIndexInvariant(k))
}

// AllInvariants runs all invariants of the matching module
func AllInvariants(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		for _, inv := range []Invariant{
			ActiveMatchesInvariant(k),
			EngagementInvariant(k),
			SequenceInvariant(k),
			ReputationBoundsInvariant(k),
			StatusIndexInvariant(k),
		} {
			if res, stop := inv(ctx); stop {
				return res, stop
			}
		}
		return "", false
	}
}

func formatInvariant(route, msg string) string {
	return fmt.Sprintf("%s: %s invariant\n%s\n", types.ModuleName, route, msg)
}

// snapshot runs fn while no operation can commit, so fn sees records and
// counters from the same point in time.
func (k *Keeper) snapshot(fn func()) {
	k.counterMu.Lock()
	defer k.counterMu.Unlock()
	fn()
}

// ActiveMatchesInvariant checks that the gauge equals the number of engaged requests.
func ActiveMatchesInvariant(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		var (
			state   types.SystemState
			engaged uint64
			err     error
		)
		k.snapshot(func() {
			state, err = loadSystemState(k.store)
			if err != nil {
				return
			}
			err = k.IterateRequests(ctx, func(req types.Request) bool {
				if req.Status.IsEngaged() {
					engaged++
				}
				return false
			})
		})
		if err != nil {
			return formatInvariant("active-matches", fmt.Sprintf("error reading state: %v", err)), true
		}

		if state.ActiveMatches != engaged {
			return formatInvariant("active-matches", fmt.Sprintf(
				"active matches gauge does not match records\n\tgauge: %d\n\tengaged requests: %d",
				state.ActiveMatches, engaged)), true
		}
		return formatInvariant("active-matches", "gauge consistent"), false
	}
}

// EngagementInvariant checks per-resource engagement counts against the
// requests that name each resource and against the configured limit.
func EngagementInvariant(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		var (
			resources []types.Resource
			perRes    = make(map[uint64]uint32)
			params    types.Params
			err       error
		)
		k.snapshot(func() {
			if params, err = k.GetParams(ctx); err != nil {
				return
			}
			if resources, err = k.GetAllResources(ctx); err != nil {
				return
			}
			err = k.IterateRequests(ctx, func(req types.Request) bool {
				if req.Status.IsEngaged() && req.HasMatch() {
					perRes[*req.MatchedResource]++
				}
				return false
			})
		})
		if err != nil {
			return formatInvariant("engagement-exclusivity", fmt.Sprintf("error reading state: %v", err)), true
		}

		var broken bool
		msg := ""
		for _, res := range resources {
			if res.ActiveMatches != perRes[res.Id] {
				broken = true
				msg += fmt.Sprintf("\tresource %d: counter %d, engaged requests %d\n", res.Id, res.ActiveMatches, perRes[res.Id])
			}
			if perRes[res.Id] > params.MaxMatchesPerResource {
				broken = true
				msg += fmt.Sprintf("\tresource %d: %d engagements exceed limit %d\n", res.Id, perRes[res.Id], params.MaxMatchesPerResource)
			}
		}
		return formatInvariant("engagement-exclusivity", msg), broken
	}
}

// SequenceInvariant checks that no stored id is above its sequence counter.
func SequenceInvariant(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		var (
			state                   types.SystemState
			maxResource, maxRequest uint64
			err                     error
		)
		k.snapshot(func() {
			if state, err = loadSystemState(k.store); err != nil {
				return
			}
			if err = k.IterateResources(ctx, func(res types.Resource) bool {
				maxResource = max(maxResource, res.Id)
				return false
			}); err != nil {
				return
			}
			err = k.IterateRequests(ctx, func(req types.Request) bool {
				maxRequest = max(maxRequest, req.Id)
				return false
			})
		})
		if err != nil {
			return formatInvariant("sequences", fmt.Sprintf("error reading state: %v", err)), true
		}

		if maxResource > state.ResourceCount || maxRequest > state.RequestCount {
			return formatInvariant("sequences", fmt.Sprintf(
				"stored ids ahead of counters\n\tresources: max id %d, count %d\n\trequests: max id %d, count %d",
				maxResource, state.ResourceCount, maxRequest, state.RequestCount)), true
		}
		return formatInvariant("sequences", "ids within counters"), false
	}
}

// ReputationBoundsInvariant checks every reputation lies within the configured bounds.
func ReputationBoundsInvariant(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		params, err := k.GetParams(ctx)
		if err != nil {
			return formatInvariant("reputation-bounds", fmt.Sprintf("error getting params: %v", err)), true
		}

		var broken bool
		msg := ""
		err = k.IterateResources(ctx, func(res types.Resource) bool {
			if res.Reputation < params.ReputationFloor || res.Reputation > params.ReputationCeiling {
				broken = true
				msg += fmt.Sprintf("\tresource %d: reputation %d outside [%d, %d]\n",
					res.Id, res.Reputation, params.ReputationFloor, params.ReputationCeiling)
			}
			return false
		})
		if err != nil {
			return formatInvariant("reputation-bounds", fmt.Sprintf("error iterating resources: %v", err)), true
		}
		return formatInvariant("reputation-bounds", msg), broken
	}
}

// StatusIndexInvariant checks that each request is indexed under its status only.
func StatusIndexInvariant(k *Keeper) Invariant {
	return func(ctx context.Context) (string, bool) {
		var (
			broken bool
			msg    string
			err    error
		)
		k.snapshot(func() {
			indexed := make(map[uint64]types.RequestStatus)
			for status := types.RequestStatusPending; status <= types.RequestStatusCancelled; status++ {
				for _, id := range collectIndexIDs(k.store, GetRequestsByStatusPrefix(status)) {
					if prev, dup := indexed[id]; dup {
						broken = true
						msg += fmt.Sprintf("\trequest %d indexed under %s and %s\n", id, prev, status)
					}
					indexed[id] = status
				}
			}
			err = k.IterateRequests(ctx, func(req types.Request) bool {
				if got, ok := indexed[req.Id]; !ok || got != req.Status {
					broken = true
					msg += fmt.Sprintf("\trequest %d has status %s but index says %s\n", req.Id, req.Status, got)
				}
				return false
			})
		})
		if err != nil {
			return formatInvariant("status-index", fmt.Sprintf("error iterating requests: %v", err)), true
		}
		return formatInvariant("status-index", msg), broken
	}
}
