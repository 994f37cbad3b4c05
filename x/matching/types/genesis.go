package types

import (
	"fmt"
)

// GenesisState is the full exported state of the module.
type GenesisState struct {
	Params    Params      `json:"params"`
	State     SystemState `json:"state"`
	Resources []Resource  `json:"resources"`
	Requests  []Request   `json:"requests"`
}

// DefaultGenesis returns the default genesis state
func DefaultGenesis(authority Identity) *GenesisState {
	return &GenesisState{
		Params:    DefaultParams(),
		State:     SystemState{Authority: authority},
		Resources: []Resource{},
		Requests:  []Request{},
	}
}

// Validate performs basic genesis state validation returning an error upon any
// failure.
func (gs GenesisState) Validate() error {
	if err := gs.Params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	if gs.State.Authority.Empty() {
		return fmt.Errorf("authority cannot be empty")
	}

	resources := make(map[uint64]Resource, len(gs.Resources))
	for i, res := range gs.Resources {
		if res.Id == 0 {
			return fmt.Errorf("resource %d: id cannot be zero", i)
		}
		if _, dup := resources[res.Id]; dup {
			return fmt.Errorf("resource %d: duplicate resource id %d", i, res.Id)
		}
		if res.Id > gs.State.ResourceCount {
			return fmt.Errorf("resource %d: id %d exceeds resource_count %d", i, res.Id, gs.State.ResourceCount)
		}
		if err := res.ValidateBasic(); err != nil {
			return fmt.Errorf("resource %d (id=%d): %w", i, res.Id, err)
		}
		if res.Reputation < gs.Params.ReputationFloor || res.Reputation > gs.Params.ReputationCeiling {
			return fmt.Errorf("resource %d (id=%d): reputation %d outside [%d, %d]",
				i, res.Id, res.Reputation, gs.Params.ReputationFloor, gs.Params.ReputationCeiling)
		}
		resources[res.Id] = res
	}

	seenRequests := make(map[uint64]bool, len(gs.Requests))
	engagedPerResource := make(map[uint64]uint32)
	var engaged uint64
	for i, req := range gs.Requests {
		if req.Id == 0 {
			return fmt.Errorf("request %d: id cannot be zero", i)
		}
		if seenRequests[req.Id] {
			return fmt.Errorf("request %d: duplicate request id %d", i, req.Id)
		}
		seenRequests[req.Id] = true
		if req.Id > gs.State.RequestCount {
			return fmt.Errorf("request %d: id %d exceeds request_count %d", i, req.Id, gs.State.RequestCount)
		}
		if err := req.ValidateBasic(); err != nil {
			return fmt.Errorf("request %d (id=%d): %w", i, req.Id, err)
		}
		if !req.Status.IsValid() {
			return fmt.Errorf("request %d (id=%d): invalid status %s", i, req.Id, req.Status)
		}

		switch {
		case req.Status.IsEngaged():
			if !req.HasMatch() {
				return fmt.Errorf("request %d (id=%d): %s request without matched resource", i, req.Id, req.Status)
			}
			if _, ok := resources[*req.MatchedResource]; !ok {
				return fmt.Errorf("request %d (id=%d): matched resource %d not found", i, req.Id, *req.MatchedResource)
			}
			engaged++
			engagedPerResource[*req.MatchedResource]++
		case req.Status == RequestStatusPending || req.Status == RequestStatusCancelled:
			if req.HasMatch() {
				return fmt.Errorf("request %d (id=%d): %s request cannot name a resource", i, req.Id, req.Status)
			}
		}
	}

	if engaged != gs.State.ActiveMatches {
		return fmt.Errorf("active_matches %d does not equal engaged requests %d", gs.State.ActiveMatches, engaged)
	}
	for id, res := range resources {
		if res.ActiveMatches != engagedPerResource[id] {
			return fmt.Errorf("resource %d: active_matches %d does not equal engaged requests %d",
				id, res.ActiveMatches, engagedPerResource[id])
		}
		if res.ActiveMatches > gs.Params.MaxMatchesPerResource {
			return fmt.Errorf("resource %d: %d engagements exceed limit %d",
				id, res.ActiveMatches, gs.Params.MaxMatchesPerResource)
		}
	}

	return nil
}
