package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/types"
)

func validGenesis() types.GenesisState {
	matched := uint64(1)
	return types.GenesisState{
		Params: types.DefaultParams(),
		State: types.SystemState{
			Authority:     "authority",
			ResourceCount: 2,
			RequestCount:  2,
			ActiveMatches: 1,
		},
		Resources: []types.Resource{
			{Id: 1, Provider: "p", Location: "US", Active: true, ActiveMatches: 1},
			{Id: 2, Provider: "p", Location: "EU"},
		},
		Requests: []types.Request{
			{Id: 1, Requester: "r", Status: types.RequestStatusMatched, MatchedResource: &matched},
			{Id: 2, Requester: "r", Status: types.RequestStatusPending},
		},
	}
}

func TestGenesisStateValidate(t *testing.T) {
	require.NoError(t, types.DefaultGenesis("authority").Validate())
	require.NoError(t, validGenesis().Validate())

	tests := []struct {
		name   string
		mutate func(*types.GenesisState)
	}{
		{"missing authority", func(gs *types.GenesisState) { gs.State.Authority = "" }},
		{"invalid params", func(gs *types.GenesisState) { gs.Params.MaxMatchesPerResource = 0 }},
		{"zero resource id", func(gs *types.GenesisState) { gs.Resources[1].Id = 0 }},
		{"duplicate resource", func(gs *types.GenesisState) { gs.Resources[1].Id = 1 }},
		{"resource id above count", func(gs *types.GenesisState) { gs.State.ResourceCount = 1 }},
		{"request id above count", func(gs *types.GenesisState) { gs.State.RequestCount = 1 }},
		{"duplicate request", func(gs *types.GenesisState) { gs.Requests[1].Id = 1 }},
		{"unknown status", func(gs *types.GenesisState) { gs.Requests[1].Status = types.RequestStatusUnspecified }},
		{"engaged without resource", func(gs *types.GenesisState) { gs.Requests[0].MatchedResource = nil }},
		{"matched to missing resource", func(gs *types.GenesisState) {
			missing := uint64(9)
			gs.Requests[0].MatchedResource = &missing
		}},
		{"pending with resource", func(gs *types.GenesisState) {
			r := uint64(2)
			gs.Requests[1].MatchedResource = &r
		}},
		{"gauge drift", func(gs *types.GenesisState) { gs.State.ActiveMatches = 0 }},
		{"resource counter drift", func(gs *types.GenesisState) { gs.Resources[0].ActiveMatches = 0 }},
		{"reputation out of bounds", func(gs *types.GenesisState) {
			gs.Params.ReputationCeiling = 1
			gs.Resources[1].Reputation = 2
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gs := validGenesis()
			tc.mutate(&gs)
			require.Error(t, gs.Validate())
		})
	}
}
