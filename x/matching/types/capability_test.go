package types_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/types"
)

func TestSatisfies(t *testing.T) {
	offer := types.ComputeSpec{ComputePower: 100, Memory: 64, Storage: 500, GpuType: "A100", GpuMemory: 40}

	tests := []struct {
		name     string
		required types.ComputeSpec
		wantErr  error
	}{
		{"exact fit", offer, nil},
		{"empty requirement", types.ComputeSpec{}, nil},
		{"power", types.ComputeSpec{ComputePower: 101, Memory: 1000}, types.ErrInsufficientComputationPower},
		{"memory", types.ComputeSpec{Memory: 65, Storage: 1000}, types.ErrInsufficientMemory},
		{"storage", types.ComputeSpec{Storage: 501}, types.ErrInsufficientCapability},
		{"gpu type ignores case", types.ComputeSpec{GpuType: "a100"}, nil},
		{"gpu type", types.ComputeSpec{GpuType: "H100"}, types.ErrInsufficientCapability},
		{"gpu memory", types.ComputeSpec{GpuMemory: 41}, types.ErrInsufficientCapability},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := offer.Satisfies(tc.required)
			if tc.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.wantErr)
			}
		})
	}

	cpuOnly := types.ComputeSpec{ComputePower: 100, Memory: 64}
	require.ErrorIs(t, cpuOnly.Satisfies(types.ComputeSpec{GpuMemory: 1}), types.ErrInsufficientCapability)
}

func TestValidateOffer(t *testing.T) {
	require.NoError(t, types.ComputeSpec{Memory: 64}.ValidateOffer())
	require.NoError(t, types.ComputeSpec{GpuType: "T4", GpuMemory: 16}.ValidateOffer())
	require.ErrorIs(t, types.ComputeSpec{GpuMemory: 16}.ValidateOffer(), types.ErrInvalidCapability)
	require.ErrorIs(t, types.ComputeSpec{GpuType: strings.Repeat("x", types.MaxGpuTypeLength+1)}.ValidateOffer(), types.ErrInvalidCapability)

	require.NoError(t, types.ComputeSpec{GpuMemory: 16}.ValidateRequirement())
}

func TestCheckEligibilityOrder(t *testing.T) {
	req := types.Request{
		Spec:            types.ComputeSpec{ComputePower: 10, Memory: 10},
		MaxPricePerUnit: 5,
		MinReputation:   3,
	}
	res := types.Resource{Active: false, Spec: types.ComputeSpec{ComputePower: 1}, PricePerUnit: 9}

	require.ErrorIs(t, types.CheckEligibility(req, res), types.ErrResourceNotActive)
	res.Active = true
	require.ErrorIs(t, types.CheckEligibility(req, res), types.ErrInsufficientComputationPower)
	res.Spec.ComputePower = 10
	require.ErrorIs(t, types.CheckEligibility(req, res), types.ErrInsufficientMemory)
	res.Spec.Memory = 10
	require.ErrorIs(t, types.CheckEligibility(req, res), types.ErrPriceTooHigh)
	res.PricePerUnit = 5
	require.ErrorIs(t, types.CheckEligibility(req, res), types.ErrReputationTooLow)
	res.Reputation = 3
	require.NoError(t, types.CheckEligibility(req, res))
}
