package keeper

import "github.com/calctra/resmatch/x/matching/types"

type usageUpdate struct {
	reputation     int64
	totalUsageTime uint64
}

// applyUsage records one finished engagement on res. It is only reachable
// from Complete so that every ledger change pairs with a terminal status.
func applyUsage(res *types.Resource, duration uint64, success bool, params types.Params) usageUpdate {
	res.TotalUsageTime = SaturatingAddUint64(res.TotalUsageTime, duration)

	delta := params.ReputationReward
	if !success {
		delta = -params.ReputationPenalty
	}
	res.Reputation = ClampedAddInt64(res.Reputation, delta, params.ReputationFloor, params.ReputationCeiling)

	return usageUpdate{reputation: res.Reputation, totalUsageTime: res.TotalUsageTime}
}
