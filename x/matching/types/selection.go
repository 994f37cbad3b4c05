package types

import (
	"sort"
	"strings"
)

// CheckEligibility runs the resource-side match preconditions in order:
// active, capability, price, location (strict requests only), reputation.
func CheckEligibility(req Request, res Resource) error {
	if !res.Active {
		return ErrResourceNotActive.Wrapf("resource %d", res.Id)
	}
	if err := res.Spec.Satisfies(req.Spec); err != nil {
		return err
	}
	if res.PricePerUnit > req.MaxPricePerUnit {
		return ErrPriceTooHigh.Wrapf("price %d exceeds max %d", res.PricePerUnit, req.MaxPricePerUnit)
	}
	if req.StrictLocation && !SameLocation(req.PreferredLocation, res.Location) {
		return ErrLocationMismatch.Wrapf("resource in %q, request requires %q", res.Location, req.PreferredLocation)
	}
	if res.Reputation < req.MinReputation {
		return ErrReputationTooLow.Wrapf("reputation %d below %d", res.Reputation, req.MinReputation)
	}
	return nil
}

// SameLocation compares location codes ignoring case and surrounding space.
func SameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SelectBestCandidate picks the resource a pending request should be matched
// to. Candidates failing CheckEligibility are dropped. When the request has a
// preferred location, exact-location candidates win over all others. Within a
// partition the order is ascending price, then descending reputation, then
// ascending id, so the result does not depend on pool order.
func SelectBestCandidate(req Request, pool []Resource) (uint64, bool) {
	preferred := strings.TrimSpace(req.PreferredLocation) != ""

	var best *Resource
	bestLocal := false
	for i := range pool {
		candidate := &pool[i]
		if CheckEligibility(req, *candidate) != nil {
			continue
		}
		local := preferred && SameLocation(req.PreferredLocation, candidate.Location)
		if best == nil || ranksBefore(candidate, local, best, bestLocal) {
			best = candidate
			bestLocal = local
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Id, true
}

// RankCandidates returns the eligible candidates in selection order.
func RankCandidates(req Request, pool []Resource) []Resource {
	preferred := strings.TrimSpace(req.PreferredLocation) != ""

	type ranked struct {
		res   Resource
		local bool
	}
	eligible := make([]ranked, 0, len(pool))
	for _, candidate := range pool {
		if CheckEligibility(req, candidate) != nil {
			continue
		}
		eligible = append(eligible, ranked{
			res:   candidate,
			local: preferred && SameLocation(req.PreferredLocation, candidate.Location),
		})
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return ranksBefore(&eligible[i].res, eligible[i].local, &eligible[j].res, eligible[j].local)
	})

	out := make([]Resource, len(eligible))
	for i := range eligible {
		out[i] = eligible[i].res
	}
	return out
}

func ranksBefore(a *Resource, aLocal bool, b *Resource, bLocal bool) bool {
	if aLocal != bLocal {
		return aLocal
	}
	if a.PricePerUnit != b.PricePerUnit {
		return a.PricePerUnit < b.PricePerUnit
	}
	if a.Reputation != b.Reputation {
		return a.Reputation > b.Reputation
	}
	return a.Id < b.Id
}
