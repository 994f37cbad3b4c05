package sample

import (
	"github.com/google/uuid"

	"github.com/calctra/resmatch/x/matching/types"
)

// Identity returns a new random identity with the given role prefix.
func Identity(role string) types.Identity {
	return types.Identity(role + "-" + uuid.NewString())
}

// Spec returns a CPU-only capability.
func Spec(power, memory uint64) types.ComputeSpec {
	return types.ComputeSpec{ComputePower: power, Memory: memory}
}

// Request returns a pending request draft for requester.
func Request(requester types.Identity, power, memory, maxPrice uint64, location string) types.Request {
	return types.Request{
		Requester:         requester,
		ComputationType:   "batch",
		Spec:              Spec(power, memory),
		MaxPricePerUnit:   maxPrice,
		PreferredLocation: location,
	}
}
