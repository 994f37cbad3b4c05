package types

import (
	"context"

	"cosmossdk.io/math"
)

// Settlement moves value between identities when a computation completes.
// Token mechanics live outside this module.
type Settlement interface {
	Transfer(ctx context.Context, from, to Identity, amount math.Int) error
}

// NoopSettlement accepts every transfer without moving anything.
type NoopSettlement struct{}

var _ Settlement = NoopSettlement{}

// Transfer implements Settlement.
func (NoopSettlement) Transfer(context.Context, Identity, Identity, math.Int) error {
	return nil
}
