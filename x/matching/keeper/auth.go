package keeper

import (
	"context"

	"github.com/calctra/resmatch/x/matching/types"
)

// requireSigner rejects operations whose claimed caller did not sign.
func (k *Keeper) requireSigner(ctx context.Context, caller types.Identity) error {
	if caller.Empty() || !k.verifier.IsSigner(ctx, caller) {
		return types.ErrUnauthorized.Wrapf("%q did not sign the operation", caller)
	}
	return nil
}
