package keeper

import (
	"context"

	"github.com/calctra/resmatch/x/matching/types"
)

// emit reports a committed state change. Sinks never influence the outcome
// of the operation that produced the event.
func (k *Keeper) emit(ctx context.Context, ev types.Event) {
	k.logger.Debug("matching event", "type", ev.Type, "id", ev.ID)
	k.events.Emit(ctx, ev)
}
