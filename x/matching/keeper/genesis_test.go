package keeper_test

import (
	"context"
	"testing"

	"cosmossdk.io/log"
	"cosmossdk.io/store/dbadapter"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	keepertest "github.com/calctra/resmatch/testutil/keeper"
	"github.com/calctra/resmatch/testutil/sample"
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

func TestDefaultGenesis(t *testing.T) {
	k, ctx := keepertest.MatchingKeeper(t)

	gs, err := k.ExportGenesis(ctx)
	require.NoError(t, err)
	require.Equal(t, *types.DefaultGenesis(authority), *gs)
}

func TestGenesisRoundTrip(t *testing.T) {
	k, ctx := keepertest.MatchingKeeper(t, keeper.WithIdentityVerifier(types.TrustAllSigners{}))
	provider, requester := sample.Identity("provider"), sample.Identity("requester")

	var resources []uint64
	for i := 0; i < 3; i++ {
		id, err := k.RegisterResource(ctx, provider, "cpu", sample.Spec(8, 8), uint64(i+1), "US")
		require.NoError(t, err)
		resources = append(resources, id)
	}
	var requests []uint64
	for i := 0; i < 4; i++ {
		id, err := k.SubmitRequest(ctx, sample.Request(requester, 1, 1, 10, ""))
		require.NoError(t, err)
		requests = append(requests, id)
	}
	_, err := k.Match(ctx, requests[0], resources[0], authority)
	require.NoError(t, err)
	_, err = k.Complete(ctx, requests[0], resources[0], 4, true, requester)
	require.NoError(t, err)
	_, err = k.Match(ctx, requests[1], resources[1], authority)
	require.NoError(t, err)
	require.NoError(t, k.Cancel(ctx, requests[2], requester))
	require.NoError(t, k.SetResourceActive(ctx, resources[2], provider, false))

	exported, err := k.ExportGenesis(ctx)
	require.NoError(t, err)
	require.NoError(t, exported.Validate())
	require.Len(t, exported.Resources, 3)
	require.Len(t, exported.Requests, 4)
	require.Equal(t, uint64(1), exported.State.ActiveMatches)

	imported, importedCtx := keepertest.MatchingKeeper(t,
		keeper.WithIdentityVerifier(types.TrustAllSigners{}),
		keeper.WithGenesis(*exported),
	)
	reexported, err := imported.ExportGenesis(importedCtx)
	require.NoError(t, err)
	require.Equal(t, exported, reexported)

	msg, broken := keeper.AllInvariants(imported)(importedCtx)
	require.False(t, broken, msg)

	// Indexes are rebuilt, so queries and further operations work.
	active, err := imported.GetActiveResources(importedCtx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	pending, err := imported.GetPendingRequests(importedCtx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = imported.Complete(importedCtx, requests[1], resources[1], 2, true, requester)
	require.NoError(t, err)

	next, err := imported.SubmitRequest(importedCtx, sample.Request(requester, 1, 1, 1, ""))
	require.NoError(t, err)
	require.Equal(t, uint64(5), next)
}

func TestInitGenesisRejectsInitializedStore(t *testing.T) {
	k, ctx := keepertest.MatchingKeeper(t)

	err := k.InitGenesis(ctx, *types.DefaultGenesis(authority))
	require.ErrorIs(t, err, types.ErrInvalidGenesis)
}

func TestNewKeeperRejectsInvalidGenesis(t *testing.T) {
	gs := types.DefaultGenesis(authority)
	gs.State.ActiveMatches = 1

	_, err := newKeeperWithGenesis(*gs)
	require.ErrorIs(t, err, types.ErrInvalidGenesis)

	_, err = newKeeperWithGenesis(*types.DefaultGenesis(""))
	require.ErrorIs(t, err, types.ErrInvalidGenesis)
}

func newKeeperWithGenesis(gs types.GenesisState) (*keeper.Keeper, error) {
	return keeper.NewKeeper(memStore(), "", log.NewNopLogger(), keeper.WithGenesis(gs))
}

func TestNewKeeperRequiresAuthority(t *testing.T) {
	_, err := keeper.NewKeeper(memStore(), "", log.NewNopLogger())
	require.ErrorIs(t, err, types.ErrInvalidCapability)

	k, err := keeper.NewKeeper(memStore(), "admin", log.NewNopLogger())
	require.NoError(t, err)

	got, err := k.GetAuthority(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.Identity("admin"), got)
}

func memStore() dbadapter.Store {
	return dbadapter.Store{DB: dbm.NewMemDB()}
}
