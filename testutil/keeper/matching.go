package keeper

import (
	"context"
	"testing"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store/dbadapter"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

// TestAuthority is the authority every test keeper is created with.
const TestAuthority types.Identity = "resmatch-authority"

// TestTime is the fixed clock of test keepers.
var TestTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// MatchingKeeper creates a test keeper for the matching module over an
// in-memory database. Extra options are applied after the test defaults.
func MatchingKeeper(t testing.TB, opts ...keeper.Option) (*keeper.Keeper, context.Context) {
	k, _ := MatchingKeeperWithDB(t, opts...)
	return k, context.Background()
}

// MatchingKeeperWithDB is MatchingKeeper that also returns the backing
// database, so a test can reopen a keeper over the same state.
func MatchingKeeperWithDB(t testing.TB, opts ...keeper.Option) (*keeper.Keeper, dbm.DB) {
	db := dbm.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })

	k := NewMatchingKeeperOnDB(t, db, opts...)
	return k, db
}

// NewMatchingKeeperOnDB opens a keeper over an existing database.
func NewMatchingKeeperOnDB(t testing.TB, db dbm.DB, opts ...keeper.Option) *keeper.Keeper {
	defaults := []keeper.Option{
		keeper.WithClock(func() time.Time { return TestTime }),
	}
	k, err := keeper.NewKeeper(dbadapter.Store{DB: db}, TestAuthority, log.NewNopLogger(), append(defaults, opts...)...)
	require.NoError(t, err)
	return k
}

// Signed returns ctx carrying proof that ids signed the operation.
func Signed(ctx context.Context, ids ...types.Identity) context.Context {
	for _, id := range ids {
		ctx = types.WithSigner(ctx, id)
	}
	return ctx
}
