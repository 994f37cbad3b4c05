package keeper

import (
	"context"
	"sync"
	"time"

	"cosmossdk.io/log"
	storetypes "cosmossdk.io/store/types"
	"go.opentelemetry.io/otel/trace"

	"github.com/calctra/resmatch/x/matching/types"
)

// Keeper of the matching store
type Keeper struct {
	store      storetypes.KVStore
	logger     log.Logger
	verifier   types.IdentityVerifier
	settlement types.Settlement
	events     types.EventSink
	now        func() time.Time

	metrics     *MatchingMetrics
	tracer      trace.Tracer
	instruments *instruments

	// locks serializes operations per record. A request lock is always
	// taken before a resource lock.
	locks *lockTable

	// counterMu guards SystemState and every commit to the backing store.
	counterMu sync.Mutex

	// paramsCache avoids decoding params on every operation. It is
	// invalidated by SetParams and InitGenesis.
	paramsMu    sync.RWMutex
	paramsCache *types.Params

	// paramsGate is held shared by Complete and exclusively by SetParams.
	paramsGate sync.RWMutex

	genesis *types.GenesisState
}

// Option configures optional keeper collaborators.
type Option func(*Keeper)

// WithIdentityVerifier sets how signers are proven. Defaults to types.ContextSigners.
func WithIdentityVerifier(v types.IdentityVerifier) Option {
	return func(k *Keeper) { k.verifier = v }
}

// WithSettlement sets the transfer backend used on successful completion.
func WithSettlement(s types.Settlement) Option {
	return func(k *Keeper) { k.settlement = s }
}

// WithEventSink sets where committed state changes are reported.
func WithEventSink(s types.EventSink) Option {
	return func(k *Keeper) { k.events = s }
}

// WithGenesis sets the state an empty store is initialized with. The
// authority passed to NewKeeper is ignored when a genesis is given.
func WithGenesis(gs types.GenesisState) Option {
	return func(k *Keeper) { k.genesis = &gs }
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) { k.now = now }
}

// NewKeeper creates a new matching Keeper instance over store. When the
// store holds no system state yet it is initialized from the WithGenesis
// state, or with authority and default params.
func NewKeeper(store storetypes.KVStore, authority types.Identity, logger log.Logger, opts ...Option) (*Keeper, error) {
	k := &Keeper{
		store:      store,
		logger:     logger.With("module", "x/"+types.ModuleName),
		verifier:   types.ContextSigners{},
		settlement: types.NoopSettlement{},
		events:     types.NopEventSink{},
		now:        time.Now,
		metrics:    NewMatchingMetrics(),
		locks:      newLockTable(),
	}
	for _, opt := range opts {
		opt(k)
	}
	k.tracer, k.instruments = newInstrumentation()

	if store.Has(SystemStateKey) {
		state, err := k.GetSystemState(context.Background())
		if err != nil {
			return nil, err
		}
		if !authority.Empty() && state.Authority != authority {
			k.logger.Warn("configured authority differs from stored authority; keeping stored value",
				"configured", authority, "stored", state.Authority)
		}
		return k, nil
	}

	genesis := k.genesis
	if genesis == nil {
		if err := authority.Validate("authority"); err != nil {
			return nil, err
		}
		genesis = types.DefaultGenesis(authority)
	}
	if err := k.InitGenesis(context.Background(), *genesis); err != nil {
		return nil, err
	}
	return k, nil
}

// Logger returns the module logger.
func (k *Keeper) Logger() log.Logger {
	return k.logger
}

// GetAuthority returns the identity allowed to match any request and
// update params.
func (k *Keeper) GetAuthority(ctx context.Context) (types.Identity, error) {
	state, err := k.GetSystemState(ctx)
	if err != nil {
		return "", err
	}
	return state.Authority, nil
}

func (k *Keeper) timestamp() time.Time {
	return k.now().UTC()
}
