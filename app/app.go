// Package app assembles the resmatch daemon.
//
// It opens the configured cosmos-db backend, builds the matching keeper over
// it, and connects the ambient services around the keeper: structured
// logging, the recent-event buffer served by the API, OpenTelemetry tracing
// with the Prometheus bridge, and the health checker.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/store/dbadapter"
	dbm "github.com/cosmos/cosmos-db"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/calctra/resmatch/app/health"
	"github.com/calctra/resmatch/app/telemetry"
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

const (
	// EventBufferSize is how many recent events the API can serve
	EventBufferSize = 1024

	shutdownGrace = 5 * time.Second
)

// App holds the wired daemon components
type App struct {
	Config    Config
	Logger    log.Logger
	DB        dbm.DB
	Keeper    *keeper.Keeper
	MsgServer types.MsgServer
	Events    *types.EventBuffer
	Telemetry *telemetry.Provider
	Health    *health.Checker
}

type options struct {
	db           dbm.DB
	keeperOpts   []keeper.Option
	registerer   promclient.Registerer
	healthConfig *health.Config
}

// Option customizes how New assembles the app
type Option func(*options)

// WithDB uses db instead of opening the configured backend. The caller
// keeps ownership; App.Close does not close it.
func WithDB(db dbm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithKeeperOptions passes extra options to the matching keeper, applied
// after the app's own.
func WithKeeperOptions(opts ...keeper.Option) Option {
	return func(o *options) { o.keeperOpts = append(o.keeperOpts, opts...) }
}

// WithRegisterer sets where the OpenTelemetry metrics bridge registers
func WithRegisterer(r promclient.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithHealthConfig overrides the health checker configuration
func WithHealthConfig(cfg health.Config) Option {
	return func(o *options) { o.healthConfig = &cfg }
}

// NewLogger builds the daemon logger from cfg
func NewLogger(cfg LogConfig, w io.Writer) (log.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	opts := []log.Option{log.LevelOption(level)}
	if cfg.Format == LogFormatJSON {
		opts = append(opts, log.OutputJSONOption())
	} else {
		opts = append(opts, log.ColorOption(false))
	}
	return log.NewLogger(w, opts...), nil
}

// New wires the daemon components from cfg
func New(cfg Config, logger log.Logger, opts ...Option) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app = &App{Config: cfg, Logger: logger}

	// Release whatever was opened if a later step fails.
	ownDB := o.db == nil
	defer func() {
		if err == nil {
			return
		}
		if app.Telemetry != nil {
			_ = app.Telemetry.Shutdown(context.Background())
		}
		if ownDB && app.DB != nil {
			_ = app.DB.Close()
		}
	}()

	app.DB = o.db
	if ownDB {
		dir := cfg.StoreDir()
		if cfg.Store.Backend != string(dbm.MemDBBackend) {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
		app.DB, err = dbm.NewDB(cfg.Store.Name, dbm.BackendType(cfg.Store.Backend), dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
		}
	}

	app.Telemetry, err = telemetry.NewProvider(telemetry.Config{
		Enabled:           cfg.Telemetry.TracingEnabled,
		OTLPEndpoint:      cfg.Telemetry.OTLPEndpoint,
		SampleRate:        cfg.Telemetry.SampleRate,
		Environment:       cfg.Telemetry.Environment,
		InstanceID:        cfg.Telemetry.InstanceID,
		PrometheusEnabled: cfg.Telemetry.MetricsAddress != "",
		Registerer:        o.registerer,
	})
	if err != nil {
		return nil, err
	}

	genesis := NewDefaultGenesisState(cfg)
	if cfg.GenesisFile != "" {
		genesis, err = LoadGenesis(cfg.GenesisFile)
		if err != nil {
			return nil, err
		}
	}

	app.Events = types.NewEventBuffer(EventBufferSize)
	keeperOpts := []keeper.Option{
		keeper.WithGenesis(genesis),
		keeper.WithEventSink(types.MultiSink{
			NewLoggingEventSink(logger),
			app.Events,
		}),
	}
	keeperOpts = append(keeperOpts, o.keeperOpts...)

	app.Keeper, err = keeper.NewKeeper(dbadapter.Store{DB: app.DB}, cfg.Authority, logger, keeperOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create matching keeper: %w", err)
	}
	app.MsgServer = keeper.NewMsgServerImpl(app.Keeper)

	healthCfg := health.DefaultConfig()
	if o.healthConfig != nil {
		healthCfg = *o.healthConfig
	}
	healthCfg.Version = telemetry.ServiceVersion
	app.Health, err = health.NewChecker(logger, healthCfg, app.Keeper, app.DB)
	if err != nil {
		return nil, err
	}

	if msg, broken := keeper.AllInvariants(app.Keeper)(context.Background()); broken {
		logger.Error("matching store failed invariant checks at startup", "details", msg)
	}

	state, err := app.Keeper.GetSystemState(context.Background())
	if err != nil {
		return nil, err
	}
	logger.Info("matching store ready",
		"backend", cfg.Store.Backend,
		"authority", state.Authority,
		"resources", state.ResourceCount,
		"requests", state.RequestCount,
		"active_matches", state.ActiveMatches,
	)
	return app, nil
}

// Close flushes telemetry and closes the store
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	var errs []error
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}
