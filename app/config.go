package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dbm "github.com/cosmos/cosmos-db"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/x/matching/types"
)

const (
	// EnvPrefix prefixes every environment override, e.g. RESMATCH_API_ADDRESS.
	EnvPrefix = "RESMATCH"

	// ConfigFileName is looked up in the home directory when no config file
	// is given explicitly.
	ConfigFileName = "resmatchd"

	LogFormatJSON  = "json"
	LogFormatPlain = "plain"
)

// DefaultNodeHome default home directory for the daemon
var DefaultNodeHome string

func init() {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	DefaultNodeHome = filepath.Join(userHomeDir, ".resmatchd")
}

// Config is the complete daemon configuration
type Config struct {
	Home        string         `mapstructure:"home"`
	Authority   types.Identity `mapstructure:"authority"`
	GenesisFile string         `mapstructure:"genesis_file"`

	Store     StoreConfig     `mapstructure:"store"`
	Matching  types.Params    `mapstructure:"matching"`
	API       api.Config      `mapstructure:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// StoreConfig selects the database backing the matching store
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// Dir is relative to the home directory unless absolute.
	Dir  string `mapstructure:"dir"`
	Name string `mapstructure:"name"`
}

// TelemetryConfig holds the metrics and tracing settings
type TelemetryConfig struct {
	// MetricsAddress serves /metrics. Empty disables the endpoint.
	MetricsAddress string  `mapstructure:"metrics_address"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate"`
	Environment    string  `mapstructure:"environment"`
	InstanceID     string  `mapstructure:"instance_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var validBackends = map[dbm.BackendType]bool{
	dbm.GoLevelDBBackend: true,
	dbm.MemDBBackend:     true,
	dbm.PebbleDBBackend:  true,
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Home: DefaultNodeHome,
		Store: StoreConfig{
			Backend: string(dbm.GoLevelDBBackend),
			Dir:     "data",
			Name:    "matching",
		},
		Matching: types.DefaultParams(),
		API:      api.DefaultConfig(),
		Telemetry: TelemetryConfig{
			MetricsAddress: "127.0.0.1:26660",
			SampleRate:     0.1,
			Environment:    "development",
		},
		Log: LogConfig{
			Level:  zerolog.InfoLevel.String(),
			Format: LogFormatPlain,
		},
	}
}

// setDefaults registers every default with v so environment variables can
// override keys that no config file mentions.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("home", cfg.Home)
	v.SetDefault("authority", cfg.Authority.String())
	v.SetDefault("genesis_file", cfg.GenesisFile)

	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("store.name", cfg.Store.Name)

	v.SetDefault("matching.max_matches_per_resource", cfg.Matching.MaxMatchesPerResource)
	v.SetDefault("matching.reputation_floor", cfg.Matching.ReputationFloor)
	v.SetDefault("matching.reputation_ceiling", cfg.Matching.ReputationCeiling)
	v.SetDefault("matching.reputation_reward", cfg.Matching.ReputationReward)
	v.SetDefault("matching.reputation_penalty", cfg.Matching.ReputationPenalty)
	v.SetDefault("matching.strict_location", cfg.Matching.StrictLocation)

	v.SetDefault("api.address", cfg.API.Address)
	v.SetDefault("api.jwt_secret", cfg.API.JWTSecret)
	v.SetDefault("api.token_ttl", cfg.API.TokenTTL)
	v.SetDefault("api.cors_origins", cfg.API.CORSOrigins)
	v.SetDefault("api.rate_limit_rps", cfg.API.RateLimitRPS)
	v.SetDefault("api.rate_limit_burst", cfg.API.RateLimitBurst)
	v.SetDefault("api.max_request_bytes", cfg.API.MaxRequestBytes)
	v.SetDefault("api.read_timeout", cfg.API.ReadTimeout)
	v.SetDefault("api.write_timeout", cfg.API.WriteTimeout)
	v.SetDefault("api.shutdown_timeout", cfg.API.ShutdownTimeout)

	v.SetDefault("telemetry.metrics_address", cfg.Telemetry.MetricsAddress)
	v.SetDefault("telemetry.tracing_enabled", cfg.Telemetry.TracingEnabled)
	v.SetDefault("telemetry.otlp_endpoint", cfg.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.sample_rate", cfg.Telemetry.SampleRate)
	v.SetDefault("telemetry.environment", cfg.Telemetry.Environment)
	v.SetDefault("telemetry.instance_id", cfg.Telemetry.InstanceID)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// NewViper returns a viper instance carrying the defaults and the
// RESMATCH_* environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from v. When configFile is empty the
// home directory is searched for resmatchd.{toml,yaml,json}; a missing file
// is not an error.
func LoadConfig(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(v.GetString("home"))
		v.AddConfigPath(filepath.Join(v.GetString("home"), "config"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("home directory is required")
	}
	if c.GenesisFile == "" {
		if err := c.Authority.Validate("authority"); err != nil {
			return fmt.Errorf("authority is required without a genesis file: %w", err)
		}
	}

	if !validBackends[dbm.BackendType(c.Store.Backend)] {
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Store.Name == "" {
		return fmt.Errorf("store name is required")
	}

	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching params: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return err
	}

	if c.Telemetry.TracingEnabled {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("otlp endpoint is required when tracing is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("sample rate must be between 0 and 1")
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case LogFormatJSON, LogFormatPlain:
	default:
		return fmt.Errorf("log format must be %q or %q", LogFormatJSON, LogFormatPlain)
	}
	return nil
}

// StoreDir returns the absolute database directory
func (c Config) StoreDir() string {
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(c.Home, c.Store.Dir)
}

// Redacted returns a copy safe to print
func (c Config) Redacted() Config {
	if c.API.JWTSecret != "" {
		c.API.JWTSecret = "********"
	}
	c.API.CORSOrigins = append([]string(nil), c.API.CORSOrigins...)
	return c
}

// Settings flattens c into the nested key layout of the config file.
// Durations are rendered as strings so the file stays readable.
func (c Config) Settings() map[string]any {
	return map[string]any{
		"home":         c.Home,
		"authority":    c.Authority.String(),
		"genesis_file": c.GenesisFile,
		"store": map[string]any{
			"backend": c.Store.Backend,
			"dir":     c.Store.Dir,
			"name":    c.Store.Name,
		},
		"matching": map[string]any{
			"max_matches_per_resource": c.Matching.MaxMatchesPerResource,
			"reputation_floor":         c.Matching.ReputationFloor,
			"reputation_ceiling":       c.Matching.ReputationCeiling,
			"reputation_reward":        c.Matching.ReputationReward,
			"reputation_penalty":       c.Matching.ReputationPenalty,
			"strict_location":          c.Matching.StrictLocation,
		},
		"api": map[string]any{
			"address":           c.API.Address,
			"jwt_secret":        c.API.JWTSecret,
			"token_ttl":         c.API.TokenTTL.String(),
			"cors_origins":      c.API.CORSOrigins,
			"rate_limit_rps":    c.API.RateLimitRPS,
			"rate_limit_burst":  c.API.RateLimitBurst,
			"max_request_bytes": c.API.MaxRequestBytes,
			"read_timeout":      c.API.ReadTimeout.String(),
			"write_timeout":     c.API.WriteTimeout.String(),
			"shutdown_timeout":  c.API.ShutdownTimeout.String(),
		},
		"telemetry": map[string]any{
			"metrics_address": c.Telemetry.MetricsAddress,
			"tracing_enabled": c.Telemetry.TracingEnabled,
			"otlp_endpoint":   c.Telemetry.OTLPEndpoint,
			"sample_rate":     c.Telemetry.SampleRate,
			"environment":     c.Telemetry.Environment,
			"instance_id":     c.Telemetry.InstanceID,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}
