package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// injected configurations
var (
	AppName    = "brewery-nostrdb"
	AppVersion = "0.0.1"
)

// EnvPrefix prefixes every environment override, e.g. NOSTRDB_DATA_DIR or
// NOSTRDB_LOG_LEVEL.
const EnvPrefix = "NOSTRDB"

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Log configures the process logger.
type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Config is the process configuration of the CLI.
type Config struct {
	DataDir           string `mapstructure:"data_dir"`
	Log               Log    `mapstructure:"log"`
	VerifySignatures  bool   `mapstructure:"verify_signatures"`
	Compression       string `mapstructure:"compression"`
	MaxReaders        int    `mapstructure:"max_readers"`
	SubscriptionQueue int    `mapstructure:"subscription_queue"`
	CacheSize         int64  `mapstructure:"cache_size"`
	MemTableSize      uint64 `mapstructure:"memtable_size"`
	SyncWrites        bool   `mapstructure:"sync_writes"`
}

// SetDefaults registers the default of every key on v. Keys without a
// default are invisible to env overrides during Unmarshal.
func SetDefaults(v *viper.Viper) {
	engine := ndb.DefaultConfig()
	store := db.DefaultConfig()

	v.SetDefault("data_dir", "./nostrdb")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("verify_signatures", engine.VerifySignatures)
	v.SetDefault("compression", string(engine.Compression))
	v.SetDefault("max_readers", engine.MaxReaders)
	v.SetDefault("subscription_queue", engine.SubscriptionQueue)
	v.SetDefault("cache_size", store.CacheSize)
	v.SetDefault("memtable_size", store.MemTableSize)
	v.SetDefault("sync_writes", store.SyncWrites)
}

// BindFlags binds the global flags of fs to their keys. Flag names use
// dashes where keys use underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{"data_dir", "log.level", "verify_signatures", "compression"} {
		name := strings.NewReplacer("_", "-", ".", "-").Replace(key)
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load reads the configuration. Sources, lowest precedence first:
// defaults, the config file, NOSTRDB_* environment variables and bound
// flags. An empty file searches for nostrdb.{yaml,toml,json,env} in the
// working directory and skips it when absent; a named file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("nostrdb")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. The engine repeats its own checks on open.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must be set", ErrInvalid)
	}
	if _, err := ndb.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.MaxReaders <= 0 {
		return fmt.Errorf("%w: max_readers must be positive, got %d", ErrInvalid, c.MaxReaders)
	}
	if c.SubscriptionQueue <= 0 {
		return fmt.Errorf("%w: subscription_queue must be positive, got %d", ErrInvalid, c.SubscriptionQueue)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalid)
	}
	return nil
}

// NewLogger builds the logger described by c.Log.
func (c *Config) NewLogger() (logger.Logger, error) {
	return logger.New(c.Log.Level, c.Log.Development)
}

// EngineOptions translates c into options for ndb.Open.
func (c *Config) EngineOptions(log logger.Logger) []ndb.Option {
	comp, err := ndb.ParseCompression(c.Compression)
	if err != nil {
		// Validate already rejected it; let the engine report it again.
		comp = ndb.Compression(c.Compression)
	}

	store := []db.Option{db.WithSyncWrites(c.SyncWrites)}
	if c.CacheSize > 0 {
		store = append(store, db.WithCacheSize(c.CacheSize))
	}
	if c.MemTableSize > 0 {
		store = append(store, db.WithMemTableSize(c.MemTableSize))
	}

	opts := []ndb.Option{
		ndb.WithVerifySignatures(c.VerifySignatures),
		ndb.WithCompression(comp),
		ndb.WithMaxReaders(c.MaxReaders),
		ndb.WithSubscriptionQueue(c.SubscriptionQueue),
		ndb.WithStoreOptions(store...),
	}
	if log != nil {
		opts = append(opts, ndb.WithLogger(log))
	}
	return opts
}
