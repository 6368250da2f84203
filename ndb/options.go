package ndb

import (
	"fmt"

	"github.com/beyondbrewing/brewery-nostrdb/db"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// Compression selects how note records are stored.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression resolves a configuration string. The empty string
// selects zstd.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(s); c {
	case "":
		return CompressionZstd, nil
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, s)
	}
}

// Config holds all settings for an Ndb instance.
type Config struct {
	// VerifySignatures checks the event id and BIP-340 signature of every
	// ingested event. Disable only for trusted, pre-verified input.
	VerifySignatures bool

	// Compression is applied to stored note records.
	Compression Compression

	// MaxReaders bounds the number of concurrently open read transactions.
	MaxReaders int

	// SubscriptionQueue is the number of undelivered note keys buffered
	// per subscription. Newer keys are dropped once it is full.
	SubscriptionQueue int

	// StoreOptions are passed to db.Open when the engine opens its own
	// store.
	StoreOptions []db.Option

	// Logger falls back to logger.Default() if nil.
	Logger logger.Logger
}

// Option is a functional option for configuring an Ndb.
type Option func(*Config)

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig() *Config {
	return &Config{
		VerifySignatures:  true,
		Compression:       CompressionZstd,
		MaxReaders:        126,
		SubscriptionQueue: 4096,
	}
}

func (c *Config) validate() error {
	if _, err := ParseCompression(string(c.Compression)); err != nil {
		return err
	}
	if c.Compression == "" {
		c.Compression = CompressionZstd
	}
	if c.MaxReaders <= 0 {
		return fmt.Errorf("%w: max readers must be positive, got %d", ErrInvalidConfig, c.MaxReaders)
	}
	if c.SubscriptionQueue <= 0 {
		return fmt.Errorf("%w: subscription queue must be positive, got %d", ErrInvalidConfig, c.SubscriptionQueue)
	}
	return nil
}

// WithVerifySignatures toggles id and signature checks on ingest.
func WithVerifySignatures(v bool) Option {
	return func(c *Config) { c.VerifySignatures = v }
}

// WithCompression sets the record compression codec.
func WithCompression(comp Compression) Option {
	return func(c *Config) { c.Compression = comp }
}

// WithMaxReaders sets the read transaction limit.
func WithMaxReaders(n int) Option {
	return func(c *Config) { c.MaxReaders = n }
}

// WithSubscriptionQueue sets the per-subscription buffer size.
func WithSubscriptionQueue(n int) Option {
	return func(c *Config) { c.SubscriptionQueue = n }
}

// WithStoreOptions appends options for the underlying Pebble store.
func WithStoreOptions(opts ...db.Option) Option {
	return func(c *Config) { c.StoreOptions = append(c.StoreOptions, opts...) }
}

// WithLogger sets a structured logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
