package db

import (
	"runtime"

	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// Config holds the tunables of a [PebbleDB]. Prefer passing [Option]
// values to [Open] over building a Config by hand.
type Config struct {
	// ColumnFamilies lists the logical families accepted by Store methods.
	// DefaultColumnFamily is always present.
	ColumnFamilies []string

	// CacheSize is the shared block cache in bytes. Index scans over the
	// kind/author/tag families are read-heavy, so this is the main knob.
	CacheSize int64

	// MemTableSize is the size of one memtable in bytes.
	MemTableSize uint64

	MaxConcurrentCompactions int

	// MaxOpenFiles limits open descriptors; 0 means unlimited.
	MaxOpenFiles int

	L0CompactionThreshold int
	L0StopWritesThreshold int
	LBaseMaxBytes         int64

	// WALDir places the write-ahead log on another device when set.
	WALDir string

	// SyncWrites fsyncs every write. Off by default: events can be
	// re-ingested from relays, so per-event durability is not worth the
	// throughput loss. Flush and Close still sync the WAL.
	SyncWrites bool

	// Logger defaults to logger.Default().
	Logger logger.Logger
}

// DefaultConfig returns defaults sized for a local event cache: many small
// writes, point lookups by id and short index range scans.
func DefaultConfig() *Config {
	return &Config{
		CacheSize:                64 << 20, // 64 MB
		MemTableSize:             32 << 20, // 32 MB
		MaxConcurrentCompactions: max(1, runtime.NumCPU()/2),
		MaxOpenFiles:             0,
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20, // 64 MB
	}
}

// Option is a functional option applied to [Config] during [Open].
type Option func(*Config)

// WithColumnFamilies registers logical column families.
func WithColumnFamilies(cfs ...string) Option {
	return func(c *Config) { c.ColumnFamilies = cfs }
}

// WithCacheSize sets the block cache capacity in bytes.
func WithCacheSize(size int64) Option {
	return func(c *Config) { c.CacheSize = size }
}

// WithMemTableSize sets the memtable size in bytes.
func WithMemTableSize(size uint64) Option {
	return func(c *Config) { c.MemTableSize = size }
}

// WithMaxConcurrentCompactions sets background compaction parallelism.
func WithMaxConcurrentCompactions(n int) Option {
	return func(c *Config) { c.MaxConcurrentCompactions = n }
}

// WithMaxOpenFiles limits open file descriptors; 0 is unlimited.
func WithMaxOpenFiles(n int) Option {
	return func(c *Config) { c.MaxOpenFiles = n }
}

// WithWALDir sets a separate directory for WAL files.
func WithWALDir(dir string) Option {
	return func(c *Config) { c.WALDir = dir }
}

// WithSyncWrites enables fsync on every write.
func WithSyncWrites(sync bool) Option {
	return func(c *Config) { c.SyncWrites = sync }
}

// WithLogger sets the logger used for open/close messages.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
