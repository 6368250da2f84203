// Package boundary exposes the ndb engine to a foreign host through
// integer handles.
//
// Every exported Bridge method is one host-callable operation. None of them
// returns a Go error: failures are classified into a Kind, raised through
// the caller's Env and the method returns its absent value (0, -1 or nil).
// Panics never escape a bridge method.
//
// Handle ownership:
//
//	database     shared; CloneDB mints another reference, Close drops one
//	transaction  exclusive; keeps its database engine open until ended
//	builder      linear; every filter transition consumes it
//	filter       exclusive; released by FilterDestroy
package boundary

import (
	"github.com/beyondbrewing/brewery-nostrdb/ndb"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/handle"
	"github.com/beyondbrewing/brewery-nostrdb/pkg/logger"
)

// Opener opens the engine for a database path.
type Opener func(path string, opts ...ndb.Option) (*ndb.Ndb, error)

// Config holds all settings for a Bridge.
type Config struct {
	// EngineOptions are passed to every engine the bridge opens.
	EngineOptions []ndb.Option

	// Opener defaults to ndb.Open.
	Opener Opener

	// Logger falls back to logger.Default() if nil.
	Logger logger.Logger
}

// Option is a functional option for configuring a Bridge.
type Option func(*Config)

// DefaultConfig returns a Config that opens Pebble-backed engines.
func DefaultConfig() *Config {
	return &Config{Opener: ndb.Open}
}

// WithEngineOptions appends engine options used by Open.
func WithEngineOptions(opts ...ndb.Option) Option {
	return func(c *Config) { c.EngineOptions = append(c.EngineOptions, opts...) }
}

// WithOpener replaces the function used to open engines.
func WithOpener(o Opener) Option {
	return func(c *Config) { c.Opener = o }
}

// WithLogger sets a structured logger for the bridge.
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Bridge owns the handle tables. A process normally has one.
type Bridge struct {
	cfg    *Config
	logger logger.Logger

	dbs      *handle.Table[*conn]
	txns     *handle.Table[*txnRef]
	builders *handle.Table[ndb.FilterBuilder]
	filters  *handle.Table[ndb.Filter]
}

// New creates a bridge with empty handle tables.
func New(opts ...Option) *Bridge {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.Opener == nil {
		cfg.Opener = ndb.Open
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Bridge{
		cfg:      cfg,
		logger:   log.With("component", "boundary"),
		dbs:      handle.NewTable[*conn](tagDatabase),
		txns:     handle.NewTable[*txnRef](tagTxn),
		builders: handle.NewTable[ndb.FilterBuilder](tagBuilder),
		filters:  handle.NewTable[ndb.Filter](tagFilter),
	}
}

// HandleCounts reports live handles per table.
type HandleCounts struct {
	Databases    int
	Transactions int
	Builders     int
	Filters      int
}

// Live returns the number of live handles of each kind.
func (b *Bridge) Live() HandleCounts {
	return HandleCounts{
		Databases:    b.dbs.Len(),
		Transactions: b.txns.Len(),
		Builders:     b.builders.Len(),
		Filters:      b.filters.Len(),
	}
}
