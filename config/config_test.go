package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beyondbrewing/brewery-nostrdb/ndb"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "./nostrdb", cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.VerifySignatures)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, ndb.DefaultConfig().MaxReaders, cfg.MaxReaders)
	assert.Positive(t, cfg.CacheSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	file := writeFile(t, "nostrdb.yaml", `
data_dir: /var/lib/nostr
compression: lz4
max_readers: 8
log:
  level: debug
`)
	t.Setenv("NOSTRDB_MAX_READERS", "16")
	t.Setenv("NOSTRDB_LOG_DEVELOPMENT", "true")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/nostr", cfg.DataDir)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, 16, cfg.MaxReaders)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NOSTRDB_DATA_DIR", "/from/env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", "", "")
	fs.Bool("verify-signatures", true, "")
	require.NoError(t, fs.Parse([]string{"--data-dir=/from/flag", "--verify-signatures=false"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DataDir)
	assert.False(t, cfg.VerifySignatures)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"compression": "compression: brotli\n",
		"readers":     "max_readers: 0\n",
		"queue":       "subscription_queue: -1\n",
		"data dir":    "data_dir: \"\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(viper.New(), writeFile(t, "c.yaml", body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEngineOptions(t *testing.T) {
	cfg := &Config{
		VerifySignatures:  false,
		Compression:       "none",
		MaxReaders:        3,
		SubscriptionQueue: 9,
		CacheSize:         1 << 20,
	}
	ec := ndb.DefaultConfig()
	for _, o := range cfg.EngineOptions(nil) {
		o(ec)
	}
	assert.False(t, ec.VerifySignatures)
	assert.Equal(t, ndb.CompressionNone, ec.Compression)
	assert.Equal(t, 3, ec.MaxReaders)
	assert.Equal(t, 9, ec.SubscriptionQueue)
	assert.Len(t, ec.StoreOptions, 2)
	assert.Nil(t, ec.Logger)
}
