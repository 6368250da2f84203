package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestNew_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		l, err := New(lvl, true)
		require.NoError(t, err, lvl)
		require.NotNil(t, l)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "test")

	l.Info("hello", "k", 1)
	l.Debug("dbg")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "test", ctx["component"])
	assert.EqualValues(t, 1, ctx["k"])
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	nop := NewNop()
	SetDefault(nop)
	SetDefault(nil)
	assert.Same(t, nop, Default())
}
