package main

import (
	"context"
	"flag"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wow-auction-lab/internal/config"
)

func newFlagSet(withFeed bool) (*flag.FlagSet, *cliFlags) {
	var f cliFlags
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f.register(fs, withFeed)
	return fs, &f
}

func TestRunsRejectsUseMemory(t *testing.T) {
	fs, _ := newFlagSet(false)
	assert.Nil(t, fs.Lookup("use-memory"))
	assert.Error(t, fs.Parse([]string{"-use-memory"}))
}

func TestPullAcceptsUseMemory(t *testing.T) {
	fs, f := newFlagSet(true)
	require.NoError(t, fs.Parse([]string{"-use-memory"}))
	assert.True(t, f.useMemory)
}

func TestListRunsNeedsSQLiteLedger(t *testing.T) {
	cfg := config.Default()
	cfg.SQLitePath = ""

	err := listRuns(context.Background(), cfg, 10)
	assert.ErrorIs(t, err, errNoRunLedger)
}

func TestListRunsEmptyLedger(t *testing.T) {
	cfg := config.Default()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

	require.NoError(t, listRuns(context.Background(), cfg, 10))
}
