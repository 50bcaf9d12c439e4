package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"f13", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "holdings-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestF13Command_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range f13Cmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"sync", "status", "migrate", "tickers", "latest", "history"} {
		assert.True(t, names[name], "f13 should have subcommand %q", name)
	}
}

func TestF13SyncCommand_Flags(t *testing.T) {
	for _, name := range []string{"quarter", "index-url", "force", "tickers"} {
		assert.NotNil(t, f13SyncCmd.Flags().Lookup(name), "f13 sync should have --%s flag", name)
	}
}

func TestF13StatusCommand_Flags(t *testing.T) {
	limit := f13StatusCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "25", limit.DefValue)

	format := f13StatusCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "table", format.DefValue)
}

func TestF13TickersImportCommand_Flags(t *testing.T) {
	assert.NotNil(t, f13TickersImportCmd.Flags().Lookup("file"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
