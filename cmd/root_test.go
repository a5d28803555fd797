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

	for _, name := range []string{"load", "fetch", "migrate", "status"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "tigerload", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestLoadCommand_Flags(t *testing.T) {
	for _, name := range []string{"dir", "year", "only", "schema", "batch-size", "fallback-srid", "dry-run", "no-log"} {
		require.NotNil(t, loadCmd.Flags().Lookup(name), "load should have --%s", name)
	}
	assert.Equal(t, "false", loadCmd.Flags().Lookup("dry-run").DefValue)
}

func TestFetchCommand_Flags(t *testing.T) {
	for _, name := range []string{"dir", "year", "only", "states", "concurrency"} {
		require.NotNil(t, fetchCmd.Flags().Lookup(name), "fetch should have --%s", name)
	}
}
