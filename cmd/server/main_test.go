package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "reconcile", "dedupe-users", "reassign-team", "import"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestImportCommand_RequiresFile(t *testing.T) {
	assert.Error(t, importCmd.Args(importCmd, nil))
	assert.NoError(t, importCmd.Args(importCmd, []string{"batch.json"}))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"updated": 2}))
	assert.JSONEq(t, `{"updated":2}`, buf.String())
}

func TestDirectoryWritingCommands_DocumentCacheWindow(t *testing.T) {
	for _, c := range []*cobra.Command{dedupeUsersCmd, reassignTeamCmd, importCmd} {
		assert.Contains(t, c.Long, "directory.cache_ttl", c.Name())
	}
}
