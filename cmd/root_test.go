package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"answer", "eval", "verify", "ingest", "cards", "serve", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "fredqa", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentPreRunE)
}

func TestEvalCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range evalCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["generate"])
}

func TestEvalRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"cases", "remote", "out", "xlsx", "workers", "threshold", "agent"} {
		assert.NotNil(t, evalRunCmd.Flags().Lookup(name), "eval run should have --%s flag", name)
	}
}

func TestEvalGenerateCommand_Flags(t *testing.T) {
	flag := evalGenerateCmd.Flags().Lookup("seed")
	require.NotNil(t, flag)
	assert.Equal(t, "42", flag.DefValue)

	flag = evalGenerateCmd.Flags().Lookup("point")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestVerifyCommand_RequiresCase(t *testing.T) {
	flag := verifyCmd.Flags().Lookup("case")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"series", "start", "end"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest should have --%s flag", name)
	}
}
