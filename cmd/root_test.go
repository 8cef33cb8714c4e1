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

	for _, name := range []string{"filter", "counts", "compare", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "metro-proximity", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"incidents", "stations", "radius", "borough", "sample", "seed", "max-points", "no-store"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "root should have --%s flag", name)
	}
}

func TestCountsCommand_Flags(t *testing.T) {
	format := countsCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "csv", format.DefValue)

	output := countsCmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)

	assert.NotNil(t, countsCmd.Flags().Lookup("method"))
}

func TestCompareCommand_Flags(t *testing.T) {
	for _, name := range []string{"supplied", "reference", "method", "output", "format", "strict"} {
		assert.NotNil(t, compareCmd.Flags().Lookup(name), "compare should have --%s flag", name)
	}

	supplied := compareCmd.Flags().Lookup("supplied")
	require.NotNil(t, supplied)
	assert.Contains(t, supplied.Annotations, "cobra_annotation_bash_completion_one_required_flag")

	format := compareCmd.Flags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestFilterCommand_Flags(t *testing.T) {
	assert.NotNil(t, filterCmd.Flags().Lookup("method"))
	assert.NotNil(t, filterCmd.Flags().Lookup("geojson"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "50", limit.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
