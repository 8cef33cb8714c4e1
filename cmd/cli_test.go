package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cliIncidents = "latitud,longitud,alcaldia_hecho\n" +
		"19.4301,-99.13,CUAUHTEMOC\n" +
		"19.4305,-99.1302,CUAUHTEMOC\n" +
		"19.4401,-99.13,CUAUHTEMOC\n" +
		"19.50,-99.13,GUSTAVO A MADERO\n"
	cliStations = "estacion,linea,latitud,longitud\n" +
		"A,L1,19.43,-99.13\n" +
		"B,L2,19.44,-99.13\n"
)

// resetFlags restores every flag in the tree to its default so that
// consecutive executions of rootCmd do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupCLI writes the input tables to a temp dir, makes it the working
// directory and points the run history at a SQLite file inside it.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "incidents.csv"), []byte(cliIncidents), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stations.csv"), []byte(cliStations), 0o644))

	t.Chdir(dir)
	t.Setenv("PROXIMITY_LOG_LEVEL", "error")
	t.Setenv("PROXIMITY_DATA_INCIDENTS_PATH", "incidents.csv")
	t.Setenv("PROXIMITY_DATA_STATIONS_PATH", "stations.csv")
	t.Setenv("PROXIMITY_STORE_DATABASE_URL", filepath.Join(dir, "history.db"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Filter(t *testing.T) {
	dir := setupCLI(t)
	geojsonPath := filepath.Join(dir, "near.geojson")

	out, err := execute(t, "filter", "--no-store", "--geojson", geojsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Incidents:  4")
	assert.Contains(t, out, "Within 300m: 3 (75.0%)")

	data, err := os.ReadFile(geojsonPath)
	require.NoError(t, err)
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 5, "two stations and three matched incidents")
}

func TestCLI_CountsCSV(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "counts", "--no-store", "--method", "haversine")
	require.NoError(t, err)
	assert.Equal(t, "estacion,linea,delitos_cercanos\nA,L1,2\nB,L2,1\n", out)
}

func TestCLI_CountsRadiusFlag(t *testing.T) {
	setupCLI(t)

	out, err := execute(t, "counts", "--no-store", "--radius", "10000", "--format", "json")
	require.NoError(t, err)

	var counts []struct {
		StationID string `json:"station_id"`
		Count     int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	require.Len(t, counts, 2)
	assert.Equal(t, 4, counts[0].Count)
	assert.Equal(t, 4, counts[1].Count)
}

func TestCLI_CountsRejectsBadInput(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "counts", "--no-store", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "counts", "--no-store", "--radius=-1")
	assert.ErrorContains(t, err, "radius")

	_, err = execute(t, "counts", "--no-store", "--method", "manhattan")
	assert.Error(t, err)
}

func TestCLI_CompareRoundTrip(t *testing.T) {
	dir := setupCLI(t)
	supplied := filepath.Join(dir, "counts.csv")

	_, err := execute(t, "counts", "--no-store", "-o", supplied)
	require.NoError(t, err)

	out, err := execute(t, "compare", "--no-store", "--supplied", supplied)
	require.NoError(t, err)
	assert.Contains(t, out, "Similarity:        100.00%")
	assert.Contains(t, out, "Matched stations:  2")
}

func TestCLI_CompareAgainstReferenceTable(t *testing.T) {
	dir := setupCLI(t)
	reference := filepath.Join(dir, "reference.csv")
	supplied := filepath.Join(dir, "supplied.csv")
	rows := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(reference, []byte("estacion,delitos_cercanos\nA,10\nB,10\n"), 0o644))
	require.NoError(t, os.WriteFile(supplied, []byte("estacion,delitos_cercanos\nA,8\nB,13\nZ,1\n"), 0o644))

	out, err := execute(t, "compare", "--no-store", "--supplied", supplied, "--reference", reference, "-o", rows)
	require.NoError(t, err)
	assert.Contains(t, out, "Similarity:        75.00%")
	assert.Contains(t, out, "Unknown in supplied (1):   Z")

	data, err := os.ReadFile(rows)
	require.NoError(t, err)
	assert.Equal(t, "estacion,delitos_cercanos_real,delitos_cercanos_usuario,diferencia\nA,10,8,2\nB,10,13,3\n", string(data))
}

func TestCLI_CompareMissingColumn(t *testing.T) {
	dir := setupCLI(t)
	supplied := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(supplied, []byte("estacion,total\nA,1\n"), 0o644))

	_, err := execute(t, "compare", "--no-store", "--supplied", supplied)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delitos_cercanos")
}

func TestCLI_CompareStrictEmptyJoin(t *testing.T) {
	dir := setupCLI(t)
	supplied := filepath.Join(dir, "other.csv")
	require.NoError(t, os.WriteFile(supplied, []byte("estacion,delitos_cercanos\nX,1\n"), 0o644))

	out, err := execute(t, "compare", "--no-store", "--supplied", supplied)
	require.NoError(t, err)
	assert.Contains(t, out, "n/a (no stations in common)")

	_, err = execute(t, "compare", "--no-store", "--supplied", supplied, "--strict")
	assert.Error(t, err)
}

func TestCLI_RunsHistory(t *testing.T) {
	setupCLI(t)

	_, err := execute(t, "counts", "--method", "haversine")
	require.NoError(t, err)

	out, err := execute(t, "runs", "list", "--kind", "counts")
	require.NoError(t, err)
	assert.Contains(t, out, "counts")
	assert.Contains(t, out, "haversine")

	out, err = execute(t, "runs", "list", "--kind", "compare")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, "runs", "show", "00000000-0000-0000-0000-000000000000")
	assert.ErrorContains(t, err, "not found")
}

func TestCLI_CompareRunKeepsReferenceCounts(t *testing.T) {
	dir := setupCLI(t)
	supplied := filepath.Join(dir, "supplied.csv")
	require.NoError(t, os.WriteFile(supplied, []byte("estacion,delitos_cercanos\nA,2\nB,0\n"), 0o644))

	_, err := execute(t, "compare", "--supplied", supplied)
	require.NoError(t, err)

	out, err := execute(t, "runs", "list", "--kind", "compare")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, "header, rule and one run")
	id := strings.Fields(lines[2])[0]

	out, err = execute(t, "runs", "show", id)
	require.NoError(t, err)

	var run struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
		Counts []struct {
			StationID string `json:"station_id"`
			Count     int    `json:"count"`
		} `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "compare", run.Kind)
	require.Len(t, run.Counts, 2)
	assert.Equal(t, "A", run.Counts[0].StationID)
	assert.Equal(t, 2, run.Counts[0].Count)
	assert.Equal(t, "B", run.Counts[1].StationID)
	assert.Equal(t, 1, run.Counts[1].Count)
}
