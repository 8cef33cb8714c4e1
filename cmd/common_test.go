package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/metro-proximity/internal/config"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
)

func TestApplyFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	fs := cmd.Flags()
	fs.String("incidents", "", "")
	fs.String("stations", "", "")
	fs.Float64("radius", 0, "")
	fs.String("borough", "", "")
	fs.Float64("sample", 0, "")
	fs.Uint64("seed", 0, "")
	fs.Int("max-points", 0, "")
	require.NoError(t, cmd.Flags().Parse([]string{
		"--incidents", "in.csv",
		"--radius", "450",
		"--borough", "COYOACAN",
		"--seed", "7",
	}))

	c := &config.Config{
		Data: config.DataConfig{
			IncidentsPath:  "default.csv",
			StationsPath:   "stations.csv",
			SampleFraction: 0.5,
			MaxPoints:      100,
		},
		Proximity: config.ProximityConfig{RadiusMeters: 300},
	}
	applyFlagOverrides(cmd, c)

	assert.Equal(t, "in.csv", c.Data.IncidentsPath)
	assert.Equal(t, "stations.csv", c.Data.StationsPath, "unset flags keep config values")
	assert.Equal(t, 450.0, c.Proximity.RadiusMeters)
	assert.Equal(t, "COYOACAN", c.Data.Borough)
	assert.Equal(t, uint64(7), c.Data.SampleSeed)
	assert.Equal(t, 0.5, c.Data.SampleFraction)
	assert.Equal(t, 100, c.Data.MaxPoints)
}

func testIncidents(n int, borough string) []proximity.Incident {
	out := make([]proximity.Incident, n)
	for i := range out {
		out[i] = proximity.Incident{Lat: 19.43, Lon: -99.13, Borough: borough, Row: i}
	}
	return out
}

func TestPrepareIncidents(t *testing.T) {
	incidents := append(testIncidents(40, "COYOACAN"), testIncidents(60, "TLALPAN")...)

	tests := []struct {
		name string
		data config.DataConfig
		want int
	}{
		{name: "no narrowing", data: config.DataConfig{SampleFraction: 1}, want: 100},
		{name: "borough", data: config.DataConfig{Borough: "coyoacan", SampleFraction: 1}, want: 40},
		{name: "sample", data: config.DataConfig{SampleFraction: 0.5, SampleSeed: 42}, want: 50},
		{name: "borough then sample", data: config.DataConfig{Borough: "TLALPAN", SampleFraction: 0.5, SampleSeed: 1}, want: 30},
		{name: "cap", data: config.DataConfig{SampleFraction: 1, MaxPoints: 10, SampleSeed: 3}, want: 10},
		{name: "zero fraction keeps all", data: config.DataConfig{}, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := prepareIncidents(incidents, tt.data)
			assert.Len(t, got, tt.want)
		})
	}
	assert.Len(t, incidents, 100, "source slice is untouched")
}

func TestResolveMethod(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("method", "", "")

	m, err := resolveMethod(cmd, "geodesic")
	require.NoError(t, err)
	assert.Equal(t, geo.MethodGeodesic, m)

	require.NoError(t, cmd.Flags().Set("method", "haversine"))
	m, err = resolveMethod(cmd, "geodesic")
	require.NoError(t, err)
	assert.Equal(t, geo.MethodHaversine, m)

	require.NoError(t, cmd.Flags().Set("method", "manhattan"))
	_, err = resolveMethod(cmd, "geodesic")
	assert.Error(t, err)
}

func TestProgressLogger_Throttles(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	fn := progressLogger("counts")
	for i := 1; i <= 100; i++ {
		fn(proximity.Progress{Done: i, Total: 100, StationID: "S"})
	}

	entries := logs.FilterMessage("scan progress").All()
	assert.Len(t, entries, 11, "one entry per 10% step, including the first")
	last := entries[len(entries)-1].ContextMap()
	assert.Equal(t, int64(100), last["done"])
	assert.Equal(t, "counts", last["component"])
}

func TestWriteOutput_Stdout(t *testing.T) {
	var buf bytes.Buffer
	for _, path := range []string{"", "-"} {
		buf.Reset()
		err := writeOutput(&buf, path, func(w io.Writer) error {
			_, err := io.WriteString(w, "hello")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", buf.String())
	}
}

func TestWriteOutput_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "out.txt")

	err := writeOutput(&buf, path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteOutput_Errors(t *testing.T) {
	err := writeOutput(io.Discard, filepath.Join(t.TempDir(), "missing", "out.txt"), func(io.Writer) error {
		return nil
	})
	assert.Error(t, err)

	boom := eris.New("boom")
	err = writeOutput(io.Discard, filepath.Join(t.TempDir(), "out.txt"), func(io.Writer) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{"csv", "json", "yaml"} {
		assert.NoError(t, checkFormat(f))
	}
	assert.Error(t, checkFormat("xml"))
}

func TestPrintFilterSummary(t *testing.T) {
	var buf bytes.Buffer
	printFilterSummary(&buf, proximity.Stats{Incidents: 4, Stations: 2, SkippedIncidents: 1}, 3, 300)

	out := buf.String()
	assert.Contains(t, out, "Incidents:  4 (1 without usable coordinates)")
	assert.Contains(t, out, "Stations:   2 (0 without usable coordinates)")
	assert.Contains(t, out, "Within 300m: 3 (75.0%)")
}
