package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

func makeIncidents(n int) []proximity.Incident {
	out := make([]proximity.Incident, n)
	for i := range out {
		out[i] = proximity.Incident{Lat: 19 + float64(i)*1e-4, Lon: -99, Row: i + 1}
	}
	return out
}

func TestFilterBorough(t *testing.T) {
	incidents := []proximity.Incident{
		{Borough: "COYOACÁN", Row: 1},
		{Borough: "IZTAPALAPA", Row: 2},
		{Borough: "Coyoacán", Row: 3},
	}

	got := FilterBorough(incidents, "coyoacán")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, 3, got[1].Row)

	all := FilterBorough(incidents, "")
	assert.Equal(t, incidents, all)
	all[0].Row = 99
	assert.Equal(t, 1, incidents[0].Row, "input must not be mutated")
}

func TestBoroughs(t *testing.T) {
	incidents := []proximity.Incident{{Borough: "TLALPAN"}, {Borough: "COYOACAN"}, {Borough: "TLALPAN"}, {}}
	assert.Equal(t, []string{"COYOACAN", "TLALPAN"}, Boroughs(incidents))
	assert.Empty(t, Boroughs(nil))
}

func TestSample_Deterministic(t *testing.T) {
	incidents := makeIncidents(1000)

	a := Sample(incidents, 0.1, 42)
	b := Sample(incidents, 0.1, 42)
	c := Sample(incidents, 0.1, 7)

	assert.Len(t, a, 100)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1].Row, a[i].Row, "sample keeps source order")
	}
}

func TestSample_Bounds(t *testing.T) {
	incidents := makeIncidents(10)
	assert.Len(t, Sample(incidents, 1, 1), 10)
	assert.Len(t, Sample(incidents, 2, 1), 10)
	assert.Empty(t, Sample(incidents, 0, 1))
	assert.Len(t, Sample(incidents, 0.25, 1), 3)
	assert.Empty(t, Sample(nil, 0.5, 1))
}

func TestLimit(t *testing.T) {
	incidents := makeIncidents(50)

	assert.Len(t, Limit(incidents, 0, 1), 50)
	assert.Len(t, Limit(incidents, 100, 1), 50)

	got := Limit(incidents, 20, 1)
	assert.Len(t, got, 20)
	assert.Equal(t, got, Limit(incidents, 20, 1))
	assert.Equal(t, 50, len(incidents))
}
