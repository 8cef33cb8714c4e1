package dataset

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/sells-group/metro-proximity/internal/proximity"
)

// FilterBorough returns the incidents whose borough matches name, ignoring
// case. An empty name returns a copy of all incidents.
func FilterBorough(incidents []proximity.Incident, name string) []proximity.Incident {
	name = normalize(name)
	if name == "" {
		return slices.Clone(incidents)
	}
	out := make([]proximity.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if strings.EqualFold(inc.Borough, name) {
			out = append(out, inc)
		}
	}
	return out
}

// Boroughs returns the distinct non-empty borough names, sorted. These are
// the values FilterBorough accepts.
func Boroughs(incidents []proximity.Incident) []string {
	out := make([]string, 0, 16)
	for _, inc := range incidents {
		if inc.Borough != "" {
			out = append(out, inc.Borough)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Sample keeps round(fraction*len) incidents chosen pseudo-randomly from seed.
// The same seed and input always yield the same subset, in source order.
// A fraction >= 1 returns a copy of every incident.
func Sample(incidents []proximity.Incident, fraction float64, seed uint64) []proximity.Incident {
	if fraction >= 1 {
		return slices.Clone(incidents)
	}
	if fraction <= 0 {
		return []proximity.Incident{}
	}
	k := int(math.Round(fraction * float64(len(incidents))))
	return pick(incidents, k, seed)
}

// Limit caps the incident set at maxPoints, sampling with seed when larger.
// maxPoints <= 0 disables the cap.
func Limit(incidents []proximity.Incident, maxPoints int, seed uint64) []proximity.Incident {
	if maxPoints <= 0 || len(incidents) <= maxPoints {
		return slices.Clone(incidents)
	}
	return pick(incidents, maxPoints, seed)
}

func pick(incidents []proximity.Incident, k int, seed uint64) []proximity.Incident {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	idx := rng.Perm(len(incidents))[:k]
	slices.Sort(idx)

	out := make([]proximity.Incident, k)
	for i, j := range idx {
		out[i] = incidents[j]
	}
	return out
}
