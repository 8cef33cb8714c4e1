package proximity

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
)

// Snapshot is an immutable pairing of inputs with a content hash used as the
// cache identity. Callers must not modify the slices after NewSnapshot.
type Snapshot struct {
	Incidents []Incident
	Stations  []Station
	Hash      string
}

// NewSnapshot hashes the coordinates and station identities of the inputs.
// Incident boroughs and row numbers do not affect scan results and are not
// part of the hash.
func NewSnapshot(incidents []Incident, stations []Station) Snapshot {
	h := sha256.New()
	writeInt(h, len(incidents))
	for _, inc := range incidents {
		writeFloat(h, inc.Lat)
		writeFloat(h, inc.Lon)
	}
	writeInt(h, len(stations))
	for _, st := range stations {
		writeString(h, st.ID)
		writeString(h, st.Line)
		writeFloat(h, st.Lat)
		writeFloat(h, st.Lon)
	}
	return Snapshot{
		Incidents: incidents,
		Stations:  stations,
		Hash:      fmt.Sprintf("%x", h.Sum(nil)),
	}
}

func writeFloat(h hash.Hash, f float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(f))
	h.Write(b[:]) //nolint:errcheck
}

func writeInt(h hash.Hash, n int) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	h.Write(b[:]) //nolint:errcheck
}

func writeString(h hash.Hash, s string) {
	writeInt(h, len(s))
	h.Write([]byte(s)) //nolint:errcheck
}
