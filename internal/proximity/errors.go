package proximity

import (
	"github.com/rotisserie/eris"
)

var (
	// ErrDuplicateStation is returned when a station ID appears more than once.
	ErrDuplicateStation = eris.New("proximity: duplicate station id")

	// ErrInvalidRadius is returned for a radius that is not a positive finite number.
	ErrInvalidRadius = eris.New("proximity: radius must be a positive finite number")
)

// CheckUniqueIDs returns ErrDuplicateStation naming the first repeated ID.
func CheckUniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return eris.Wrapf(ErrDuplicateStation, "station %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func stationIDs(stations []Station) []string {
	ids := make([]string, len(stations))
	for i, s := range stations {
		ids[i] = s.ID
	}
	return ids
}
