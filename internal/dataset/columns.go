package dataset

// Column names of the external table contract.
const (
	ColLatitude  = "latitud"
	ColLongitude = "longitud"
	ColBorough   = "alcaldia_hecho"
	ColStation   = "estacion"
	ColLine      = "linea"
	ColNearby    = "delitos_cercanos"

	ColNearbyReference = "delitos_cercanos_real"
	ColNearbySupplied  = "delitos_cercanos_usuario"
	ColDifference      = "diferencia"
)

// maxRowErrors caps how many row defects a LoadReport keeps verbatim.
const maxRowErrors = 20

// RowError describes one data row that could not be used.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// LoadReport summarises a table decode. Row numbers are 1-based data rows.
type LoadReport struct {
	Rows    int        `json:"rows"`
	Loaded  int        `json:"loaded"`
	Invalid int        `json:"invalid"`
	Errors  []RowError `json:"errors,omitempty"`
}

func (r *LoadReport) reject(row int, reason string) {
	r.Invalid++
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, RowError{Row: row, Reason: reason})
	}
}
