package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/metro-proximity/internal/geo"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// scanParams reads radius and method query parameters, falling back to the
// given defaults.
func scanParams(r *http.Request, radius float64, method geo.Method) (float64, geo.Method, error) {
	q := r.URL.Query()
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, "", eris.Errorf("radius must be a number, got %q", v)
		}
		radius = f
	}
	if v := q.Get("method"); v != "" {
		m, err := geo.ParseMethod(v)
		if err != nil {
			return 0, "", err
		}
		method = m
	}
	return radius, method, nil
}
