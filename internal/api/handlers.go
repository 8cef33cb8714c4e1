package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/compare"
	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

type countsResponse struct {
	Snapshot string           `json:"snapshot"`
	Radius   float64          `json:"radius_meters"`
	Method   geo.Method       `json:"method"`
	Borough  string           `json:"borough,omitempty"`
	Total    int              `json:"total"`
	Stats    proximity.Stats  `json:"stats"`
	Counts   proximity.Counts `json:"counts"`
}

type compareResponse struct {
	RunID      string             `json:"run_id,omitempty"`
	Snapshot   string             `json:"snapshot"`
	Radius     float64            `json:"radius_meters"`
	Method     geo.Method         `json:"method"`
	Supplied   dataset.LoadReport `json:"supplied"`
	Comparison compare.Comparison `json:"comparison"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"incidents": len(s.snap.Incidents),
		"stations":  len(s.snap.Stations),
		"snapshot":  s.snap.Hash,
		"cache":     s.cache.Stats(),
	})
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snap.Stations)
}

// handleBoroughs lists the values accepted by ?borough=.
func (s *Server) handleBoroughs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.boroughs)
}

// snapshotFor narrows the server snapshot to ?borough= when present.
func (s *Server) snapshotFor(r *http.Request) (proximity.Snapshot, string) {
	borough := strings.TrimSpace(r.URL.Query().Get("borough"))
	if borough == "" {
		return s.snap, ""
	}
	return proximity.NewSnapshot(dataset.FilterBorough(s.snap.Incidents, borough), s.snap.Stations), borough
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	radius, method, err := scanParams(r, s.opts.Radius, s.opts.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, borough := s.snapshotFor(r)

	counts, stats, err := s.cache.Counts(r.Context(), snap, radius, proximity.WithMethod(method))
	if err != nil {
		s.scanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countsResponse{
		Snapshot: snap.Hash,
		Radius:   radius,
		Method:   method,
		Borough:  borough,
		Total:    counts.Total(),
		Stats:    stats,
		Counts:   counts,
	})
}

func (s *Server) handleNear(w http.ResponseWriter, r *http.Request) {
	radius, method, err := scanParams(r, s.opts.Radius, s.opts.Method)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, _ := s.snapshotFor(r)

	mask, _, err := s.cache.Mask(r.Context(), snap, radius, proximity.WithMethod(method))
	if err != nil {
		s.scanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Matched-Incidents", strconv.Itoa(mask.Matched()))
	if err := dataset.WriteGeoJSON(w, mask.Apply(snap.Incidents), snap.Stations); err != nil {
		s.log.Warn("write geojson", zap.Error(err))
	}
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	radius, method, err := scanParams(r, s.opts.Radius, s.opts.ReferenceMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart upload needs a \"file\" field")
			return
		}
		defer file.Close() //nolint:errcheck
		body = file
	}

	tbl, err := dataset.ReadCSV(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	supplied, report, err := dataset.DecodeCounts(tbl)
	if err != nil {
		if errors.Is(err, dataset.ErrMissingColumn) || errors.Is(err, proximity.ErrDuplicateStation) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reference, _, err := s.cache.Counts(r.Context(), s.snap, radius, proximity.WithMethod(method))
	if err != nil {
		s.scanError(w, err)
		return
	}
	cmp, err := compare.Compare(reference, supplied)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := compareResponse{
		Snapshot:   s.snap.Hash,
		Radius:     radius,
		Method:     method,
		Supplied:   report,
		Comparison: cmp,
	}
	if n := cmp.Dropped(); n > 0 {
		s.log.Debug("stations left out of comparison",
			zap.Int("dropped", n),
			zap.Strings("missing_from_supplied", cmp.DroppedReference),
			zap.Strings("unknown_in_supplied", cmp.DroppedSupplied),
		)
	}
	resp.RunID = s.recordComparison(r.Context(), radius, method, reference, cmp)
	writeJSON(w, http.StatusOK, resp)
}

// recordComparison saves the comparison with the reference counts it was
// scored against and returns the run ID, or "" when history is off.
func (s *Server) recordComparison(ctx context.Context, radius float64, method geo.Method, reference proximity.Counts, cmp compare.Comparison) string {
	if s.store == nil {
		return ""
	}
	sim := cmp.Similarity
	run := &store.Run{
		Kind:         store.KindCompare,
		Method:       method.String(),
		Radius:       radius,
		SnapshotHash: s.snap.Hash,
		Incidents:    len(s.snap.Incidents),
		Stations:     len(s.snap.Stations),
		Matched:      len(cmp.Rows),
		Similarity:   &sim,
		Status:       string(cmp.Status),
		Counts:       reference,
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.log.Warn("save comparison run", zap.Error(err))
		return ""
	}
	return run.ID
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var removed int
	if hash := r.URL.Query().Get("snapshot"); hash != "" {
		removed = s.cache.Invalidate(hash)
	} else {
		removed = s.cache.Purge()
	}
	s.log.Info("cache invalidated", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	filter := store.RunFilter{Kind: store.Kind(r.URL.Query().Get("kind"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.log.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("get run", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) scanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, proximity.ErrInvalidRadius):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "scan cancelled")
	default:
		s.log.Error("scan failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
	}
}
