// Package api serves proximity counts, masks and comparisons over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/metro-proximity/internal/dataset"
	"github.com/sells-group/metro-proximity/internal/geo"
	"github.com/sells-group/metro-proximity/internal/proximity"
	"github.com/sells-group/metro-proximity/internal/store"
)

// Options configures a Server.
type Options struct {
	Radius          float64
	Method          geo.Method
	ReferenceMethod geo.Method

	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server holds the loaded inputs and the shared result cache.
type Server struct {
	snap     proximity.Snapshot
	boroughs []string
	cache    *proximity.Cache
	store    store.Store
	opts     Options
	log      *zap.Logger
}

// New creates a Server over snap. st may be nil, which disables run history.
func New(snap proximity.Snapshot, cache *proximity.Cache, st store.Store, opts Options) *Server {
	if opts.Radius <= 0 {
		opts.Radius = proximity.DefaultRadiusMeters
	}
	if opts.Method == "" {
		opts.Method = geo.MethodHaversine
	}
	if opts.ReferenceMethod == "" {
		opts.ReferenceMethod = geo.MethodGeodesic
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		snap:     snap,
		boroughs: dataset.Boroughs(snap.Incidents),
		cache:    cache,
		store:    st,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "api")),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(rateLimit(s.opts.RateLimit, s.opts.RateBurst))
		}
		r.Use(middleware.Timeout(2 * time.Minute))

		r.Get("/stations", s.handleStations)
		r.Get("/boroughs", s.handleBoroughs)
		r.Get("/counts", s.handleCounts)
		r.Get("/incidents/near", s.handleNear)
		r.Post("/compare", s.handleCompare)
		r.Delete("/cache", s.handlePurge)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}
