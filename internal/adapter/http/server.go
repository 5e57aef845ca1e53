package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Response lifetimes advertised to clients, matching the cache tiers behind them.
const (
	stationsMaxAge = 5 * time.Minute
	clustersMaxAge = time.Minute
	regionsMaxAge  = 5 * time.Minute
)

// StationService is the read API served under /stations.
type StationService interface {
	AllStations(ctx context.Context) ([]domain.Station, error)
	HourlyUsage(ctx context.Context, stationID, date string) []domain.HourlyUsage
	Clusters(ctx context.Context, req domain.ClusterRequest) ([]domain.Cluster, error)
	Regions(ctx context.Context) ([]domain.Region, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the station API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        StationService
	logger     *slog.Logger
}

// NewServer creates an HTTP server. The station routes are mounted under
// pathPrefix + "/stations"; /healthz, /readyz and /metrics stay at the root.
func NewServer(addr, pathPrefix string, svc StationService, logger *slog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}

	router.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", sharedobs.ReadinessHandler(svc)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	stations := router.PathPrefix(pathPrefix + "/stations").Subrouter()
	stations.Use(corsMiddleware)
	stations.HandleFunc("/all", s.handleAllStations).Methods(http.MethodGet, http.MethodOptions)
	stations.HandleFunc("/hourly-usage/{stationId}", s.handleHourlyUsage).Methods(http.MethodGet, http.MethodOptions)
	stations.HandleFunc("/clusters", s.handleClusters).Methods(http.MethodGet, http.MethodOptions)
	stations.HandleFunc("/regions", s.handleRegions).Methods(http.MethodGet, http.MethodOptions)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleAllStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.svc.AllStations(r.Context())
	if err != nil {
		s.internalError(w, "load stations", err)
		return
	}
	setMaxAge(w, stationsMaxAge)
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) handleHourlyUsage(w http.ResponseWriter, r *http.Request) {
	stationID := mux.Vars(r)["stationId"]
	date := r.URL.Query().Get("date")
	writeJSON(w, http.StatusOK, s.svc.HourlyUsage(r.Context(), stationID, date))
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	req, err := parseClusterRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	clusters, err := s.svc.Clusters(r.Context(), req)
	if err != nil {
		s.internalError(w, "cluster stations", err)
		return
	}
	setMaxAge(w, clustersMaxAge)
	writeJSON(w, http.StatusOK, clusters)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.svc.Regions(r.Context())
	if err != nil {
		s.internalError(w, "count regions", err)
		return
	}
	setMaxAge(w, regionsMaxAge)
	writeJSON(w, http.StatusOK, regions)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
}

func parseClusterRequest(r *http.Request) (domain.ClusterRequest, error) {
	q := r.URL.Query()
	var req domain.ClusterRequest
	var err error

	if req.Lat, err = requiredFloat(q.Get("latitude"), "latitude"); err != nil {
		return req, err
	}
	if req.Lng, err = requiredFloat(q.Get("longitude"), "longitude"); err != nil {
		return req, err
	}
	if req.LatDelta, err = requiredFloat(q.Get("latitudeDelta"), "latitudeDelta"); err != nil {
		return req, err
	}
	if req.LngDelta, err = requiredFloat(q.Get("longitudeDelta"), "longitudeDelta"); err != nil {
		return req, err
	}
	if req.LatDivisions, err = divisionSize(q.Get("latitudeDivisionSize"), "latitudeDivisionSize"); err != nil {
		return req, err
	}
	if req.LngDivisions, err = divisionSize(q.Get("longitudeDivisionSize"), "longitudeDivisionSize"); err != nil {
		return req, err
	}
	return req, nil
}

func requiredFloat(raw, name string) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func divisionSize(raw, name string) (int, error) {
	if raw == "" {
		return domain.DefaultDivisionSize, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}

// corsMiddleware allows the station API to be called from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setMaxAge(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", int(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
