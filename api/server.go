package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/relvacode/iso8601"

	"github.com/eddielth/sensor-monitor/alert"
	"github.com/eddielth/sensor-monitor/logger"
	"github.com/eddielth/sensor-monitor/model"
	"github.com/eddielth/sensor-monitor/processing"
)

const (
	defaultSummaryLimit = 100
	maxSummaryLimit     = 1000
)

// Store is the read side the API exposes
type Store interface {
	FindReadingsBetween(ctx context.Context, start, end time.Time) ([]model.Reading, error)
	FindRecentSummaries(ctx context.Context, n int) ([]model.Summary, error)
}

// ThresholdSource exposes the active alert configuration
type ThresholdSource interface {
	Thresholds() alert.Thresholds
}

// Trigger requests an out-of-schedule aggregation cycle
type Trigger interface {
	Trigger() error
}

// Server is the read and operations HTTP API
type Server struct {
	store      Store
	thresholds ThresholdSource
	aggregator Trigger
	window     time.Duration
	now        func() time.Time

	Router *mux.Router
	http   *http.Server
}

// NewServer builds the router. aggregator may be nil, in which case
// POST /api/aggregate answers 503. window is the default reading query span.
func NewServer(addr string, store Store, thresholds ThresholdSource, aggregator Trigger, window time.Duration) *Server {
	s := &Server{
		store:      store,
		thresholds: thresholds,
		aggregator: aggregator,
		window:     window,
		now:        time.Now,
		Router:     mux.NewRouter(),
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.Router
	r.Use(loggingMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/readings", s.readingsHandler).Methods("GET")
	api.HandleFunc("/summaries", s.summariesHandler).Methods("GET")
	api.HandleFunc("/thresholds", s.thresholdsHandler).Methods("GET")
	api.HandleFunc("/aggregate", s.aggregateHandler).Methods("POST")
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server stopped: %v", err)
		}
	}()

	logger.Info("API server listening on %s", ln.Addr())
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readingsHandler serves GET /api/readings?from=&to=&sensorType=
func (s *Server) readingsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	end := s.now().UTC()
	if raw := q.Get("to"); raw != "" {
		t, err := iso8601.ParseString(raw)
		if err != nil {
			respondWithError(w, newAPIError(ErrorCodeInvalidFormat, "invalid 'to' timestamp: "+err.Error(), http.StatusBadRequest))
			return
		}
		end = t
	}

	start := end.Add(-s.window)
	if raw := q.Get("from"); raw != "" {
		t, err := iso8601.ParseString(raw)
		if err != nil {
			respondWithError(w, newAPIError(ErrorCodeInvalidFormat, "invalid 'from' timestamp: "+err.Error(), http.StatusBadRequest))
			return
		}
		start = t
	}

	if start.After(end) {
		respondWithError(w, newAPIError(ErrorCodeInvalidFormat, "'from' must not be after 'to'", http.StatusBadRequest))
		return
	}

	readings, err := s.store.FindReadingsBetween(r.Context(), start, end)
	if err != nil {
		logger.Errorw("failed to query readings", "error", err)
		respondWithError(w, newAPIError(ErrorCodeInternalServerError, "failed to query readings", http.StatusInternalServerError))
		return
	}

	if sensorType := q.Get("sensorType"); sensorType != "" {
		filtered := readings[:0]
		for _, rd := range readings {
			if strings.EqualFold(rd.SensorType, sensorType) {
				filtered = append(filtered, rd)
			}
		}
		readings = filtered
	}

	if readings == nil {
		readings = []model.Reading{}
	}
	respondWithJSON(w, http.StatusOK, readings)
}

// summariesHandler serves GET /api/summaries?limit=
func (s *Server) summariesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultSummaryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, newAPIError(ErrorCodeInvalidFormat, "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = min(n, maxSummaryLimit)
	}

	summaries, err := s.store.FindRecentSummaries(r.Context(), limit)
	if err != nil {
		logger.Errorw("failed to query summaries", "error", err)
		respondWithError(w, newAPIError(ErrorCodeInternalServerError, "failed to query summaries", http.StatusInternalServerError))
		return
	}

	if summaries == nil {
		summaries = []model.Summary{}
	}
	respondWithJSON(w, http.StatusOK, summaries)
}

func (s *Server) thresholdsHandler(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, s.thresholds.Thresholds())
}

// aggregateHandler serves POST /api/aggregate
func (s *Server) aggregateHandler(w http.ResponseWriter, _ *http.Request) {
	if s.aggregator == nil {
		respondWithError(w, newAPIError(ErrorCodeServiceUnavailable, "aggregation is not running", http.StatusServiceUnavailable))
		return
	}

	status := "scheduled"
	switch err := s.aggregator.Trigger(); {
	case errors.Is(err, processing.ErrCyclePending):
		status = "already pending"
	case err != nil:
		respondWithError(w, newAPIError(ErrorCodeServiceUnavailable, err.Error(), http.StatusServiceUnavailable))
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": status})
}
