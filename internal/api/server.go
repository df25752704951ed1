// Package api is a read-only HTTP inspection surface over a running fleet
// simulation: which AMRs are registered and what ability they offer, and
// the per-material-flow layered-precedence status of an in-flight or
// completed auction/assignment run. It never mutates simulation state --
// every mutating operation (submitting a material flow, advancing the
// clock) happens through cmd/fleetctl, not this server.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutu-network/mrta-fleet/internal/fleet"
)

// FlowStatus is the read-only snapshot of one material flow's layered
// precedence graph, as reported by a FlowStatusProvider.
type FlowStatus struct {
	FlowID          uuid.UUID `json:"flow_id"`
	FreeCount       int       `json:"free"`
	SecondCount     int       `json:"second"`
	HiddenCount     int       `json:"hidden"`
	ScheduledCount  int       `json:"scheduled"`
	AllScheduled    bool      `json:"all_scheduled"`
}

// FlowStatusProvider answers a status lookup without the api package
// needing to import either allocator package directly. Neither
// auction.Initiator nor central.CentralInitiator implements it; cmd/fleetctl's
// serve command supplies a small adapter over an auction.Initiator's graph.
type FlowStatusProvider interface {
	FlowStatus(id uuid.UUID) (FlowStatus, bool)
	ActiveFlows() []uuid.UUID
}

// Server is the fleet inspection HTTP API.
type Server struct {
	fleet          *fleet.Fleet
	flows          FlowStatusProvider
	metricsEnabled bool
}

// NewServer builds a Server reporting on fl's roster and flows' status.
func NewServer(fl *fleet.Fleet, flows FlowStatusProvider) *Server {
	return &Server{fleet: fl, flows: flows}
}

// EnableMetrics mounts the Prometheus /metrics endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/fleet", s.handleFleet)

	r.Route("/materialflow", func(r chi.Router) {
		r.Get("/", s.handleActiveFlows)
		r.Get("/{id}", s.handleFlowStatus)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	abilities := s.fleet.Abilities()
	out := make(map[string][]string, len(abilities))
	for _, a := range abilities {
		topic := fleet.TopicForAbility(a)
		out[topic] = s.fleet.Connections(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActiveFlows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.flows.ActiveFlows())
}

func (s *Server) handleFlowStatus(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid material flow id: "+idParam)
		return
	}
	status, ok := s.flows.FlowStatus(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown material flow: "+idParam)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
