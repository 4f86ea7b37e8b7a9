// Package api serves the read and control surface of the simulation over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hervehildenbrand/attack-radar/pkg/models"
	"github.com/hervehildenbrand/attack-radar/pkg/session"
	"github.com/hervehildenbrand/attack-radar/pkg/simulation"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// EventsResponse is the body of GET /api/events.
type EventsResponse struct {
	RunID    string             `json:"run_id"`
	Active   bool               `json:"active"`
	Count    int                `json:"count"`
	Capacity int                `json:"capacity"`
	Events   []models.EventView `json:"events"`
}

// Server routes HTTP requests to the simulation.
type Server struct {
	sim    *simulation.Simulation
	logger *zap.Logger
	router *httprouter.Router

	mu       sync.Mutex
	httpSrv  *http.Server
	shutdown bool
}

// NewServer builds the router. stream and metrics may be nil, in which
// case their routes are not registered.
func NewServer(sim *simulation.Simulation, stream, metrics http.Handler, logger *zap.Logger) *Server {
	s := &Server{sim: sim, logger: logger, router: httprouter.New()}

	s.router.GET("/api/events", s.handleEvents)
	s.router.GET("/api/selection", s.handleGetSelection)
	s.router.PUT("/api/selection/:id", s.handleSelect)
	s.router.DELETE("/api/selection", s.handleClearSelection)
	s.router.POST("/api/activate", s.handleActivate)
	s.router.POST("/api/restart", s.handleRestart)
	s.router.GET("/healthz", s.handleHealth)
	if stream != nil {
		s.router.Handler(http.MethodGet, "/ws", stream)
	}
	if metrics != nil {
		s.router.Handler(http.MethodGet, "/metrics", metrics)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown is called. It returns nil
// once the server is shut down, including when Shutdown came first.
func (s *Server) ListenAndServe(addr string) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. A later ListenAndServe
// returns immediately.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	srv := s.httpSrv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st := s.sim.Session().State()
	resp := EventsResponse{
		RunID:    st.RunID,
		Active:   st.Active,
		Count:    len(st.Events),
		Capacity: st.Capacity,
		Events:   make([]models.EventView, 0, len(st.Events)),
	}
	for _, e := range st.Events {
		resp.Events = append(resp.Events, models.NewEventView(e))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	event, ok := s.sim.Session().Selected()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, models.NewEventView(event))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	event, err := s.sim.Session().SelectByID(ps.ByName("id"))
	if errors.Is(err, session.ErrEventNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.NewEventView(event))
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sim.Session().ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	started := s.sim.Activate()
	s.writeJSON(w, http.StatusAccepted, map[string]bool{"started": started, "active": s.sim.Active()})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sim.Restart()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"run_id": s.sim.Session().State().RunID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
