// Package server exposes a tour session as a JSON control API, with
// health and Prometheus endpoints alongside.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/waypoint/event"
	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/tour"
)

// Config configures a Server.
type Config struct {
	Session *tour.Session
	// Metrics, if nil, disables /metrics.
	Metrics *Metrics
	// History, if nil, disables /tour/events.
	History *event.History
	// MaxBody bounds request bodies. Default: 64 KiB.
	MaxBody int64
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxBody <= 0 {
		c.MaxBody = 64 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the HTTP front of a tour session.
type Server struct {
	cfg     Config
	session *tour.Session
	started time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	cfg.defaults()
	return &Server{cfg: cfg, session: cfg.Session, started: time.Now()}
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(securityHeaders()...)
	r.Use(middleware.RequestSize(s.cfg.MaxBody))
	r.Use(RequestLogger(s.cfg.Logger, s.session.ID()))

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/tour", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/guide", s.handleGuide)
		if s.cfg.History != nil {
			r.Get("/events", s.handleEvents)
		}

		r.Post("/start", s.handleStart)
		r.Post("/goto", s.handleGoTo)
		r.Post("/highlight", s.handleHighlight)
		r.Post("/action", s.handleAction)

		r.Post("/next", s.simple("next", s.session.Next))
		r.Post("/previous", s.simple("previous", s.session.Previous))
		r.Post("/stop", s.simple("stop", s.session.Stop))
		r.Post("/reset", s.simple("reset", s.session.Reset))
		r.Post("/reposition", s.simple("reposition", s.session.Reposition))
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.session.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"session":  st.SessionID,
		"degraded": st.Degraded,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleGuide(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Summary())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f := event.HistoryFilter{
		SessionID: s.session.ID(),
		Type:      event.Type(r.URL.Query().Get("type")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, "events", http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		f.Limit = n
	}
	evs, err := s.cfg.History.Query(r.Context(), f)
	if err != nil {
		s.fail(w, r, "events", http.StatusInternalServerError, err)
		return
	}
	if evs == nil {
		evs = []event.Event{}
	}
	s.count("events", http.StatusOK)
	writeJSON(w, http.StatusOK, evs)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "start", http.StatusBadRequest, err)
		return
	}
	st, err := s.session.Start(r.Context(), req.Index)
	s.respond(w, r, "start", st, err)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "goto", http.StatusBadRequest, err)
		return
	}
	if req.Index == nil {
		s.fail(w, r, "goto", http.StatusBadRequest, errors.New("index is required"))
		return
	}
	st, err := s.session.GoTo(r.Context(), *req.Index)
	s.respond(w, r, "goto", st, err)
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step *guide.Step `json:"step"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "highlight", http.StatusBadRequest, err)
		return
	}
	if req.Step == nil {
		s.fail(w, r, "highlight", http.StatusBadRequest, errors.New("step is required"))
		return
	}
	st, err := s.session.Highlight(r.Context(), *req.Step)
	s.respond(w, r, "highlight", st, err)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, "action", http.StatusBadRequest, err)
		return
	}
	st, err := s.session.Dispatch(r.Context(), req.Action)
	s.respond(w, r, "action", st, err)
}

// simple adapts a session operation without arguments.
func (s *Server) simple(op string, fn func(context.Context) (tour.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := fn(r.Context())
		s.respond(w, r, op, st, err)
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, st tour.State, err error) {
	if err != nil {
		s.fail(w, r, op, statusOf(err), err)
		return
	}
	s.count(op, http.StatusOK)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, code int, err error) {
	GetLogger(r.Context()).Warn("server: request failed", "op", op, "status", code, "error", err)
	s.count(op, code)
	writeError(w, code, err)
}

func (s *Server) count(op string, code int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.request(op, code)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, tour.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, tour.ErrDestroyed):
		return http.StatusGone
	case errors.Is(err, tour.ErrUnknownAction):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid body: %w", err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
