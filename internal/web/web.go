// Package web exposes a single widget instance over HTTP: a read endpoint
// for the current render plus action endpoints that drive navigation,
// search and view changes.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"calwidget/internal/config"
	appLog "calwidget/internal/log"
	"calwidget/internal/model"
	"calwidget/internal/widget"
)

// Server provides the HTTP API around one widget instance.
type Server struct {
	cfg *config.Config
	cal *widget.Calendar
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cal *widget.Calendar) *Server {
	s := &Server{
		cfg: cfg,
		cal: cal,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. An empty
// username or password counts as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="CalWidget", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer starts an HTTP server bound to cfg.Listen. Graceful shutdown
// on ctx cancellation is left to the caller wrapping an http.Server.
func StartServer(_ context.Context, cfg *config.Config, cal *widget.Calendar) error {
	s := NewServer(cfg, cal)
	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	return http.ListenAndServe(cfg.Listen, s.Handler())
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/view", s.handleView)
	s.mux.HandleFunc("/api/navigate", s.handleNavigate)
	s.mux.HandleFunc("/api/date", s.handleDate)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/appointments/", s.handleAppointment)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleView returns the current render on GET and switches the active view
// on POST (?view=day|week|month|year).
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cal.Snapshot())
	case http.MethodPost:
		name := r.URL.Query().Get("view")
		if name == "" {
			writeError(w, http.StatusBadRequest, "missing view parameter")
			return
		}
		s.cal.SetView(r.Context(), name)
		writeJSON(w, http.StatusOK, s.cal.Snapshot())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleNavigate steps the reference date.
//
// POST /api/navigate?direction=back|forward|today
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch dir := r.URL.Query().Get("direction"); dir {
	case "back":
		s.cal.NavigateBack(r.Context())
	case "forward":
		s.cal.NavigateForward(r.Context())
	case "today":
		s.cal.SetToday(r.Context(), r.URL.Query().Get("view"))
	default:
		writeError(w, http.StatusBadRequest, "direction must be back, forward or today")
		return
	}
	writeJSON(w, http.StatusOK, s.cal.Snapshot())
}

// handleDate jumps to an explicit reference date.
//
// POST /api/date?date=YYYY-MM-DD
func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	d, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	s.cal.SetDate(r.Context(), d)
	writeJSON(w, http.StatusOK, s.cal.Snapshot())
}

// handleSearch drives search mode.
//
// POST /api/search?term=...        enter (or clear, with an empty term)
// POST /api/search?page=N          jump to a result page
// DELETE /api/search               exit search mode
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		q := r.URL.Query()
		if pageStr := q.Get("page"); pageStr != "" {
			page, err := strconv.Atoi(pageStr)
			if err != nil || page < 0 {
				writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
				return
			}
			s.cal.SetPage(r.Context(), page)
		} else {
			s.cal.Search(r.Context(), q.Get("term"))
		}
	case http.MethodDelete:
		s.cal.ExitSearch(r.Context())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.cal.Snapshot())
}

// handleRefresh re-fetches the current window.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.cal.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.cal.Snapshot())
}

// handleAppointment resolves a geometry ID from the last render back to its
// normalized appointment.
//
// GET /api/appointments/{id}
func (s *Server) handleAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := r.URL.Path[len("/api/appointments/"):]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing appointment id")
		return
	}
	a, ok := s.cal.Appointment(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown appointment id")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
