// Package api serves the diagnostics HTTP surface: health, metrics and a
// read-only session view. It is optional and bound to loopback by default.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"browserd/browser"
	"browserd/session"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the diagnostics HTTP server.
type Server struct {
	store   *browser.Store
	storage *session.Storage
	logger  *zap.SugaredLogger
	srv     *http.Server
}

// NewServer creates the server for the given listen address.
func NewServer(addr string, store *browser.Store, storage *session.Storage, logger *zap.SugaredLogger) *Server {
	s := &Server{
		store:   store,
		storage: storage,
		logger:  logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/debug/session", s.handleSession).Methods("GET")
	r.HandleFunc("/debug/snapshots", s.handleSnapshots).Methods("GET")

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Infow("Diagnostics server started", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"tabs":            state.Tabs,
		"selected_tab_id": state.SelectedTabID,
		"restored":        state.Restored,
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.storage.List(r.Context(), 50)
	if err != nil {
		s.logger.Errorw("Failed to list snapshots", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot listing failed"})
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
