// Copyright 2024-2026 Madhukar Beema. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

// Package status serves health, readiness, installed hooks and metrics
// over HTTP.
package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/mbeema/perfhook/pkg/hook"
	"go.uber.org/zap"
)

// Bridge is the part of *hook.Bridge the server reads and mutates.
type Bridge interface {
	Handles() []*hook.Handle
	Stats() hook.StatsSnapshot
	Unhook(h *hook.Handle) bool
}

// Server provides the status HTTP endpoints.
type Server struct {
	logger    *zap.Logger
	bridge    Bridge
	monitors  Monitors
	version   string
	addr      string
	startTime time.Time
	ready     atomic.Bool
	server    *http.Server
	listener  net.Listener
}

// NewServer creates a status server. monitors may be nil.
func NewServer(addr, version string, bridge Bridge, monitors Monitors, logger *zap.Logger) *Server {
	return &Server{
		addr:      addr,
		version:   version,
		bridge:    bridge,
		monitors:  monitors,
		logger:    logger,
		startTime: time.Now(),
	}
}

// SetReady marks the process as ready.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/hooks", s.handleHooks).Methods(http.MethodGet)
	r.HandleFunc("/hooks/{id}", s.handleHook).Methods(http.MethodGet)
	r.HandleFunc("/hooks/{id}", s.handleUnhook).Methods(http.MethodDelete)
	return r
}

// Start begins serving.
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server error", zap.Error(err))
		}
	}()

	s.logger.Info("status server started", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Engine  string `json:"engine"`
	Uptime  string `json:"uptime"`
}

type hookView struct {
	ID          string    `json:"id"`
	Member      string    `json:"member"`
	Symbol      string    `json:"symbol"`
	Callback    string    `json:"callback,omitempty"`
	Priority    int       `json:"priority"`
	Engine      string    `json:"engine"`
	InstalledAt time.Time `json:"installed_at"`
}

func viewOf(h *hook.Handle) hookView {
	v := hookView{
		ID:          h.ID,
		Engine:      h.Engine,
		InstalledAt: h.InstalledAt,
	}
	if h.Member != nil {
		v.Member = h.Member.String()
		v.Symbol = h.Member.Symbol()
	}
	if h.Callback != nil {
		v.Callback = h.Callback.Name
		v.Priority = h.Callback.Priority
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.version,
		Engine:  s.bridge.Stats().Engine,
		Uptime:  time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(prometheusFormat(s.snapshot())))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleHooks(w http.ResponseWriter, _ *http.Request) {
	handles := s.bridge.Handles()
	views := make([]hookView, 0, len(handles))
	for _, h := range handles {
		views = append(views, viewOf(h))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) find(id string) *hook.Handle {
	for _, h := range s.bridge.Handles() {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	h := s.find(mux.Vars(r)["id"])
	if h == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "hook not found"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(h))
}

func (s *Server) handleUnhook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h := s.find(id)
	if h == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "hook not found"})
		return
	}
	if !s.bridge.Unhook(h) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "engine refused unhook"})
		return
	}
	s.logger.Info("hook removed over http", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}
