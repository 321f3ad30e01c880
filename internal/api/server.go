// Package api serves the state of a running recording over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/recording"
)

// DefaultPushInterval is how often websocket clients receive a status.
const DefaultPushInterval = time.Second

// StatusSource reports the current recording status.
type StatusSource interface {
	Status() recording.Status
}

// StatusServer represents the recording status endpoint
type StatusServer struct {
	router   *mux.Router
	source   StatusSource
	upgrader websocket.Upgrader
	interval time.Duration
	srv      *http.Server
}

// NewStatusServer creates a status server for source.
func NewStatusServer(source StatusSource) *StatusServer {
	s := &StatusServer{
		router:   mux.NewRouter(),
		source:   source,
		interval: DefaultPushInterval,
		upgrader: websocket.Upgrader{
			// local tooling only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *StatusServer) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/status/ws", s.handleStatusStream)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler with CORS headers applied.
func (s *StatusServer) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start listens on addr in the background. Listen errors other than a
// clean shutdown are logged.
func (s *StatusServer) Start(addr string) {
	log := logger.WithComponent("api")
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Status server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Status server failed")
		}
	}()
}

// Shutdown stops a started server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *StatusServer) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Failed to encode status")
	}
}

func (s *StatusServer) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// Reader goroutine notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		st := s.source.Status()
		if err := conn.WriteJSON(st); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
		if st.State == recording.StateStopped || st.State == recording.StateError {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, st.State.String()))
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
