// Package telemetry exposes the interlock's state for observability.
// It serves a JSON status endpoint, a Prometheus metrics endpoint, and a
// websocket stream pushing status snapshots to connected dashboards.
//
// The interlock does not depend on this server: losing every telemetry
// client has no effect on safety decisions.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"flightctl-go-migration/pkg/log"
	"flightctl-go-migration/pkg/metrics"
	"flightctl-go-migration/pkg/safety"
)

// Interlock is the slice of the safety monitor the server needs.
type Interlock interface {
	// GetStatus returns the current status snapshot.
	GetStatus() safety.Status

	// EmergencyStop latches the interlock.
	EmergencyStop()

	// Reset clears the latch.
	Reset()
}

// Config holds server configuration.
type Config struct {
	// Addr is the HTTP listen address (e.g., ":7130").
	Addr string

	// Interlock provides status and the stop/reset entry points.
	Interlock Interlock

	// Registry is the shared metrics registry. Optional.
	Registry *metrics.Registry

	// PushInterval is the websocket status push period (default: 500ms).
	PushInterval time.Duration

	// Logger for server events.
	Logger *log.Logger
}

// Server is the telemetry HTTP/websocket server.
type Server struct {
	interlock    Interlock
	registry     *metrics.Registry
	addr         string
	pushInterval time.Duration
	logger       *log.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	running    atomic.Bool
}

// New creates a telemetry server.
func New(cfg Config) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New("telemetry")
	} else {
		logger = logger.WithPrefix("telemetry")
	}

	return &Server{
		interlock:    cfg.Interlock,
		registry:     cfg.Registry,
		addr:         cfg.Addr,
		pushInterval: cfg.PushInterval,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/device/emergency_stop", s.handleEmergencyStop)
	mux.HandleFunc("/device/reset", s.handleReset)
	if s.registry != nil {
		mux.HandleFunc("/metrics", s.handleMetrics)
	}
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.running.Store(true)

	go func() {
		s.logger.Info("listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"result": s.interlock.GetStatus()})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.registry.WriteText(w); err != nil {
		s.logger.Warn("metrics write failed: %v", err)
	}
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.interlock.EmergencyStop()
	s.logger.Warn("emergency stop via telemetry API")
	writeJSON(w, map[string]any{"result": s.interlock.GetStatus()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.interlock.Reset()
	s.logger.Info("latch reset via telemetry API")
	writeJSON(w, map[string]any{"result": s.interlock.GetStatus()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	// Initial snapshot, then periodic pushes.
	if err := conn.WriteJSON(s.interlock.GetStatus()); err != nil {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.interlock.GetStatus()); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
