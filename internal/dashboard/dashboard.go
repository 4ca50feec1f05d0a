// Package dashboard runs the operator-facing HTTP+WebSocket surface
// (component 4.J): health/config inspection endpoints and a live feed of
// every lifecycle message the engine emits.
package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/castiron-io/etlworker/internal/config"
	"github.com/castiron-io/etlworker/internal/engine"
	"github.com/castiron-io/etlworker/internal/logging"
	"github.com/castiron-io/etlworker/internal/producer"
)

// Server exposes /healthz, /configs, and /ws over gorilla/mux, grounded
// on cmd/noisefs-webui's router and websocket-upgrade shape.
type Server struct {
	cfg       config.DashboardConfig
	registry  *engine.Registry
	wsSink    *producer.WebSocketSink
	log       *logging.Logger
	upgrader  websocket.Upgrader
	httpServer *http.Server
}

// New constructs a Server. registry supplies /configs and /healthz data;
// wsSink is the fan-out sink /ws clients subscribe to.
func New(cfg config.DashboardConfig, registry *engine.Registry, wsSink *producer.WebSocketSink, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New(nil)
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		wsSink:   wsSink,
		log:      log.WithComponent("dashboard"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// router builds the mux.Router serving /healthz, /configs, and /ws,
// split out from Start so tests can drive it with httptest without
// binding a real port.
func (s *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	router.HandleFunc("/configs", s.handleConfigs).Methods("GET")
	router.HandleFunc("/ws", s.handleWebSocket)
	return router
}

// Start begins serving in a background goroutine. It does not block.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router()}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("dashboard server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	s.log.Info("dashboard listening", map[string]interface{}{"addr": addr})
	return nil
}

// Stop closes the HTTP server immediately, including active connections.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Close()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, map[string]interface{}{
		"status":        "ok",
		"registry_size": s.registry.Size(),
	})
}

func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, s.registry.Snapshots())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	ch := s.wsSink.Register(conn)
	defer func() {
		s.wsSink.Unregister(conn)
		conn.Close()
	}()

	go func() {
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func sendJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
