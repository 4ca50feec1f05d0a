package producer

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketSink fans every published Message out to connected websocket
// clients, exactly mirroring cmd/noisefs-webui's wsClients map: one
// buffered channel per client, non-blocking send, drop on full.
type WebSocketSink struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan Message
}

// NewWebSocketSink creates an empty sink.
func NewWebSocketSink() *WebSocketSink {
	return &WebSocketSink{clients: make(map[*websocket.Conn]chan Message)}
}

// Register adds conn as a subscriber and returns the channel its writer
// goroutine should drain.
func (s *WebSocketSink) Register(conn *websocket.Conn) <-chan Message {
	ch := make(chan Message, 100)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	return ch
}

// Unregister removes conn and closes its channel.
func (s *WebSocketSink) Unregister(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		close(ch)
	}
}

// Publish implements Sink.
func (s *WebSocketSink) Publish(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// client channel full, skip rather than block the engine
		}
	}
}

var _ Sink = (*WebSocketSink)(nil)
