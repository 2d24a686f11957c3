package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nchat-dev/auditledger/internal/ledger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientBuffer is how many committed entries a stream client may lag
// behind before it is dropped.
const clientBuffer = 64

// Hub fans committed entries out to websocket clients. Publish never
// blocks the chain writer: clients that cannot keep up lose their
// connection, not the ledger its throughput.
type Hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[chan ledger.Entry]bool
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, clients: make(map[chan ledger.Entry]bool)}
}

// Publish delivers one committed entry to every connected client.
func (h *Hub) Publish(e ledger.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
			// Slow consumer; closing the channel ends its writer loop.
			delete(h.clients, ch)
			close(ch)
			h.log.Warn("dropping slow stream client")
		}
	}
}

func (h *Hub) subscribe() chan ledger.Entry {
	ch := make(chan ledger.Entry, clientBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = true
	return ch
}

func (h *Hub) unsubscribe(ch chan ledger.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[ch] {
		delete(h.clients, ch)
		close(ch)
	}
}

// Close disconnects every client. Publish becomes a no-op afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

// handleStream upgrades the connection and forwards every entry
// committed after the upgrade. Earlier history is the search API's
// job.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	// Reads only serve to notice the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(entry); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket write failed", zap.Error(err))
				}
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
