package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"msgclf/internal/session"
)

const writeWait = 10 * time.Second

// wsClient is one browser connection. Writes are serialized per connection.
type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	writeMu   sync.Mutex
}

func (c *wsClient) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// hub fans session counters out to the connections of the same session.
type hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	metrics MetricsInterface
}

func newHub(m MetricsInterface) *hub {
	return &hub{clients: make(map[*wsClient]struct{}), metrics: m}
}

func (h *hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients().Add(1)
	}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		if h.metrics != nil {
			h.metrics.WSClients().Add(-1)
		}
	}
}

// broadcast sends counts to every connection of sessionID. Connections that
// fail to write are dropped.
func (h *hub) broadcast(sessionID string, counts session.Counts) {
	data, err := json.Marshal(counts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal stats for broadcast")
		return
	}

	h.mu.RLock()
	var targets []*wsClient
	for c := range h.clients {
		if c.sessionID == sessionID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(data); err != nil {
			log.Debug().Err(err).Msg("Dropping WebSocket client")
			h.remove(c)
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.RLock()
	all := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.remove(c)
	}
}

// handleWebSocket streams the caller's session counters after every change.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	stats, sid := s.session(w, r)

	conn, err := upgrader.Upgrade(w, r, w.Header())
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &wsClient{conn: conn, sessionID: sid}
	s.hub.add(client)
	defer s.hub.remove(client)

	if data, err := json.Marshal(stats.Snapshot()); err == nil {
		if err := client.send(data); err != nil {
			return
		}
	}

	// Keep connection alive until the browser goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
