package interpreter

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub broadcasts readings to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	latest   func() *Reading

	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]bool
	// A websocket connection allows one writer at a time.
	writeMutex sync.Mutex
}

// NewHub creates a hub. latest, when not nil, provides the reading sent
// to a client as soon as it connects.
func NewHub(latest func() *Reading) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		latest:  latest,
		clients: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}
	h.AddWebSocketClient(conn)

	if h.latest != nil {
		if reading := h.latest(); reading != nil {
			h.writeMutex.Lock()
			err := conn.WriteMessage(websocket.TextMessage, reading.ToJsonBytes())
			h.writeMutex.Unlock()
			if err != nil {
				h.RemoveWebSocketClient(conn)
				return
			}
		}
	}

	// Keep the connection until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.RemoveWebSocketClient(conn)
			return
		}
	}
}

func (h *Hub) Broadcast(reading *Reading) {
	message := reading.ToJsonBytes()
	if message == nil {
		return
	}

	h.clientsMutex.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMutex.RUnlock()

	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.RemoveWebSocketClient(client)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) AddWebSocketClient(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	h.clients[conn] = true
	h.clientsMutex.Unlock()
}

func (h *Hub) RemoveWebSocketClient(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	delete(h.clients, conn)
	h.clientsMutex.Unlock()
	conn.Close()
}
