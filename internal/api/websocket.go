package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"macropad/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The server only listens on localhost
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub handles WebSocket connections and broadcasting
type Hub struct {
	server     *Server
	clients    map[*wsClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *wsClient
	unregister chan *wsClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// wsClient is one connected event stream consumer
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newHub(s *Server) *Hub {
	return &Hub{
		server:     s,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan protocol.Message, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		shutdown:   make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.clientsMu.Unlock()
			log.Printf("WS: New client registered from %s. Total clients: %d", client.ip, n)
			h.sendStatus(client)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(h.clients))
			}
			h.clientsMu.Unlock()

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-h.shutdown:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}

// sendStatus queues a full snapshot for a new client
func (h *Hub) sendStatus(client *wsClient) {
	data, err := json.Marshal(protocol.Message{Type: protocol.TypeStatus, Payload: h.server.status()})
	if err != nil {
		log.Printf("WS: Failed to marshal status: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) broadcastMessage(message protocol.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Broadcast queues message for every connected client. It never blocks the caller;
// messages are dropped when the hub falls behind.
func (h *Hub) Broadcast(message protocol.Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Printf("WS: Dropping %s event, hub is busy", message.Type)
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump discards client messages and detects disconnects.
func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
