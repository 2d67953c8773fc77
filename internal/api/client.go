package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"macropad/internal/protocol"
)

// Client follows a running device's /ws event stream and reconnects when the
// connection drops.
type Client struct {
	addr      string
	token     string
	reconnect time.Duration

	// OnMessage receives every event, starting with the status snapshot
	OnMessage func(protocol.Message)

	mu          sync.Mutex
	isConnected bool
}

// NewClient creates a client for a server at addr ("127.0.0.1:18090")
func NewClient(addr, token string) *Client {
	return &Client{
		addr:      addr,
		token:     token,
		reconnect: 5 * time.Second,
	}
}

// Run connects and reads events until ctx is cancelled
func (c *Client) Run(ctx context.Context) error {
	for {
		c.connect(ctx)

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnect):
			log.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *Client) connect(ctx context.Context) {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	log.Printf("WS Client: Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.setConnected(true)
	defer c.setConnected(false)
	log.Println("WS Client: Connected")

	// Unblock the read when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Printf("WS Client: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = v
}

// IsConnected returns true while the stream is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
