package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakura-lang/sakura/internal/logging"
)

// WebSocketObserver broadcasts Events to connected WebSocket clients
// through a Hub.
type WebSocketObserver struct {
	name   string
	filter EventFilter
	logger *logging.Logger
	hub    *Hub
}

// WebSocketObserverOption configures a WebSocketObserver.
type WebSocketObserverOption func(*WebSocketObserver)

// WithWebSocketFilter sets the observer's event filter.
func WithWebSocketFilter(filter EventFilter) WebSocketObserverOption {
	return func(o *WebSocketObserver) { o.filter = filter }
}

// WithWebSocketLogger sets the observer's logger.
func WithWebSocketLogger(l *logging.Logger) WebSocketObserverOption {
	return func(o *WebSocketObserver) { o.logger = l }
}

// NewWebSocketObserver builds an observer broadcasting through hub.
func NewWebSocketObserver(hub *Hub, opts ...WebSocketObserverOption) *WebSocketObserver {
	obs := &WebSocketObserver{name: "websocket", hub: hub}
	for _, opt := range opts {
		opt(obs)
	}
	return obs
}

// Name implements Observer.
func (o *WebSocketObserver) Name() string { return o.name }

// Filter implements Observer.
func (o *WebSocketObserver) Filter() EventFilter { return o.filter }

// OnEvent implements Observer: marshal and broadcast to clients watching
// this execution.
func (o *WebSocketObserver) OnEvent(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		if o.logger != nil {
			o.logger.Error("failed to marshal stream event", "error", err, "event_type", string(event.Type))
		}
		return fmt.Errorf("marshal event: %w", err)
	}
	o.hub.BroadcastToExecution(event.ExecutionID, data)
	return nil
}

// Hub manages WebSocket connections and broadcasting.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *logging.Logger
	mu         sync.RWMutex
}

// NewHub creates a Hub and starts its run loop in the background.
func NewHub(logger *logging.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast sends message to every connected client.
func (h *Hub) Broadcast(message []byte) { h.broadcast <- message }

// BroadcastToExecution sends message to clients with no execution filter
// or matching executionID.
func (h *Hub) BroadcastToExecution(executionID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.executionID == "" || client.executionID == executionID {
			select {
			case client.send <- message:
			default:
				if h.logger != nil {
					h.logger.Warn("websocket client send buffer full, skipping message", "client_id", client.ID)
				}
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is a single connected WebSocket client.
type Client struct {
	ID          string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	executionID string
}

// NewClient wraps conn as a hub-managed client scoped to executionID
// (empty means "all executions").
func NewClient(id string, conn *websocket.Conn, hub *Hub, executionID string) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan []byte, 256),
		hub:         hub,
		executionID: executionID,
	}
}

// ReadPump discards inbound client frames but keeps the read deadline
// alive via pong handling, unregistering the client once the connection
// closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// WritePump drains queued events to the connection, pinging idle
// connections to keep them alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
