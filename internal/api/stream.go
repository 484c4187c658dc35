package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket clients connected to the opportunity-stream
// dashboard (spec.md §12.5): every newly registered client is caught up
// with a full DashboardSnapshot, then every ArbitrageOpportunity the
// service emits is pushed to all of them as it's detected.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	opps       chan OpportunityView
	mu         sync.RWMutex
	logger     *slog.Logger
	snapshotFn func() DashboardSnapshot
	broadcasts uint64
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new dashboard Hub. snapshotFn builds the current
// DashboardSnapshot on demand and is called once per client, right after
// that client registers, so every connection starts caught up.
func NewHub(logger *slog.Logger, snapshotFn func() DashboardSnapshot) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		opps:       make(chan OpportunityView, 256),
		logger:     logger.With("component", "ws-hub"),
		snapshotFn: snapshotFn,
	}
}

// Run starts the hub's main loop (should be called in a goroutine).
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "count", len(h.clients))
			if h.snapshotFn != nil {
				h.sendTo(client, NewSnapshotEvent(h.snapshotFn()))
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case opp := <-h.opps:
			h.broadcasts++
			h.broadcastAll(NewOpportunityEvent(opp))
		}
	}
}

// BroadcastOpportunity queues a freshly detected opportunity for delivery
// to every connected client. Non-blocking: a saturated queue (no dashboard
// client is reading fast enough) drops the opportunity rather than stall
// the caller's detection loop.
func (h *Hub) BroadcastOpportunity(opp OpportunityView) {
	select {
	case h.opps <- opp:
	default:
		h.logger.Warn("opportunity broadcast queue full, dropping", "strategy", opp.Strategy)
	}
}

// Broadcasts reports how many opportunities the hub has pushed to clients,
// for /health or log sampling.
func (h *Hub) Broadcasts() uint64 { return h.broadcasts }

func (h *Hub) broadcastAll(evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", evt.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client can't keep up, close it.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) sendTo(c *Client, evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal initial event", "type", evt.Type, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to client")
	}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the websocket connection to the hub. The
// dashboard is read-only: client messages are drained and discarded, only
// pings/closes matter.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
	}
}

// NewClient registers a connection with hub and starts its read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return client
}
