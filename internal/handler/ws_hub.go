package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ombima56/TranspaCharity/internal/domain"
	"github.com/ombima56/TranspaCharity/internal/metrics"
)

// ================================
// WEBSOCKET MESSAGE TYPES
// ================================

const (
	MessageTypeWalletState = "wallet_state"
	MessageTypeReload      = "reload"
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ================================
// WEBSOCKET CLIENT
// ================================

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("WebSocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ================================
// WEBSOCKET HUB
// ================================

// Hub fans wallet state snapshots and reload notices out to WebSocket
// clients. A new client is sent the latest snapshot first.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	lastMu sync.Mutex
	last   []byte

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.StreamClientOpened()

			h.lastMu.Lock()
			last := h.last
			h.lastMu.Unlock()
			if last != nil {
				client.Send <- last
			}
			h.logger.Debug("WebSocket client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// slow consumer
					delete(h.clients, client)
					close(client.Send)
					h.metrics.StreamClientClosed()
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
				h.metrics.StreamClientClosed()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Unregister removes c. It is safe to call after the hub stopped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		h.metrics.StreamClientClosed()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishState queues a wallet snapshot for every client. It can be
// registered directly as a broadcast listener.
func (h *Hub) PublishState(view WalletView) {
	data, err := encode(MessageTypeWalletState, view)
	if err != nil {
		h.logger.Error("Failed to encode wallet state", zap.Error(err))
		return
	}

	h.lastMu.Lock()
	h.last = data
	h.lastMu.Unlock()

	h.send(data)
}

// PublishReload tells clients the wallet switched chains and cached chain
// data must be dropped.
func (h *Hub) PublishReload(chainID int64) {
	data, err := encode(MessageTypeReload, map[string]interface{}{"chainId": chainID})
	if err != nil {
		h.logger.Error("Failed to encode reload notice", zap.Error(err))
		return
	}
	h.send(data)
}

func (h *Hub) send(data []byte) {
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.logger.Warn("WebSocket broadcast queue full, dropping message")
	}
}

func encode(kind string, data interface{}) ([]byte, error) {
	return json.Marshal(WebSocketMessage{
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// ================================
// HTTP HANDLER FOR WEBSOCKET
// ================================

// ServeWebSocket upgrades the request and streams wallet updates.
func (h *Hub) ServeWebSocket(upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:   uuid.NewString(),
			Conn: conn,
			Send: make(chan []byte, 256),
			Hub:  h,
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// WalletListener adapts the hub to a wallet state subscription.
func (h *Hub) WalletListener(status func() domain.SessionStatus) func(domain.WalletState) {
	return func(state domain.WalletState) {
		h.PublishState(NewWalletView(state, status()))
	}
}
