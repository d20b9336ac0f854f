package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/motiondeck/internal/lifecycle"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. A ping left unanswered for
	// writeWait closes the connection; idle readers are never timed out.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Outbound message types.
const (
	MessageCatalog      = "catalog"
	MessageCatalogError = "catalog_error"
	MessageRedirect     = "redirect"
	MessageCard         = "card"
	MessageError        = "error"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type       string              `json:"type"`
	Group      string              `json:"group,omitempty"`
	Variant    string              `json:"variant,omitempty"`
	Generation uint64              `json:"generation,omitempty"`
	Card       *lifecycle.Snapshot `json:"card,omitempty"`
	Error      string              `json:"error,omitempty"`
	Retry      bool                `json:"retry,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// ClientMessage is a card signal sent by the browser.
type ClientMessage struct {
	Type string `json:"type"` // "visible", "replay" or "unmount"
	ID   string `json:"id"`
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	hub       *Hub
}

type outbound struct {
	sessionID string // empty for every client
	data      []byte
}

// Hub fans messages out to WebSocket clients, either to all of them or to
// the clients of one session.
type Hub struct {
	clients    map[*Client]struct{}
	mu         sync.RWMutex
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	logger     logging.Logger
	metrics    *monitoring.ApplicationMetrics
	onMessage  func(ctx context.Context, sessionID string, msg ClientMessage) error
}

// NewHub creates a hub. onMessage handles inbound card signals.
func NewHub(logger logging.Logger, metrics *monitoring.ApplicationMetrics,
	onMessage func(ctx context.Context, sessionID string, msg ClientMessage) error) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.WithComponent("websocket"),
		metrics:    metrics,
		onMessage:  onMessage,
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client.
func (h *Hub) Broadcast(msg UpdateMessage) {
	h.enqueue("", msg)
}

// SendTo sends msg to the clients of one session.
func (h *Hub) SendTo(sessionID string, msg UpdateMessage) {
	h.enqueue(sessionID, msg)
}

func (h *Hub) enqueue(sessionID string, msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal message", "type", msg.Type)
		return
	}
	select {
	case h.broadcast <- outbound{sessionID: sessionID, data: data}:
	default:
		h.metrics.WebSocketMessage("dropped")
	}
}

// Run serves registrations and fan-out until ctx is done, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.WebSocketConnection("opened")
			h.logger.Debug(ctx, "Client connected", "session", client.sessionID, "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.WebSocketConnection("closed")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			var failed []*Client
			h.mu.RLock()
			for client := range h.clients {
				if msg.sessionID != "" && client.sessionID != msg.sessionID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client's send channel is full
					failed = append(failed, client)
				}
			}
			h.mu.RUnlock()

			if len(failed) > 0 {
				h.mu.Lock()
				for _, client := range failed {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
						client.conn.Close(websocket.StatusPolicyViolation, "client too slow")
						h.metrics.WebSocketConnection("error")
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.clients = make(map[*Client]struct{})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Validate origin before accepting connection
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	sess, ok := s.lookupSession(r)
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originHosts(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade error")
		return
	}

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: sess.ID,
		hub:       s.hub,
	}

	select {
	case s.hub.register <- client:
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	go client.writePump()
	client.readPump(s.runCtx())
}

// checkOrigin validates the request origin for security
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Reject connections without origin header for security
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	// Same-origin requests are always allowed.
	if originURL.Host == r.Host {
		return true
	}
	return s.isAllowedOrigin(origin)
}

// originHosts returns the hosts of the allowed origins for the WebSocket
// handshake.
func (s *Server) originHosts() []string {
	hosts := make([]string, 0, len(s.config.Server.AllowedOrigins))
	for _, origin := range s.config.Server.AllowedOrigins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// readPump pumps messages from the websocket connection
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-ctx.Done():
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.Read(ctx)

		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.hub.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(UpdateMessage{Type: MessageError, Error: "malformed message"})
			continue
		}
		c.hub.metrics.WebSocketMessage(msg.Type)
		if c.hub.onMessage == nil {
			continue
		}
		if err := c.hub.onMessage(ctx, c.sessionID, msg); err != nil {
			c.reply(UpdateMessage{Type: MessageError, Error: err.Error()})
		}
	}
}

// reply queues a message for this client only.
func (c *Client) reply(msg UpdateMessage) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump pumps messages to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
