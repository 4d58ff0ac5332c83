package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only listen, so
	// anything larger than a ping is suspect.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin validates the Origin header of a WebSocket upgrade.
// Requests without an Origin header (CLI clients, tests) are allowed;
// browser requests must match the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(ServerConfig.AllowedOrigins) == 0 {
		return true
	}
	if isOriginAllowed(origin, ServerConfig.AllowedOrigins) {
		return true
	}
	logging.SecurityEvent("websocket_origin_rejected", "api", "origin", origin)
	return false
}

// isOriginAllowed matches an origin against the allowed list. Entries
// may be exact origins, "*", or wildcard subdomains like
// "*.example.com" (which must match at a dot boundary).
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if strings.HasPrefix(a, "*.") && strings.HasSuffix(origin, a[1:]) {
			return true
		}
	}
	return false
}

// ProgressMessage is the wire format for live run updates pushed to
// WebSocket clients. Type is one of "run_started", "test_result",
// "run_completed", "run_error".
type ProgressMessage struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Translator string `json:"translator"`
	TestIndex  int    `json:"test_index,omitempty"`
	TestCount  int    `json:"test_count,omitempty"`
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// GlobalHub is the singleton hub instance, installed by Start.
var GlobalHub *Hub

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_connected", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logging.WebSocketEvent("client_disconnected", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logging.Error("marshal broadcast message failed", "error", err.Error())
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logging.Warn("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastRunStarted announces that a translator's tests are starting.
func BroadcastRunStarted(runID, translatorLabel string, testCount int) {
	if GlobalHub == nil {
		return
	}
	GlobalHub.Broadcast(ProgressMessage{
		Type:       "run_started",
		RunID:      runID,
		Translator: translatorLabel,
		TestCount:  testCount,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastTestResult announces one settled test.
func BroadcastTestResult(ev runner.Progress) {
	if GlobalHub == nil {
		return
	}
	GlobalHub.Broadcast(ProgressMessage{
		Type:       "test_result",
		RunID:      ev.RunID,
		Translator: ev.Translator.Label,
		TestIndex:  ev.Index,
		TestCount:  ev.Total,
		Status:     string(ev.Result.Status),
		Message:    ev.Result.Reason,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastRunCompleted announces a finished run with its pass count.
func BroadcastRunCompleted(rep *runner.Report) {
	if GlobalHub == nil {
		return
	}
	passed := 0
	for _, res := range rep.Results {
		if res.Status == runner.StatusSuccess {
			passed++
		}
	}
	GlobalHub.Broadcast(ProgressMessage{
		Type:       "run_completed",
		RunID:      rep.RunID,
		Translator: rep.Translator,
		TestCount:  len(rep.Results),
		Status:     string(rep.Status),
		Message:    fmt.Sprintf("%d/%d tests passed", passed, len(rep.Results)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// BroadcastRunError announces a run that could not complete.
func BroadcastRunError(runID, translatorLabel, message string) {
	if GlobalHub == nil {
		return
	}
	GlobalHub.Broadcast(ProgressMessage{
		Type:       "run_error",
		RunID:      runID,
		Translator: translatorLabel,
		Message:    message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// readPump pumps messages from the WebSocket connection to the hub.
// Clients are listeners, so inbound traffic is only read to detect
// disconnects and answer pings.
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
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket read error", "error", err.Error())
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any queued messages into the same frame batch.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// handleWebSocket handles GET /ws - WebSocket upgrade for live run
// progress.
func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if GlobalHub == nil {
		http.Error(w, "WebSocket hub not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	client := &Client{
		hub:  GlobalHub,
		conn: conn,
		send: make(chan []byte, 256),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
