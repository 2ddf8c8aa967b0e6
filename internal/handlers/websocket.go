package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/search"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Outbound messages buffered per client before it is dropped
	sendBuffer = 64
)

// Message types exchanged over the socket
const (
	MsgWelcome        = "welcome"
	MsgView           = "view"
	MsgCatalogChanged = "catalog_changed"
	MsgAnalytics      = "analytics"
	MsgError          = "error"

	MsgQuery   = "query"
	MsgRarity  = "rarity"
	MsgActive  = "active"
	MsgPage    = "page"
	MsgGetView = "get_view"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins (for development)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WelcomePayload is sent once after the upgrade
type WelcomePayload struct {
	ClientID string      `json:"client_id"`
	View     models.Page `json:"view"`
}

// CatalogChangedPayload announces a new snapshot
type CatalogChangedPayload struct {
	Version   uint64    `json:"version"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotSource provides the snapshot new clients start from
type SnapshotSource interface {
	Snapshot() *models.Snapshot
}

// Client represents a WebSocket client connection. Each client owns a live
// view of the catalog.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	view *search.QueryView

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Messages for every client
	broadcast chan []byte

	// Snapshots to push into every client's view
	snapshots chan *models.Snapshot

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	catalog  SnapshotSource
	pageSize int
	debounce time.Duration

	// last catalog version announced, owned by Run
	lastVersion uint64

	done chan struct{}
}

// NewHub creates a new hub. Client views page pageSize records and debounce
// query text by debounce.
func NewHub(catalog SnapshotSource, pageSize int, debounce time.Duration) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		snapshots:  make(chan *models.Snapshot, 4),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		catalog:    catalog,
		pageSize:   pageSize,
		debounce:   debounce,
		done:       make(chan struct{}),
	}
}

// Run starts the hub. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			client.close()
			delete(h.clients, client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			// a snapshot may have been published between view creation and registration
			if snap := h.catalog.Snapshot(); snap != nil && snap.Version > client.view.Current().Version {
				client.view.OnCatalogChanged(snap)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
		case snap := <-h.snapshots:
			if snap == nil || snap.Version <= h.lastVersion {
				log.Debug().Msg("skipping out of order catalog snapshot")
				continue
			}
			h.lastVersion = snap.Version
			for client := range h.clients {
				client.view.OnCatalogChanged(snap)
			}
			h.fanOut(encodeMessage(MsgCatalogChanged, CatalogChangedPayload{
				Version:   snap.Version,
				Count:     snap.Len(),
				FetchedAt: snap.FetchedAt,
			}))
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// fanOut delivers message to every client, dropping the ones that cannot keep up
func (h *Hub) fanOut(message []byte) {
	if message == nil {
		return
	}
	for client := range h.clients {
		if !client.enqueue(message) {
			log.Warn().Str("client_id", client.id).Msg("dropping slow websocket client")
			client.close()
			delete(h.clients, client)
		}
	}
}

// CatalogChanged pushes a new snapshot to every client. It is meant to be
// registered with the catalog store's OnChange.
func (h *Hub) CatalogChanged(snap *models.Snapshot) {
	select {
	case h.snapshots <- snap:
	case <-h.done:
	}
}

// AnalyticsUpdated broadcasts fresh marketplace stats
func (h *Hub) AnalyticsUpdated(stats models.MarketStats) {
	h.Broadcast(MsgAnalytics, stats)
}

// Broadcast sends a typed message to every client
func (h *Hub) Broadcast(msgType string, payload any) {
	message := encodeMessage(msgType, payload)
	if message == nil {
		return
	}
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func encodeMessage(msgType string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("error marshalling websocket payload")
		return nil
	}
	message, err := json.Marshal(WebSocketMessage{Type: msgType, Payload: raw})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("error marshalling websocket message")
		return nil
	}
	return message
}

// enqueue queues a message for the write pump. It reports false when the
// client is closed or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) sendMessage(msgType string, payload any) {
	if message := encodeMessage(msgType, payload); message != nil {
		if !c.enqueue(message) {
			log.Debug().Str("client_id", c.id).Str("type", msgType).Msg("websocket message not delivered")
		}
	}
}

func (c *Client) sendError(msg string) {
	c.sendMessage(MsgError, map[string]string{"message": msg})
}

// close stops the client's view and ends its write pump
func (c *Client) close() {
	c.view.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// handle applies one inbound message to the client's view
func (c *Client) handle(wsMessage WebSocketMessage) {
	switch wsMessage.Type {
	case MsgQuery:
		var q string
		if err := json.Unmarshal(wsMessage.Payload, &q); err != nil {
			c.sendError("query payload must be a string")
			return
		}
		c.view.SetQuery(strings.TrimSpace(q))

	case MsgRarity:
		var r uint8
		err := json.Unmarshal(wsMessage.Payload, &r)
		rarity := models.Rarity(r)
		if err != nil || (rarity != models.RarityAll && !rarity.Valid()) {
			c.sendError("rarity payload must be 0 (all) or a tier from 1 to 4")
			return
		}
		c.view.SetRarity(rarity)

	case MsgActive:
		var active bool
		if err := json.Unmarshal(wsMessage.Payload, &active); err != nil {
			c.sendError("active payload must be a boolean")
			return
		}
		c.view.SetActiveOnly(active)

	case MsgPage:
		var page int
		if err := json.Unmarshal(wsMessage.Payload, &page); err != nil {
			c.sendError("page payload must be a number")
			return
		}
		c.view.SetPage(page)

	case MsgGetView:
		c.sendMessage(MsgView, c.view.Current())

	default:
		c.sendError("unknown message type " + wsMessage.Type)
	}
}

// readPump pumps messages from the WebSocket connection to the client's view
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("websocket read failed")
			}
			break
		}

		var wsMessage WebSocketMessage
		if err := json.Unmarshal(message, &wsMessage); err != nil {
			log.Debug().Err(err).Str("client_id", c.id).Msg("error parsing websocket message")
			c.sendError("message must be a JSON object with a type")
			continue
		}
		c.safeHandle(wsMessage)
	}
}

// safeHandle keeps a failing message from taking the process down with the read pump
func (c *Client) safeHandle(wsMessage WebSocketMessage) {
	defer func() {
		if err := recover(); err != nil {
			log.Error().
				Str("client_id", c.id).
				Str("type", wsMessage.Type).
				Str("panic", fmt.Sprintf("%v", err)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic while handling websocket message")
			c.sendError("internal error")
		}
	}()
	c.handle(wsMessage)
}

// writePump pumps messages from the hub to the WebSocket connection
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
				// The hub closed the channel
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

// ServeWs handles WebSocket requests from clients
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			hub:  hub,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		client.view = search.NewQueryView(hub.catalog.Snapshot(), hub.pageSize, hub.debounce, func(page models.Page) {
			client.sendMessage(MsgView, page)
		})

		// Send welcome message before registration so it is the first frame
		client.sendMessage(MsgWelcome, WelcomePayload{ClientID: client.id, View: client.view.Current()})

		select {
		case hub.register <- client:
		case <-hub.done:
			client.close()
			conn.Close()
			return
		}
		log.Debug().Str("client_id", client.id).Msg("websocket client connected")

		// Allow collection of memory referenced by the caller by doing all work in
		// new goroutines
		go client.writePump()
		go client.readPump()
	}
}
