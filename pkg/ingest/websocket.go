package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ecotrack-io/wastetrack/pkg/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// No Origin header = direct connection (non-browser clients like curl, testing tools)
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// AggregateUpdate is the message pushed to dashboard sockets after a
// mutation lands: which tenant and which buckets changed.
type AggregateUpdate struct {
	ClientID string   `json:"clientId"`
	Days     []string `json:"days,omitempty"`
	Months   []string `json:"months,omitempty"`
	At       int64    `json:"at"`
}

// subscription pairs a socket with the tenant it watches. An empty tenant
// id subscribes to updates for every tenant (operator dashboards).
type subscription struct {
	conn     *websocket.Conn
	clientID string
}

// DashboardHub manages WebSocket connections for live aggregate updates.
// Each socket may subscribe to a single tenant; updates for other tenants
// are not delivered to it.
type DashboardHub struct {
	// conn -> subscribed tenant id, "" for all tenants
	clients map[*websocket.Conn]string

	// Register requests from clients
	register chan subscription

	// Unregister requests from clients
	unregister chan *websocket.Conn

	// Broadcast channel for aggregate change notifications
	broadcast chan AggregateUpdate

	mu sync.RWMutex
}

// NewDashboardHub creates a new WebSocket hub
func NewDashboardHub() *DashboardHub {
	return &DashboardHub{
		clients:    make(map[*websocket.Conn]string),
		register:   make(chan subscription, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan AggregateUpdate, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop
func (h *DashboardHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Close all client connections on shutdown
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.mu.Lock()
			h.clients[sub.conn] = sub.clientID
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (tenant: %q, total: %d)", sub.clientID, count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)
		case update := <-h.broadcast:
			message, err := json.Marshal(update)
			if err != nil {
				log.Printf("WebSocket marshal error: %v", err)
				continue
			}
			// Failed connections are dropped inline; routing them back
			// through unregister would block once its buffer fills, and
			// this loop is the only consumer.
			h.mu.Lock()
			for conn, watched := range h.clients {
				if watched != "" && watched != update.ClientID {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					delete(h.clients, conn)
					conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an update for delivery to subscribed clients
func (h *DashboardHub) Broadcast(update AggregateUpdate) error {
	select {
	case h.broadcast <- update:
		return nil
	default:
		// Channel full, drop message to prevent blocking
		log.Printf("Broadcast channel full, dropping message")
		return nil
	}
}

// HasClients returns true if there are any connected WebSocket clients
func (h *DashboardHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(hub *DashboardHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade HTTP connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		// Register the new client, optionally scoped to one tenant
		hub.register <- subscription{conn: conn, clientID: r.URL.Query().Get("client_id")}

		// Create context for managing goroutine lifecycle
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Start ping sender to keep connection alive
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// Read loop handles ping/pong and detects connection close
		defer func() {
			cancel() // Signal ping goroutine to stop
			hub.unregister <- conn
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read messages (mostly for handling control frames)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}
}
