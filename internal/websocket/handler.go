package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict origins before exposing this outside the app domain
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RateLimitConfig struct {
	Enabled          bool
	ConnectionsPerIP int
	WindowSize       time.Duration
}

type RateLimiter struct {
	connections map[string]int
	mu          sync.RWMutex
}

// WebSocketHandler upgrades HTTP requests to chat sessions: authenticate,
// register with the hub, auto-join the personal room and (for admins) the
// admin-broadcast room. A failed handshake grants no room membership.
type WebSocketHandler struct {
	Hub     *Hub
	Gateway *Gateway

	MaxConnections int
	RateLimit      RateLimitConfig

	authenticator AuthenticatorFunc

	rateLimiters  map[string]*RateLimiter
	rateLimiterMu sync.RWMutex
}

func NewWebSocketHandler(hub *Hub, gateway *Gateway, authenticator AuthenticatorFunc) *WebSocketHandler {
	return &WebSocketHandler{
		Hub:            hub,
		Gateway:        gateway,
		MaxConnections: 10000,
		RateLimit: RateLimitConfig{
			Enabled:          true,
			ConnectionsPerIP: 20,
			WindowSize:       time.Minute,
		},
		authenticator: authenticator,
		rateLimiters:  make(map[string]*RateLimiter),
	}
}

func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticator(r)
	if err != nil {
		log.Warn().Err(err).Msg("ws: handshake authentication failed")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	clientIP := h.getClientIP(r)
	if !h.checkRateLimit(clientIP) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	stats := h.Hub.GetHubStats()
	if stats.TotalClients >= h.MaxConnections {
		http.Error(w, "server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	client := NewClient(identity.UserID, identity.Username, identity.IsAdmin, conn, h.Hub, h.Gateway)

	h.updateConnectionCount(clientIP, 1)
	h.Hub.Register(client)
	client.Start()

	// every session gets its personal room; privileged sessions also join
	// the admin-broadcast room
	h.Hub.Join(PersonalRoom(identity.UserID), client)
	if identity.IsAdmin {
		h.Hub.Join(AdminRoom, client)
	}

	go func() {
		<-client.ctx.Done()
		h.updateConnectionCount(clientIP, -1)
	}()
}
