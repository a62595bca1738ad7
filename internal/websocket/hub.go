package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Hub is the in-process room router: pure in-memory bookkeeping mapping
// rooms to sessions and users to sessions. Membership is rebuilt from
// scratch on every connection; nothing survives a disconnect.
type Hub struct {
	// room -> members, and the reverse index used to drop a client from
	// every room it joined when the connection dies
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
	mu          sync.RWMutex

	// userID -> connections (a user may have several tabs open)
	userClients map[string][]*Client
	userMu      sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	stats   HubStats
	statsMu sync.RWMutex

	cleanupTicker *time.Ticker
}

type HubStats struct {
	TotalRooms       int       `json:"total_rooms"`
	TotalClients     int       `json:"total_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessageSent      int64     `json:"message_sent"`
	LastReset        time.Time `json:"last_reset"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
		userClients: make(map[string][]*Client),
		ctx:         ctx,
		cancel:      cancel,
		stats: HubStats{
			LastReset: time.Now(),
		},
		cleanupTicker: time.NewTicker(1 * time.Minute),
	}

	go hub.cleanupRoutine()

	return hub
}

// Register tracks a new connection for user presence. Room membership is
// granted separately via Join; the caller starts the pumps.
func (h *Hub) Register(client *Client) {
	h.userMu.Lock()
	h.userClients[client.UserID] = append(h.userClients[client.UserID], client)
	h.userMu.Unlock()

	h.updateStats(func(stats *HubStats) {
		stats.TotalConnections++
	})

	log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Bool("admin", client.IsAdmin).Msg("ws: client registered")
}

// Join adds a client to a room, creating the room on first member.
func (h *Hub) Join(roomID string, client *Client) {
	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}

	if h.clientRooms[client] == nil {
		h.clientRooms[client] = make(map[string]struct{})
	}
	h.clientRooms[client][roomID] = struct{}{}
	roomSize := len(h.rooms[roomID])
	h.mu.Unlock()

	log.Info().Str("roomID", roomID).Str("clientID", client.ID).Int("roomSize", roomSize).Msg("ws: client joined room")
}

// Leave removes a client from a room; no-op if it never joined.
func (h *Hub) Leave(roomID string, client *Client) {
	h.mu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.clientRooms[client]; ok {
		delete(rooms, roomID)
	}
	h.mu.Unlock()

	log.Info().Str("roomID", roomID).Str("clientID", client.ID).Msg("ws: client left room")
}

// Unregister drops a client from every room and from user tracking.
// Called from the read pump when the connection terminates.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	for roomID := range h.clientRooms[client] {
		if clients, ok := h.rooms[roomID]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.clientRooms, client)
	h.mu.Unlock()

	h.userMu.Lock()
	userClients := h.userClients[client.UserID]
	for i, c := range userClients {
		if c == client {
			h.userClients[client.UserID] = append(userClients[:i], userClients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.UserID]) == 0 {
		delete(h.userClients, client.UserID)
	}
	h.userMu.Unlock()

	log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: client unregistered")
}

// BroadcastToRoom sends an event to all clients in a room.
func (h *Hub) BroadcastToRoom(roomID string, event OutgoingEvent) {
	h.broadcastToRoomInternal(roomID, event, nil)
}

// BroadcastToRoomExcept sends an event to all clients in a room except one.
func (h *Hub) BroadcastToRoomExcept(roomID string, event OutgoingEvent, except *Client) {
	h.broadcastToRoomInternal(roomID, event, except)
}

func (h *Hub) broadcastToRoomInternal(roomID string, event OutgoingEvent, except *Client) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	data, err := event.encode()
	if err != nil {
		log.Error().Err(err).Str("roomID", roomID).Msg("ws: failed to marshal broadcast event")
		return
	}

	// snapshot members to keep lock time minimal
	h.mu.RLock()
	var targets []*Client
	if clients, ok := h.rooms[roomID]; ok {
		targets = make([]*Client, 0, len(clients))
		for client := range clients {
			if except != nil && client == except {
				continue
			}
			if client.IsClientActive() {
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	for _, client := range targets {
		select {
		case client.Send <- data:
		case <-client.ctx.Done():
			// client is closing
		default:
			// slow consumer, drop the connection rather than block fan-out
			log.Warn().Str("roomID", roomID).Str("clientID", client.ID).Msg("ws: slow consumer, dropping message")
			go client.Close()
		}
	}

	h.updateStats(func(stats *HubStats) {
		stats.MessageSent += int64(len(targets))
	})

	log.Debug().Str("roomID", roomID).Int("targets", len(targets)).Str("event", event.Event).Msg("ws: broadcast completed")
}

// SendToClient delivers an event to a single session only. Used for error
// events on the send path, which no other session may observe.
func (h *Hub) SendToClient(client *Client, event OutgoingEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	data, err := event.encode()
	if err != nil {
		log.Error().Err(err).Str("clientID", client.ID).Msg("ws: failed to marshal client event")
		return
	}

	select {
	case client.Send <- data:
	case <-client.ctx.Done():
	default:
		log.Warn().Str("clientID", client.ID).Msg("ws: client buffer full")
	}
}

// GetRoomClients return all active clients in a room
func (h *Hub) GetRoomClients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var clients []*Client
	if roomClients, ok := h.rooms[roomID]; ok {
		for client := range roomClients {
			if client.IsClientActive() {
				clients = append(clients, client)
			}
		}
	}

	return clients
}

// GetUserClients returns all active clients for a user
func (h *Hub) GetUserClients(userID string) []*Client {
	h.userMu.RLock()
	defer h.userMu.RUnlock()

	var activeClients []*Client
	for _, client := range h.userClients[userID] {
		if client.IsClientActive() {
			activeClients = append(activeClients, client)
		}
	}

	return activeClients
}

// IsUserOnlineInRoom checks if a user has any active connections in a room
func (h *Hub) IsUserOnlineInRoom(roomID, userID string) bool {
	h.mu.RLock()
	roomClients, ok := h.rooms[roomID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	for client := range roomClients {
		if client.UserID == userID && client.IsClientActive() {
			return true
		}
	}

	return false
}

// GetRoomStats returns statistics for a room
func (h *Hub) GetRoomStats(roomID string) map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := map[string]interface{}{
		"room_id": roomID,
		"exists":  false,
	}

	if clients, ok := h.rooms[roomID]; ok {
		activeClients := 0
		uniqueUsers := make(map[string]bool)

		for client := range clients {
			if client.IsClientActive() {
				activeClients++
				uniqueUsers[client.UserID] = true
			}
		}

		stats["exists"] = true
		stats["total_connections"] = len(clients)
		stats["active_connections"] = activeClients
		stats["unique_users"] = len(uniqueUsers)
	}

	return stats
}

// GetHubStats returns overall hub statistics
func (h *Hub) GetHubStats() HubStats {
	h.mu.RLock()
	totalRooms := len(h.rooms)
	totalClients := 0
	for _, clients := range h.rooms {
		for client := range clients {
			if client.IsClientActive() {
				totalClients++
			}
		}
	}
	h.mu.RUnlock()

	h.statsMu.Lock()
	h.stats.TotalRooms = totalRooms
	h.stats.TotalClients = totalClients
	stats := h.stats
	h.statsMu.Unlock()

	return stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

func (h *Hub) cleanupRoutine() {
	defer h.cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.cleanupTicker.C:
			h.performCleanup()
		}
	}
}

func (h *Hub) performCleanup() {
	now := time.Now()
	inactiveThreshold := 2 * time.Minute

	var toRemove []*Client

	h.mu.RLock()
	for client := range h.clientRooms {
		if !client.IsClientActive() || now.Sub(client.GetLastSeen()) > inactiveThreshold {
			toRemove = append(toRemove, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range toRemove {
		log.Info().
			Str("clientID", client.ID).
			Msg("ws: cleaning up inactive client")
		client.Close()
	}

	log.Debug().Int("cleaned", len(toRemove)).Msg("ws: cleanup routine completed")
}

// Close gracefully shuts down the hub
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")

	h.cancel()

	h.mu.RLock()
	allClients := make([]*Client, 0, len(h.clientRooms))
	for client := range h.clientRooms {
		allClients = append(allClients, client)
	}
	h.mu.RUnlock()

	for _, client := range allClients {
		client.Close()
	}

	log.Info().Int("clients", len(allClients)).Msg("ws: hub shutdown completed")
}
