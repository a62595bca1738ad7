package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"
)

func (h *WebSocketHandler) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}

func (h *WebSocketHandler) checkRateLimit(clientIP string) bool {
	if !h.RateLimit.Enabled {
		return true
	}

	h.rateLimiterMu.RLock()
	limiter, exists := h.rateLimiters[clientIP]
	h.rateLimiterMu.RUnlock()

	if !exists {
		h.rateLimiterMu.Lock()
		limiter = &RateLimiter{
			connections: make(map[string]int),
		}
		h.rateLimiters[clientIP] = limiter
		h.rateLimiterMu.Unlock()
	}

	limiter.mu.RLock()
	connections := limiter.connections[clientIP]
	limiter.mu.RUnlock()

	return connections < h.RateLimit.ConnectionsPerIP
}

func (h *WebSocketHandler) updateConnectionCount(clientIP string, delta int) {
	h.rateLimiterMu.RLock()
	limiter, exists := h.rateLimiters[clientIP]
	h.rateLimiterMu.RUnlock()

	if !exists {
		return
	}

	limiter.mu.Lock()
	limiter.connections[clientIP] += delta
	if limiter.connections[clientIP] <= 0 {
		delete(limiter.connections, clientIP)
	}
	limiter.mu.Unlock()
}

// StartCleanup periodically prunes idle rate limiter entries.
func (h *WebSocketHandler) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.cleanupRateLimiters()
		}
	}
}

func (h *WebSocketHandler) cleanupRateLimiters() {
	h.rateLimiterMu.Lock()
	defer h.rateLimiterMu.Unlock()

	for ip, limiter := range h.rateLimiters {
		limiter.mu.Lock()
		if len(limiter.connections) == 0 {
			delete(h.rateLimiters, ip)
		}
		limiter.mu.Unlock()
	}
}
