package websocket

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/retouchlab/support-chat/internal/entity"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/internal/utils"
	"github.com/retouchlab/support-chat/internal/utils/types"
)

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Identity is what the handshake yields: who the session belongs to and
// whether it gets the admin-broadcast room.
type Identity struct {
	UserID   string
	Username string
	IsAdmin  bool
}

type AuthenticatorFunc func(r *http.Request) (*Identity, error)

func JWTWebSocketAuth(publicKey *rsa.PublicKey, redis *redis.Client) AuthenticatorFunc {
	return func(r *http.Request) (*Identity, error) {
		fp, ok := r.Context().Value(middleware.FingerprintKey).(string)
		if !ok || fp == "" {
			return nil, &AuthError{Message: "missing device fingerprint"}
		}

		token := getTokenFromRequest(r)

		claims, err := utils.ParseAndVerifySign(token, publicKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				// no cookie refresh during a ws handshake; client must refresh
				// over HTTP and reconnect
				return nil, &AuthError{Message: "token expired, please refresh and reconnect"}
			}
			return nil, &AuthError{Message: "invalid token"}
		}

		// same liveness rules as the HTTP middleware: present, valid and
		// unexpired; a revoked-but-lingering key must not pass the handshake
		sessionKey := fmt.Sprintf("session:%s:%s", claims.Sub, fp)
		ctx := context.Background()

		session, appErr := utils.GetCacheData[types.Session](ctx, redis, sessionKey)
		if appErr != nil || session == nil || session.Status != "valid" || session.ExpireAt < time.Now().Unix() {
			return nil, &AuthError{Message: "session not found or revoked"}
		}

		return &Identity{
			UserID:   claims.Sub,
			Username: claims.Username,
			IsAdmin:  claims.Role == entity.RoleAdmin,
		}, nil
	}
}

func getTokenFromRequest(r *http.Request) string {
	// Option 1: Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Option 2: Query parameter
	token := r.URL.Query().Get("token")
	if token != "" {
		return token
	}

	// Option 3: Cookie
	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
