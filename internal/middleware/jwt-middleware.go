package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	"github.com/retouchlab/support-chat/internal/utils"
	"github.com/retouchlab/support-chat/internal/utils/types"
)

type claimsKey string

const UserClaimsKey claimsKey = "userClaims"

func writeAppError(w http.ResponseWriter, appErr *app_error.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_ = appErr.JSON(w)
}

// ClaimsFromContext returns the verified claims placed by JWTAuth.
func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*utils.Claims)
	return claims, ok
}

func JWTAuth(publicKey *rsa.PublicKey, redis *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fp, ok := r.Context().Value(FingerprintKey).(string)
			if !ok || fp == "" {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Missing device fingerprint", "fingerprint"))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Missing Authorization header", "auth"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Invalid Authorization header format", "auth"))
				return
			}

			tokenStr := parts[1]

			claims, err := utils.ParseAndVerifySign(tokenStr, publicKey)
			if err != nil {
				log.Error().Err(err).Msg("jwt verify failed")
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Invalid or expired token", "auth"))
				return
			}

			// session must still be live in redis
			sessionKey := fmt.Sprintf("session:%s:%s", claims.Sub, fp)
			session, appErr := utils.GetCacheData[types.Session](r.Context(), redis, sessionKey)
			if appErr != nil || session == nil || session.Status != "valid" || session.ExpireAt < time.Now().Unix() {
				writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Session not found or revoked", "session"))
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the admin-facing chat surface. It must run after JWTAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeAppError(w, app_error.NewAppError(http.StatusUnauthorized, "Missing credentials", "auth"))
			return
		}

		if claims.Role != "admin" {
			writeAppError(w, app_error.NewAppError(http.StatusForbidden, "Admin role required", "role"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
