package websocket

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retouchlab/support-chat/internal/entity"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/internal/utils"
	"github.com/retouchlab/support-chat/internal/utils/types"
)

func newAuthFixture(t *testing.T) (AuthenticatorFunc, *redis.Client, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mockRedis := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mockRedis.Addr()})
	t.Cleanup(func() { client.Close() })

	return JWTWebSocketAuth(&key.PublicKey, client), client, key
}

func seedSession(t *testing.T, client *redis.Client, userID, fingerprint, status string, expireAt int64) {
	t.Helper()
	session := types.Session{
		UserId:      userID,
		Fingerprint: fingerprint,
		Role:        entity.RoleUser,
		IssueAt:     time.Now().Unix(),
		ExpireAt:    expireAt,
		Status:      status,
	}
	key := fmt.Sprintf("session:%s:%s", userID, fingerprint)
	require.NoError(t, utils.SetCacheData(context.Background(), client, key, &session, time.Hour))
}

func authAttempt(t *testing.T, authenticate AuthenticatorFunc, token, fingerprint string) (*Identity, error) {
	t.Helper()
	r := httptest.NewRequest("GET", "/ws/chat", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	ctx := context.WithValue(r.Context(), middleware.FingerprintKey, fingerprint)
	return authenticate(r.WithContext(ctx))
}

func TestJWTWebSocketAuth_ValidSessionPasses(t *testing.T) {
	authenticate, client, key := newAuthFixture(t)

	token, err := utils.IssueToken("u1", "ana", entity.RoleUser, key)
	require.NoError(t, err)
	seedSession(t, client, "u1", "fp-1", "valid", time.Now().Add(time.Hour).Unix())

	identity, authErr := authAttempt(t, authenticate, token, "fp-1")
	require.NoError(t, authErr)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "ana", identity.Username)
	assert.False(t, identity.IsAdmin)
}

func TestJWTWebSocketAuth_RevokedSessionIsRejected(t *testing.T) {
	authenticate, client, key := newAuthFixture(t)

	token, err := utils.IssueToken("u1", "ana", entity.RoleUser, key)
	require.NoError(t, err)
	// the key is still in redis, but logout flipped the status
	seedSession(t, client, "u1", "fp-1", "revoked", time.Now().Add(time.Hour).Unix())

	identity, authErr := authAttempt(t, authenticate, token, "fp-1")
	assert.Nil(t, identity)
	require.Error(t, authErr)
	assert.Contains(t, authErr.Error(), "revoked")
}

func TestJWTWebSocketAuth_ExpiredSessionIsRejected(t *testing.T) {
	authenticate, client, key := newAuthFixture(t)

	token, err := utils.IssueToken("u1", "ana", entity.RoleUser, key)
	require.NoError(t, err)
	seedSession(t, client, "u1", "fp-1", "valid", time.Now().Add(-time.Minute).Unix())

	identity, authErr := authAttempt(t, authenticate, token, "fp-1")
	assert.Nil(t, identity)
	require.Error(t, authErr)
}

func TestJWTWebSocketAuth_MissingSessionIsRejected(t *testing.T) {
	authenticate, _, key := newAuthFixture(t)

	token, err := utils.IssueToken("u1", "ana", entity.RoleUser, key)
	require.NoError(t, err)

	identity, authErr := authAttempt(t, authenticate, token, "fp-1")
	assert.Nil(t, identity)
	require.Error(t, authErr)
}

func TestJWTWebSocketAuth_MissingFingerprintIsRejected(t *testing.T) {
	authenticate, client, key := newAuthFixture(t)

	token, err := utils.IssueToken("u1", "ana", entity.RoleUser, key)
	require.NoError(t, err)
	seedSession(t, client, "u1", "fp-1", "valid", time.Now().Add(time.Hour).Unix())

	r := httptest.NewRequest("GET", "/ws/chat", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	identity, authErr := authenticate(r)
	assert.Nil(t, identity)
	require.Error(t, authErr)
	assert.Contains(t, authErr.Error(), "fingerprint")
}
