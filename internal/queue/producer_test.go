package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProducer(t *testing.T) (Producer, *redis.Client) {
	t.Helper()
	mockRedis := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mockRedis.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewProducer(client), client
}

func TestEnqueue_JobIsImmediatelyDispatchable(t *testing.T) {
	producer, client := newTestProducer(t)

	job := Job{
		ID:        "job-1",
		Type:      JobTypeMessageNotification,
		Payload:   MustMarshal(map[string]string{"preview": "hello"}),
		Priority:  2,
		MaxRetry:  3,
		CreatedAt: time.Now().Unix(),
		ExpireAt:  time.Now().Add(5 * time.Minute).Unix(),
	}

	require.NoError(t, producer.Enqueue(context.Background(), job))

	// the worker pops with Max = now; a fresh job must fall inside that window
	now := float64(time.Now().Unix())
	result, err := client.ZRangeByScore(context.Background(), PriorityQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%f", now),
	}).Result()
	require.NoError(t, err)
	require.Len(t, result, 1)

	var popped Job
	require.NoError(t, json.Unmarshal([]byte(result[0]), &popped))
	assert.Equal(t, "job-1", popped.ID)
	assert.Equal(t, JobTypeMessageNotification, popped.Type)
}

func TestEnqueue_HigherPrioritySortsFirst(t *testing.T) {
	producer, client := newTestProducer(t)

	now := time.Now().Unix()
	low := Job{ID: "low", Type: JobTypeMessageNotification, Priority: 1, CreatedAt: now, ExpireAt: now + 300}
	high := Job{ID: "high", Type: JobTypeMessageNotification, Priority: 5, CreatedAt: now, ExpireAt: now + 300}

	require.NoError(t, producer.Enqueue(context.Background(), low))
	require.NoError(t, producer.Enqueue(context.Background(), high))

	result, err := client.ZRange(context.Background(), PriorityQueueKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, result, 2)

	var first Job
	require.NoError(t, json.Unmarshal([]byte(result[0]), &first))
	assert.Equal(t, "high", first.ID, "higher priority job sorts ahead of same-second peers")
}

func TestMustMarshal_RoundTrip(t *testing.T) {
	raw := MustMarshal(map[string]int{"count": 3})
	require.NotNil(t, raw)

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 3, decoded["count"])
}
