// ABOUTME: Tests for both History implementations
// ABOUTME: Redis tests run only when MERTI_TEST_REDIS_URL points at a server

package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/merti-gateway/internal/store"
)

func exerciseHistory(t *testing.T, h History) {
	t.Helper()
	ctx := context.Background()
	session := "session_" + uuid.NewString()

	empty, err := h.List(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, empty)

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.Append(ctx, session, Turn{Role: store.RoleUser, Content: "When is bin day?", CreatedAt: at}))
	require.NoError(t, h.Append(ctx, session, Turn{Role: store.RoleAssistant, Content: "Tuesday.", CreatedAt: at}))
	require.NoError(t, h.Append(ctx, session, Turn{Role: store.RoleUser, Content: "Thanks", ImageURL: "https://img/x.png", CreatedAt: at.Add(time.Second)}))

	turns, err := h.List(ctx, session)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "When is bin day?", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
	assert.Equal(t, "https://img/x.png", turns[2].ImageURL)

	other, err := h.List(ctx, "session_"+uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStoreHistory_SQLite(t *testing.T) {
	s, err := store.NewSQLiteStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exerciseHistory(t, NewStoreHistory(s, 0))
}

func TestStoreHistory_Mock(t *testing.T) {
	exerciseHistory(t, NewStoreHistory(store.NewMockStore(), 0))
}

func TestStoreHistory_Limit(t *testing.T) {
	h := NewStoreHistory(store.NewMockStore(), 2)
	ctx := context.Background()
	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, "s", Turn{Role: store.RoleUser, Content: c}))
	}

	turns, err := h.List(ctx, "s")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[0].Content)
}

func TestStoreHistory_InvalidRole(t *testing.T) {
	h := NewStoreHistory(store.NewMockStore(), 0)
	err := h.Append(context.Background(), "s", Turn{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func redisHistory(t *testing.T, ttl time.Duration, maxMessages int) *RedisHistory {
	t.Helper()
	url := os.Getenv("MERTI_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MERTI_TEST_REDIS_URL not set")
	}

	rdb, err := DialRedis(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return NewRedisHistory(rdb, ttl, maxMessages)
}

func TestRedisHistory(t *testing.T) {
	exerciseHistory(t, redisHistory(t, time.Minute, 50))
}

func TestRedisHistory_TrimAndTTL(t *testing.T) {
	h := redisHistory(t, time.Minute, 2)
	ctx := context.Background()
	session := "session_" + uuid.NewString()

	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, h.Append(ctx, session, Turn{Role: store.RoleUser, Content: c}))
	}

	turns, err := h.List(ctx, session)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "b", turns[0].Content)
	assert.False(t, turns[0].CreatedAt.IsZero())

	ttl, err := h.rdb.TTL(ctx, sessionKey(session)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestDialRedis_BadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
