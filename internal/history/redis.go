// ABOUTME: History backed by a Redis list per session
// ABOUTME: Lists are trimmed to a maximum length and expire after a TTL

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "merti:history:"

// RedisHistory keeps recent turns in Redis.
type RedisHistory struct {
	rdb         redis.UniversalClient
	ttl         time.Duration
	maxMessages int
}

// NewRedisHistory wraps an existing client.
func NewRedisHistory(rdb redis.UniversalClient, ttl time.Duration, maxMessages int) *RedisHistory {
	return &RedisHistory{rdb: rdb, ttl: ttl, maxMessages: maxMessages}
}

// DialRedis parses url, connects and pings.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Append pushes turn, trims the list and refreshes its expiry in one pipeline.
func (h *RedisHistory) Append(ctx context.Context, sessionID string, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}

	key := sessionKey(sessionID)
	_, err = h.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if h.maxMessages > 0 {
			pipe.LTrim(ctx, key, int64(-h.maxMessages), -1)
		}
		if h.ttl > 0 {
			pipe.Expire(ctx, key, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving turn: %w", err)
	}
	return nil
}

// List returns the stored turns for sessionID, oldest first. A missing key
// yields an empty list.
func (h *RedisHistory) List(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := h.rdb.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err == redis.Nil {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decoding turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
