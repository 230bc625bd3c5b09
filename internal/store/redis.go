package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/quickfill/internal/autocomplete"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const keyPrefix = "quickfill"

// Redis stores windows and tokens as JSON values that expire after ttl.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	if pong != "PONG" {
		client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

func windowKey(key autocomplete.Key) string {
	return fmt.Sprintf("%s:window:%s:%s", keyPrefix, key.SessionID, key.DocumentID)
}

func tokenKey(sessionID string) string {
	return fmt.Sprintf("%s:token:%s", keyPrefix, sessionID)
}

func (r *Redis) GetWindow(ctx context.Context, key autocomplete.Key) (autocomplete.Window, bool, error) {
	var w autocomplete.Window
	ok, err := r.getJSON(ctx, windowKey(key), &w)
	return w, ok, err
}

func (r *Redis) PutWindow(ctx context.Context, key autocomplete.Key, w autocomplete.Window) error {
	return r.setJSON(ctx, windowKey(key), w)
}

func (r *Redis) DeleteWindow(ctx context.Context, key autocomplete.Key) error {
	if err := r.client.Del(ctx, windowKey(key)).Err(); err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	return nil
}

// GetToken returns nil when the session has no token.
func (r *Redis) GetToken(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	var tok oauth2.Token
	ok, err := r.getJSON(ctx, tokenKey(sessionID), &tok)
	if err != nil || !ok {
		return nil, err
	}
	return &tok, nil
}

func (r *Redis) PutToken(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	return r.setJSON(ctx, tokenKey(sessionID), tok)
}

// DeleteSession drops the session's token and all of its windows.
func (r *Redis) DeleteSession(ctx context.Context, sessionID string) error {
	keys := []string{tokenKey(sessionID)}
	pattern := fmt.Sprintf("%s:window:%s:*", keyPrefix, sessionID)
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan session windows: %w", err)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Redis) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
