package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

const redisKeyPrefix = "authclient:session:"

// Redis stores the session under a single key, so that several processes
// acting for the same user share it. The key expires with the refresh
// token's lifetime.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithTTL sets the key expiry. Zero keeps the key until deleted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// NewRedis returns a store keyed by name, usually the profile or email
// address the session belongs to.
func NewRedis(client *redis.Client, name string, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		key:    redisKeyPrefix + name,
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Load(ctx context.Context) (*authsdk.StoredSession, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, authsdk.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s authsdk.StoredSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *Redis) Save(ctx context.Context, s authsdk.StoredSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
