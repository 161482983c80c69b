package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionRecord is the JSON payload stored per session token.
type sessionRecord struct {
	UserID    int64     `json:"user_id"`
	OpenID    string    `json:"open_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisRegistry implements the session registry on Redis.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

func NewRedisRegistry(redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisRegistry{client: client, prefix: "session:"}, nil
}

// NewRedisRegistryWithClient creates a registry from an existing client.
func NewRedisRegistryWithClient(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: "session:"}
}

func (r *RedisRegistry) key(tokenHash string) string {
	return r.prefix + tokenHash
}

func (r *RedisRegistry) SaveSession(ctx context.Context, tokenHash string, id Identity, ttlSeconds int64) error {
	record := sessionRecord{
		UserID:    id.ID,
		OpenID:    id.OpenID,
		Name:      id.Name,
		Role:      id.Role,
		CreatedAt: time.Now(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}

	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if err := r.client.Set(ctx, r.key(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ResolveToken distinguishes an absent session (ErrInvalidCredential)
// from a Redis failure.
func (r *RedisRegistry) ResolveToken(ctx context.Context, tokenHash string) (Identity, error) {
	payload, err := r.client.Get(ctx, r.key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Identity{}, ErrInvalidCredential
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return Identity{}, fmt.Errorf("unmarshal session record: %w", err)
	}

	return Identity{
		ID:     record.UserID,
		OpenID: record.OpenID,
		Name:   record.Name,
		Role:   record.Role,
	}, nil
}

func (r *RedisRegistry) RevokeToken(ctx context.Context, tokenHash string) error {
	if err := r.client.Del(ctx, r.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
