package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/oamanage-auth/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const keyPrefix = "oamanage:session:"

// RedisRepo stores snapshots as JSON with a TTL matching the snapshot expiry.
type RedisRepo struct {
	client redis.UniversalClient
}

func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{client: client}
}

// NewRedisClient connects to a single redis node and verifies it responds.
func NewRedisClient(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func SessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *RedisRepo) Create(ctx context.Context, snapshot Snapshot) (string, error) {
	ttl := time.Until(snapshot.ExpiresAt)
	if snapshot.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return "", fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	sessionID := uuid.New().String()
	if err := r.client.Set(ctx, SessionKey(sessionID), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session in redis: %w", err)
	}
	return sessionID, nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		return nil, errors.ErrSessionNotFound
	}

	data, err := r.client.Get(ctx, SessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session from redis: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisRepo) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, SessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
