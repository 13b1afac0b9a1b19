package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veriflow/internal/session"
	"veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

const redisKeyPrefix = "veriflow:snapshot:"

// RedisStore persists snapshots in Redis with a TTL matching the snapshot's
// retention deadline, so expiry needs no sweeper.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, snap *session.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ttl := snap.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, redisKeyPrefix+snap.SessionID.String(), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id domain.SessionID) (*session.Snapshot, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Expired(s.now()) {
		_ = s.client.Del(ctx, redisKeyPrefix+id.String()).Err()
		return nil, sentinel.ErrExpired
	}
	return &snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, id domain.SessionID) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
