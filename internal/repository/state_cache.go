// internal/repository/state_cache.go
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pesapal-proxy/internal/models"
	"pesapal-proxy/pkg/redis"
)

// KeyValue is the part of the Redis client the state cache needs
type KeyValue interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Store is what the cache sits in front of
type Store interface {
	Get(ctx context.Context, trackingID string) (*models.OrderState, error)
	Save(ctx context.Context, state *models.OrderState) error
}

// RedisStateStore keeps observed states in Redis. With a backing store it is a
// write-through cache; without one Redis is the only copy.
type RedisStateStore struct {
	kv     KeyValue
	next   Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisStateStore(kv KeyValue, next Store, ttl time.Duration, logger *zap.Logger) *RedisStateStore {
	return &RedisStateStore{kv: kv, next: next, ttl: ttl, logger: logger}
}

func (s *RedisStateStore) Get(ctx context.Context, trackingID string) (*models.OrderState, error) {
	key := s.cacheKey(trackingID)

	data, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		var state models.OrderState
		if err := json.Unmarshal([]byte(data), &state); err == nil {
			return &state, nil
		}
		s.logger.Warn("discarding unreadable cached state", zap.String("key", key))
	case !errors.Is(err, redis.ErrNotFound):
		if s.next == nil {
			return nil, fmt.Errorf("failed to read state from redis: %w", err)
		}
		s.logger.Warn("redis read failed, using backing store", zap.String("key", key), zap.Error(err))
	}

	if s.next == nil {
		return nil, nil
	}

	state, err := s.next.Get(ctx, trackingID)
	if err != nil || state == nil {
		return state, err
	}
	s.cache(ctx, state)
	return state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, state *models.OrderState) error {
	if s.next != nil {
		if err := s.next.Save(ctx, state); err != nil {
			return err
		}
		s.cache(ctx, state)
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return s.kv.Set(ctx, s.cacheKey(state.TrackingID), data, s.ttl)
}

func (s *RedisStateStore) cache(ctx context.Context, state *models.OrderState) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, s.cacheKey(state.TrackingID), data, s.ttl); err != nil {
		s.logger.Warn("failed to cache state in redis",
			zap.String("order_tracking_id", state.TrackingID),
			zap.Error(err))
	}
}

func (s *RedisStateStore) cacheKey(trackingID string) string {
	return fmt.Sprintf("pesapal:order:%s", trackingID)
}
