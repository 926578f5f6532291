// internal/repository/notification_cache.go
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

// KeyClaimer is a KeyValue that can also set a key only when it is absent
type KeyClaimer interface {
	KeyValue
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// RedisNotificationStore is the IPN log kept in Redis with a TTL. SETNX on the
// dedup key decides which of several concurrent deliveries gets processed.
type RedisNotificationStore struct {
	kv     KeyClaimer
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisNotificationStore(kv KeyClaimer, ttl time.Duration, logger *zap.Logger) *RedisNotificationStore {
	return &RedisNotificationStore{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record stores rec unless its dedup key is taken. A handle_failed record is
// reclaimed by exactly one later delivery, which takes over its id.
func (s *RedisNotificationStore) Record(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := s.recordKey(rec.DedupKey)
	created, err := s.kv.SetNX(ctx, key, data, s.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to record notification in redis: %w", err)
	}
	if created {
		if err := s.kv.Set(ctx, s.idKey(rec.ID), rec.DedupKey, s.ttl); err != nil {
			s.logger.Warn("failed to index notification record", zap.String("record_id", rec.ID), zap.Error(err))
		}
		return true, nil
	}

	existing, err := s.load(ctx, key)
	if err != nil || existing == nil || existing.Status != models.NotificationHandleFailed {
		return false, err
	}

	// one claim per failure: the failed record's id and update time name it
	retry := fmt.Sprintf("pesapal:ipn:retry:%s:%d", existing.ID, existing.UpdatedAt.UnixNano())
	claimed, err := s.kv.SetNX(ctx, retry, rec.ID, s.ttl)
	if err != nil || !claimed {
		return false, err
	}

	rec.ID = existing.ID
	rec.ReceivedAt = existing.ReceivedAt
	if err := s.save(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisNotificationStore) UpdateStatus(ctx context.Context, id string, status models.NotificationLogStatus, errMsg string) error {
	dedupKey, err := s.kv.Get(ctx, s.idKey(id))
	if errors.Is(err, redis.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read notification index: %w", err)
	}

	rec, err := s.load(ctx, s.recordKey(dedupKey))
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}

	rec.Status = status
	rec.Error = errMsg
	rec.UpdatedAt = s.now()
	return s.save(ctx, rec)
}

// Get returns the record with the given id, or nil when it is unknown or expired
func (s *RedisNotificationStore) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	dedupKey, err := s.kv.Get(ctx, s.idKey(id))
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.recordKey(dedupKey))
}

func (s *RedisNotificationStore) load(ctx context.Context, key string) (*models.NotificationRecord, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification from redis: %w", err)
	}

	var rec models.NotificationRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode notification record: %w", err)
	}
	return &rec, nil
}

func (s *RedisNotificationStore) save(ctx context.Context, rec *models.NotificationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := s.kv.Set(ctx, s.recordKey(rec.DedupKey), data, s.ttl); err != nil {
		return fmt.Errorf("failed to save notification in redis: %w", err)
	}
	return nil
}

func (s *RedisNotificationStore) recordKey(dedupKey string) string {
	return "pesapal:ipn:key:" + dedupKey
}

func (s *RedisNotificationStore) idKey(id string) string {
	return "pesapal:ipn:id:" + id
}
