package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pesapal-proxy/internal/models"
)

func TestRedisNotificationStore_Dedup(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	s := NewRedisNotificationStore(kv, time.Hour, zap.NewNop())

	rec := &models.NotificationRecord{ID: "n1", DedupKey: "TRK-1|IPNCHANGE|ORDER-1|completed", Status: models.NotificationReceived}
	created, err := s.Record(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, time.Hour, kv.lastTTL)

	created, err = s.Record(ctx, &models.NotificationRecord{ID: "n2", DedupKey: rec.DedupKey})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.UpdateStatus(ctx, "n1", models.NotificationHandled, ""))
	got, err := s.Get(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.NotificationHandled, got.Status)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", models.NotificationHandled, ""), ErrNotFound)
}

func TestRedisNotificationStore_ReclaimsFailedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewRedisNotificationStore(newFakeKV(), time.Hour, zap.NewNop())
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	key := "TRK-1|IPNCHANGE|ORDER-1|"
	_, err := s.Record(ctx, &models.NotificationRecord{ID: "n1", DedupKey: key, Status: models.NotificationReceived})
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, "n1", models.NotificationHandleFailed, "gateway down"))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &models.NotificationRecord{ID: "retry", DedupKey: key, Status: models.NotificationReceived}
			ok, err := s.Record(ctx, rec)
			if err == nil && ok {
				mu.Lock()
				claimed = append(claimed, rec.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, []string{"n1"}, claimed)

	// a second failure can be retried again
	now = now.Add(time.Minute)
	require.NoError(t, s.UpdateStatus(ctx, "n1", models.NotificationHandleFailed, "gateway down"))
	created, err := s.Record(ctx, &models.NotificationRecord{ID: "n3", DedupKey: key})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRedisNotificationStore_RedisDown(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.New("connection refused")
	s := NewRedisNotificationStore(kv, time.Hour, zap.NewNop())

	_, err := s.Record(context.Background(), &models.NotificationRecord{ID: "n1", DedupKey: "k"})
	assert.ErrorContains(t, err, "connection refused")
}
