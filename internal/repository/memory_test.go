package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pesapal-proxy/internal/models"
)

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore()

	got, err := s.Get(ctx, "TRK-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &models.OrderState{TrackingID: "TRK-1", Status: models.PaymentStatusPending, Source: models.SourcePoll, UpdatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, state))

	state.Status = models.PaymentStatusFailed // stored copy must not alias the caller's value

	got, err = s.Get(ctx, "TRK-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
}

func TestMemoryNotificationStore_Dedup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNotificationStore()

	rec := &models.NotificationRecord{ID: "n1", DedupKey: "TRK-1|IPNCHANGE|ORDER-1|", Status: models.NotificationReceived}
	created, err := s.Record(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &models.NotificationRecord{ID: "n2", DedupKey: rec.DedupKey, Status: models.NotificationReceived}
	created, err = s.Record(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.UpdateStatus(ctx, "n1", models.NotificationHandled, ""))
	got, err := s.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationHandled, got.Status)

	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", models.NotificationHandled, ""), ErrNotFound)
}

func TestMemoryNotificationStore_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNotificationStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := s.Record(ctx, &models.NotificationRecord{ID: string(rune('a' + i)), DedupKey: "same"})
			if err == nil && created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryNotificationStore_ReclaimsFailed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryNotificationStore()

	rec := &models.NotificationRecord{ID: "n1", DedupKey: "TRK-1|IPNCHANGE|ORDER-1|", Status: models.NotificationReceived}
	_, err := s.Record(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, "n1", models.NotificationHandleFailed, "gateway down"))

	retry := &models.NotificationRecord{ID: "n2", DedupKey: rec.DedupKey, Status: models.NotificationReceived}
	created, err := s.Record(ctx, retry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "n1", retry.ID)
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationReceived, got.Status)

	created, err = s.Record(ctx, &models.NotificationRecord{ID: "n3", DedupKey: rec.DedupKey})
	require.NoError(t, err)
	assert.False(t, created, "a record being processed is not reclaimed")
}

func TestMemoryStateStore_Retention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStateStore()
	s.sweep.now = func() time.Time { return now }

	require.NoError(t, s.Save(ctx, &models.OrderState{TrackingID: "old", UpdatedAt: now.Add(-25 * time.Hour)}))
	require.NoError(t, s.Save(ctx, &models.OrderState{TrackingID: "fresh", UpdatedAt: now}))
	assert.Equal(t, 2, s.Len())

	now = now.Add(2 * time.Hour)
	require.NoError(t, s.Save(ctx, &models.OrderState{TrackingID: "newer", UpdatedAt: now}))

	got, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryNotificationStore_Retention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	s := NewMemoryNotificationStore()
	s.sweep.now = func() time.Time { return now }

	old := &models.NotificationRecord{ID: "n1", DedupKey: "k1", UpdatedAt: now.Add(-25 * time.Hour)}
	_, err := s.Record(ctx, old)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	created, err := s.Record(ctx, &models.NotificationRecord{ID: "n2", DedupKey: "k1", UpdatedAt: now})
	require.NoError(t, err)
	assert.True(t, created, "an expired dedup key no longer blocks")
	assert.Equal(t, 1, s.Len())
}
