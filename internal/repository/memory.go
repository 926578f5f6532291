// internal/repository/memory.go
package repository

import (
	"context"
	"sync"
	"time"

	"pesapal-proxy/internal/models"
)

// DefaultRetention bounds how long the memory stores keep an entry after its last update
const DefaultRetention = 24 * time.Hour

// sweeper drops expired entries at most once per interval
type sweeper struct {
	retention time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newSweeper(retention time.Duration) sweeper {
	return sweeper{retention: retention, now: time.Now}
}

// due reports whether a sweep should run and returns the expiry cutoff
func (s *sweeper) due() (time.Time, bool) {
	now := s.now()
	if now.Sub(s.lastSweep) < s.retention/24 {
		return time.Time{}, false
	}
	s.lastSweep = now
	return now.Add(-s.retention), true
}

// MemoryStateStore keeps observed order states in process memory for DefaultRetention
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.OrderState
	sweep  sweeper
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]models.OrderState),
		sweep:  newSweeper(DefaultRetention),
	}
}

func (s *MemoryStateStore) Get(ctx context.Context, trackingID string) (*models.OrderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[trackingID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, state *models.OrderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cutoff, ok := s.sweep.due(); ok {
		for id, st := range s.states {
			if st.UpdatedAt.Before(cutoff) {
				delete(s.states, id)
			}
		}
	}

	s.states[state.TrackingID] = *state
	return nil
}

// Len is the number of tracked orders
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// MemoryNotificationStore keeps the IPN log in process memory for DefaultRetention
type MemoryNotificationStore struct {
	mu      sync.RWMutex
	records map[string]models.NotificationRecord
	byKey   map[string]string
	sweep   sweeper
}

func NewMemoryNotificationStore() *MemoryNotificationStore {
	return &MemoryNotificationStore{
		records: make(map[string]models.NotificationRecord),
		byKey:   make(map[string]string),
		sweep:   newSweeper(DefaultRetention),
	}
}

// Record stores rec unless a record with the same dedup key exists. An existing
// handle_failed record is reclaimed instead: rec takes over its id and Record
// reports true so the delivery is processed again.
func (s *MemoryNotificationStore) Record(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cutoff, ok := s.sweep.due(); ok {
		for id, r := range s.records {
			if r.UpdatedAt.Before(cutoff) {
				delete(s.records, id)
				delete(s.byKey, r.DedupKey)
			}
		}
	}

	if id, dup := s.byKey[rec.DedupKey]; dup {
		existing := s.records[id]
		if existing.Status != models.NotificationHandleFailed {
			return false, nil
		}
		rec.ID = existing.ID
		rec.ReceivedAt = existing.ReceivedAt
	}
	s.byKey[rec.DedupKey] = rec.ID
	s.records[rec.ID] = *rec
	return true, nil
}

func (s *MemoryNotificationStore) UpdateStatus(ctx context.Context, id string, status models.NotificationLogStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = status
	rec.Error = errMsg
	rec.UpdatedAt = s.sweep.now().UTC()
	s.records[id] = rec
	return nil
}

// Get returns a copy of the record with the given id
func (s *MemoryNotificationStore) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Len is the number of distinct notifications recorded
func (s *MemoryNotificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
