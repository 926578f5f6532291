// internal/service/reconciler.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pesapal-proxy/internal/metrics"
	"pesapal-proxy/internal/models"
)

// Observation is one report of an order's status
type Observation struct {
	TrackingID        string
	MerchantReference string
	Status            models.PaymentStatus
	Description       string
	Source            models.ObservationSource
}

// Reconciler merges status observations from submissions, polls and pushes
// into one view per tracking id.
//
// Terminal states are sticky. A poll never overwrites a recorded terminal state;
// a push may replace a terminal state that came from a poll, since the push is
// usually more current. Every disagreement with a terminal state is logged.
type Reconciler struct {
	mu     sync.Mutex
	store  StateStore
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(store StateStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Observe records obs and returns the status the proxy now believes in.
// The returned status is meaningful even when err is non-nil.
func (r *Reconciler) Observe(ctx context.Context, obs Observation) (models.PaymentStatus, error) {
	metrics.IncPaymentStatus(obs.Status, obs.Source)

	r.mu.Lock()
	defer r.mu.Unlock()

	prior, err := r.store.Get(ctx, obs.TrackingID)
	if err != nil {
		return obs.Status, fmt.Errorf("failed to load state for %s: %w", obs.TrackingID, err)
	}

	if prior != nil && !r.accept(prior, obs) {
		return prior.Status, nil
	}

	next := &models.OrderState{
		TrackingID:        obs.TrackingID,
		MerchantReference: obs.MerchantReference,
		Status:            obs.Status,
		Description:       obs.Description,
		Source:            obs.Source,
		UpdatedAt:         r.now(),
	}
	if next.MerchantReference == "" && prior != nil {
		next.MerchantReference = prior.MerchantReference
	}

	if err := r.store.Save(ctx, next); err != nil {
		return obs.Status, fmt.Errorf("failed to save state for %s: %w", obs.TrackingID, err)
	}
	return next.Status, nil
}

// accept decides whether obs replaces prior
func (r *Reconciler) accept(prior *models.OrderState, obs Observation) bool {
	if !prior.Status.IsTerminal() {
		return rank(obs.Status) >= rank(prior.Status)
	}

	if obs.Status == prior.Status {
		return false
	}

	fields := []zap.Field{
		zap.String("order_tracking_id", obs.TrackingID),
		zap.String("recorded_status", string(prior.Status)),
		zap.String("recorded_source", string(prior.Source)),
		zap.String("observed_status", string(obs.Status)),
		zap.String("observed_source", string(obs.Source)),
		zap.String("observed_description", obs.Description),
	}
	metrics.IncStatusMismatch()

	if obs.Source == models.SourcePush && obs.Status.IsTerminal() && prior.Source != models.SourcePush {
		r.logger.Warn("push notification overrides polled terminal status", fields...)
		return true
	}

	r.logger.Warn("status mismatch with recorded terminal status, keeping recorded", fields...)
	return false
}

func rank(s models.PaymentStatus) int {
	switch {
	case s == models.PaymentStatusCreated:
		return 0
	case s.IsTerminal():
		return 2
	default:
		return 1
	}
}
