// internal/service/notification_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pesapal-proxy/internal/models"
)

// NotificationResult describes what happened to one IPN delivery
type NotificationResult struct {
	RecordID  string
	Duplicate bool
	Status    models.PaymentStatus
}

// NotificationService records IPN deliveries and feeds them to the reconciler.
// Its errors are for logging only; the HTTP layer acknowledges every delivery.
type NotificationService struct {
	store      NotificationStore
	reconciler *Reconciler
	fetcher    StatusFetcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewNotificationService(store NotificationStore, reconciler *Reconciler, fetcher StatusFetcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		store:      store,
		reconciler: reconciler,
		fetcher:    fetcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Handle records n once per dedup key and reconciles the reported status.
//
// Pesapal's IPN carries no status description, so one is resolved by polling
// before the dedup key is computed: a later IPN for the same order is a new
// notification when the status it leads to differs. A delivery whose earlier
// processing failed is processed again.
func (s *NotificationService) Handle(ctx context.Context, n *models.Notification, raw json.RawMessage) (*NotificationResult, error) {
	resolved, fetchErr := s.resolve(ctx, n)

	now := s.now()
	rec := &models.NotificationRecord{
		ID:           uuid.New().String(),
		DedupKey:     resolved.DedupKey(),
		Notification: *resolved,
		Status:       models.NotificationReceived,
		Raw:          raw,
		ReceivedAt:   now,
		UpdatedAt:    now,
	}

	log := s.logger.With(
		zap.String("order_tracking_id", n.TrackingID),
		zap.String("merchant_reference", resolved.MerchantReference),
		zap.String("notification_type", n.NotificationType))

	created, err := s.store.Record(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to record notification: %w", err)
	}
	if !created {
		log.Info("duplicate notification acknowledged")
		return &NotificationResult{Duplicate: true}, nil
	}

	result := &NotificationResult{RecordID: rec.ID, Status: models.PaymentStatusPending}
	procErr := fetchErr
	if procErr == nil {
		result.Status, procErr = s.reconciler.Observe(ctx, Observation{
			TrackingID:        resolved.TrackingID,
			MerchantReference: resolved.MerchantReference,
			Status:            ClassifyStatus(resolved.PaymentStatusDescription),
			Description:       resolved.PaymentStatusDescription,
			Source:            models.SourcePush,
		})
	}

	logStatus, errMsg := models.NotificationHandled, ""
	if procErr != nil {
		logStatus, errMsg = models.NotificationHandleFailed, procErr.Error()
	}
	if err := s.store.UpdateStatus(ctx, rec.ID, logStatus, errMsg); err != nil {
		log.Warn("failed to update notification record", zap.String("record_id", rec.ID), zap.Error(err))
	}

	if procErr != nil {
		return result, procErr
	}

	log.Info("notification processed", zap.String("status", string(result.Status)))
	return result, nil
}

// resolve fills in the status description, and a missing merchant reference,
// from a poll when the notification carries none
func (s *NotificationService) resolve(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	resolved := *n
	if resolved.PaymentStatusDescription != "" {
		return &resolved, nil
	}

	st, err := s.fetcher.FetchStatus(ctx, n.TrackingID)
	if err != nil {
		return &resolved, fmt.Errorf("failed to fetch status for notification: %w", err)
	}
	resolved.PaymentStatusDescription = st.PaymentStatusDescription
	if resolved.MerchantReference == "" {
		resolved.MerchantReference = st.MerchantReference
	}
	if resolved.PaymentMethod == "" {
		resolved.PaymentMethod = st.PaymentMethod
	}
	if resolved.Amount == 0 {
		resolved.Amount = st.Amount
	}
	return &resolved, nil
}
