// internal/service/payment_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/config"
	"pesapal-proxy/internal/models"
	"pesapal-proxy/internal/pesapal"
)

// PaymentService runs the token → order → status flow against the gateway.
// It re-authenticates for every flow; tokens are never cached.
type PaymentService struct {
	gateway    Gateway
	reconciler *Reconciler
	cfg        config.Config
	endpoints  pesapal.Endpoints
	logger     *zap.Logger
	now        func() time.Time
}

func NewPaymentService(gateway Gateway, reconciler *Reconciler, cfg config.Config, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		gateway:    gateway,
		reconciler: reconciler,
		cfg:        cfg,
		endpoints:  cfg.Pesapal.Endpoints(),
		logger:     logger,
		now:        time.Now,
	}
}

// CreatePayment validates the request, authenticates and submits the order.
//
// Submission is not idempotent at the gateway, so nothing here is retried. Once
// validation passes the flow no longer follows the caller's cancellation: an
// order the gateway already created must not be lost because the client left.
func (s *PaymentService) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error) {
	if err := ValidatePaymentRequest(req); err != nil {
		return nil, err
	}
	if s.cfg.Pesapal.NotificationID == "" {
		return nil, apperrors.Internal("no IPN notification id configured", nil)
	}

	payload := BuildOrderPayload(req, s.cfg.Pesapal.NotificationID, s.now())
	ctx = context.WithoutCancel(ctx)

	log := s.logger.With(zap.String("merchant_reference", payload.ID))

	token, err := s.gateway.RequestToken(ctx)
	if err != nil {
		log.Error("failed to obtain gateway token", zap.Error(err))
		return nil, err
	}

	resp, err := s.gateway.SubmitOrder(ctx, token, payload)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidNotificationID) {
			log.Error("gateway rejected the configured notification id",
				zap.String("notification_id", payload.NotificationID), zap.Error(err))
		} else {
			log.Error("order submission failed", zap.Error(err))
		}
		return nil, err
	}

	ref := resp.MerchantReference
	if ref == "" {
		ref = payload.ID
	}

	paymentURL := resp.RedirectURL
	if paymentURL == "" {
		paymentURL = s.endpoints.PaymentPageURL(resp.OrderTrackingID, ref)
	}

	status, err := s.reconciler.Observe(ctx, Observation{
		TrackingID:        resp.OrderTrackingID,
		MerchantReference: ref,
		Status:            models.PaymentStatusCreated,
		Source:            models.SourceSubmit,
	})
	if err != nil {
		log.Warn("failed to record submitted order", zap.String("order_tracking_id", resp.OrderTrackingID), zap.Error(err))
	}

	log.Info("order submitted",
		zap.String("order_tracking_id", resp.OrderTrackingID),
		zap.Float64("amount", payload.Amount),
		zap.String("currency", payload.Currency))

	return &models.PaymentResult{
		OrderTrackingID:   resp.OrderTrackingID,
		MerchantReference: ref,
		RedirectURL:       paymentURL,
		PaymentURL:        paymentURL,
		Status:            status,
	}, nil
}

// FetchStatus authenticates and queries the gateway without touching reconciled state
func (s *PaymentService) FetchStatus(ctx context.Context, trackingID string) (*models.TransactionStatus, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, apperrors.Validation("order_tracking_id", "order tracking id is required")
	}

	token, err := s.gateway.RequestToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.gateway.GetTransactionStatus(ctx, token, trackingID)
}

// GetStatus polls the gateway and reconciles the answer with what push notifications reported
func (s *PaymentService) GetStatus(ctx context.Context, trackingID string) (*models.StatusResult, error) {
	trackingID = strings.TrimSpace(trackingID)
	st, err := s.FetchStatus(ctx, trackingID)
	if err != nil {
		if !apperrors.IsValidation(err) {
			s.logger.Error("status poll failed", zap.String("order_tracking_id", trackingID), zap.Error(err))
		}
		return nil, err
	}

	polled := ClassifyStatus(st.PaymentStatusDescription)
	status, err := s.reconciler.Observe(ctx, Observation{
		TrackingID:        trackingID,
		MerchantReference: st.MerchantReference,
		Status:            polled,
		Description:       st.PaymentStatusDescription,
		Source:            models.SourcePoll,
	})
	if err != nil {
		s.logger.Warn("failed to reconcile polled status", zap.String("order_tracking_id", trackingID), zap.Error(err))
	}

	return &models.StatusResult{
		OrderTrackingID:          trackingID,
		MerchantReference:        st.MerchantReference,
		Status:                   status,
		GatewayStatus:            polled,
		PaymentStatusDescription: st.PaymentStatusDescription,
		PaymentMethod:            st.PaymentMethod,
		Amount:                   st.Amount,
		Currency:                 st.Currency,
		ConfirmationCode:         st.ConfirmationCode,
	}, nil
}

// RegisterIPN registers this proxy's IPN endpoint and returns the notification id
func (s *PaymentService) RegisterIPN(ctx context.Context) (string, error) {
	if s.cfg.ProxyBaseURL == "" {
		return "", apperrors.Internal("PROXY_BASE_URL is not configured", nil)
	}

	token, err := s.gateway.RequestToken(ctx)
	if err != nil {
		return "", err
	}

	id, err := s.gateway.RegisterIPN(ctx, token, s.cfg.IPNURL())
	if err != nil {
		s.logger.Error("IPN registration failed", zap.String("url", s.cfg.IPNURL()), zap.Error(err))
		return "", err
	}

	s.logger.Info("IPN registered", zap.String("url", s.cfg.IPNURL()), zap.String("notification_id", id))
	return id, nil
}
