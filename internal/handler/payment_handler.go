// internal/handler/payment_handler.go
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/models"
)

const maxBodyBytes = 64 << 10

// PaymentAPI is the order flow the handler exposes
type PaymentAPI interface {
	CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error)
	GetStatus(ctx context.Context, trackingID string) (*models.StatusResult, error)
	RegisterIPN(ctx context.Context) (string, error)
}

type PaymentHandler struct {
	service   PaymentAPI
	returnURL string
	logger    *zap.Logger
}

// NewPaymentHandler creates the handler. returnURL is where the hosted payment page
// callback sends the user; empty means the callback answers with JSON.
func NewPaymentHandler(service PaymentAPI, returnURL string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		returnURL: returnURL,
		logger:    logger,
	}
}

// CreatePayment handles POST /api/pesapal/pay
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	req, err := decodePaymentRequest(c.Request.Body)
	if err != nil {
		writeError(c, apperrors.Validation("body", "request body must be a JSON payment request"))
		return
	}

	result, err := h.service.CreatePayment(c.Request.Context(), req)
	if err != nil {
		if !apperrors.IsValidation(err) {
			h.logger.Error("failed to create payment", zap.Error(err))
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStatus handles GET /api/pesapal/status/:trackingId and GET /api/pesapal/status?orderTrackingId=
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	trackingID := c.Param("trackingId")
	if trackingID == "" {
		trackingID = firstQuery(c, "orderTrackingId", "OrderTrackingId", "tracking_id")
	}

	result, err := h.service.GetStatus(c.Request.Context(), trackingID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Callback handles GET /api/pesapal/callback, where the hosted page returns the user
func (h *PaymentHandler) Callback(c *gin.Context) {
	trackingID := firstQuery(c, "OrderTrackingId", "orderTrackingId", "tracking_id")
	reference := firstQuery(c, "OrderMerchantReference", "orderMerchantReference", "merchant_reference")

	if h.returnURL == "" {
		c.JSON(http.StatusOK, gin.H{
			"order_tracking_id":  trackingID,
			"merchant_reference": reference,
		})
		return
	}

	target, err := url.Parse(h.returnURL)
	if err != nil {
		h.logger.Error("invalid application return url", zap.String("url", h.returnURL), zap.Error(err))
		writeError(c, apperrors.Internal("invalid application return url", err))
		return
	}
	q := target.Query()
	if trackingID != "" {
		q.Set("tracking_id", trackingID)
	}
	if reference != "" {
		q.Set("merchant_reference", reference)
	}
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

// RegisterIPN handles POST /api/pesapal/ipn/register
func (h *PaymentHandler) RegisterIPN(c *gin.Context) {
	id, err := h.service.RegisterIPN(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ipn_id": id})
}

// decodePaymentRequest accepts the request flat or wrapped as {"orderData": {...}}
func decodePaymentRequest(body io.Reader) (*models.PaymentRequest, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		OrderData json.RawMessage `json:"orderData"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.OrderData) > 0 && string(envelope.OrderData) != "null" {
		data = envelope.OrderData
	}

	var req models.PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
