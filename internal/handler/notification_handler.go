// internal/handler/notification_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pesapal-proxy/internal/metrics"
	"pesapal-proxy/internal/models"
	"pesapal-proxy/internal/service"
	"pesapal-proxy/pkg/middleware"
)

// NotificationAPI processes one parsed IPN delivery
type NotificationAPI interface {
	Handle(ctx context.Context, n *models.Notification, raw json.RawMessage) (*service.NotificationResult, error)
}

// NotificationHandler receives IPN deliveries. It answers 200 to every delivery,
// whatever happens while processing it.
type NotificationHandler struct {
	service NotificationAPI
	logger  *zap.Logger
}

func NewNotificationHandler(service NotificationAPI, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger,
	}
}

// Receive handles POST and GET /api/pesapal/ipn
func (h *NotificationHandler) Receive(c *gin.Context) {
	ack := models.NotificationAck{Status: "OK"}
	log := h.logger.With(zap.String("request_id", middleware.GetRequestID(c)))

	defer func() {
		if r := recover(); r != nil {
			metrics.IncIPN(metrics.IPNPanic)
			log.Error("panic while processing notification", zap.Any("panic", r), zap.Stack("stack"))
		}
		if !c.Writer.Written() {
			c.JSON(http.StatusOK, ack)
		}
	}()

	fields, err := collectFields(c)
	if err != nil {
		log.Warn("unreadable notification body", zap.Error(err))
	}

	n, err := service.ParseNotification(fields)
	if n != nil {
		ack.OrderNotificationType = n.NotificationType
		ack.OrderTrackingID = n.TrackingID
		ack.OrderMerchantReference = n.MerchantReference
	}
	if err != nil {
		metrics.IncIPN(metrics.IPNMalformed)
		log.Warn("malformed notification", zap.Any("fields", fields), zap.Error(err))
		return
	}

	raw := encodeFields(log, n.TrackingID, fields)

	// Processing outlives the gateway's connection
	res, err := h.service.Handle(context.WithoutCancel(c.Request.Context()), n, raw)
	switch {
	case err != nil:
		metrics.IncIPN(metrics.IPNFailed)
		log.Error("failed to process notification",
			zap.String("order_tracking_id", n.TrackingID),
			zap.Error(err))
	case res.Duplicate:
		metrics.IncIPN(metrics.IPNDuplicate)
	default:
		metrics.IncIPN(metrics.IPNHandled)
	}
}

// encodeFields returns the delivery as JSON for the notification log. A payload
// that cannot be encoded is logged and recorded without its raw form.
func encodeFields(log *zap.Logger, trackingID string, fields map[string]any) json.RawMessage {
	raw, err := json.Marshal(fields)
	if err != nil {
		log.Warn("failed to encode raw notification, recording without it",
			zap.String("order_tracking_id", trackingID),
			zap.Error(err))
		return nil
	}
	return raw
}

// collectFields merges the query string with a JSON or form body. Body values win.
func collectFields(c *gin.Context) (map[string]any, error) {
	fields := make(map[string]any)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return fields, nil
	}

	switch c.ContentType() {
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return fields, err
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil
	default:
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil || len(data) == 0 {
			return fields, err
		}
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return fields, errors.Join(errors.New("notification body is not a JSON object"), err)
		}
		for k, v := range body {
			fields[k] = v
		}
		return fields, nil
	}
}
