// internal/handler/errors.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pesapal-proxy/internal/apperrors"
)

const invalidNotificationIDMessage = "Pesapal rejected the configured IPN notification id. " +
	"Register the IPN URL and set PESAPAL_NOTIFICATION_ID to the returned ipn_id."

// writeError renders err as {"error", "code", "details"} with the status its kind maps to
func writeError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  string(apperrors.KindInternal),
		})
		return
	}

	msg := appErr.Message
	if msg == "" {
		msg = appErr.Error()
	}
	body := gin.H{
		"error": msg,
		"code":  string(appErr.Kind),
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	if details := rawDetails(appErr.Raw); details != nil {
		body["details"] = details
	}
	if errors.Is(err, apperrors.ErrInvalidNotificationID) {
		body["error"] = invalidNotificationIDMessage
		body["code"] = "invalid_notification_id"
	}
	if appErr.Transient() {
		body["retryable"] = true
		if apperrors.IsTimeout(err) {
			body["code"] = string(apperrors.KindTimeout)
		} else {
			body["code"] = string(apperrors.KindNetwork)
		}
	}

	c.JSON(appErr.HTTPStatus(), body)
}

// rawDetails returns the gateway body as JSON when it is JSON, as text otherwise
func rawDetails(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
