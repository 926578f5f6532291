// internal/service/notification_parser.go
package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pesapal-proxy/internal/models"
)

// ErrMalformedNotification is returned for payloads without a tracking id
var ErrMalformedNotification = errors.New("malformed notification")

// Accepted spellings per field. The gateway uses the Order* names; the snake_case
// names are the proxy's own and take precedence when both are present.
var (
	trackingIDKeys        = []string{"tracking_id", "order_tracking_id", "OrderTrackingId", "orderTrackingId"}
	merchantReferenceKeys = []string{"merchant_reference", "OrderMerchantReference", "orderMerchantReference"}
	notificationTypeKeys  = []string{"notification_type", "OrderNotificationType", "orderNotificationType"}
	statusDescriptionKeys = []string{"payment_status_description", "paymentStatusDescription"}
	paymentMethodKeys     = []string{"payment_method", "paymentMethod"}
	amountKeys            = []string{"amount"}
	accountKeys           = []string{"account", "payment_account"}
)

// ParseNotification reads an IPN from decoded body/query fields
func ParseNotification(fields map[string]any) (*models.Notification, error) {
	n := &models.Notification{
		TrackingID:               lookupString(fields, trackingIDKeys),
		MerchantReference:        lookupString(fields, merchantReferenceKeys),
		NotificationType:         lookupString(fields, notificationTypeKeys),
		PaymentStatusDescription: lookupString(fields, statusDescriptionKeys),
		PaymentMethod:            lookupString(fields, paymentMethodKeys),
		Account:                  lookupString(fields, accountKeys),
	}

	if raw := lookupString(fields, amountKeys); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return n, fmt.Errorf("%w: amount %q is not a number", ErrMalformedNotification, raw)
		}
		n.Amount = amount
	}

	if n.TrackingID == "" {
		return n, fmt.Errorf("%w: missing tracking id", ErrMalformedNotification)
	}
	return n, nil
}

func lookupString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []string:
			if len(t) > 0 {
				s = t[0]
			}
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
