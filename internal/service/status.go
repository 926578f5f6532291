// internal/service/status.go
package service

import (
	"strings"

	"pesapal-proxy/internal/models"
)

// statusRules are evaluated in order; the first rule with a matching substring wins.
var statusRules = []struct {
	status  models.PaymentStatus
	matches []string
}{
	{models.PaymentStatusFailed, []string{"unsuccessful"}},
	{models.PaymentStatusCompleted, []string{"completed", "success"}},
	{models.PaymentStatusFailed, []string{"failed", "error"}},
	{models.PaymentStatusCancelled, []string{"cancelled", "canceled"}},
}

// ClassifyStatus maps the gateway's free-text payment_status_description onto a PaymentStatus.
// Anything unrecognised, including an empty description, is pending.
func ClassifyStatus(description string) models.PaymentStatus {
	d := strings.ToLower(description)
	for _, rule := range statusRules {
		for _, m := range rule.matches {
			if strings.Contains(d, m) {
				return rule.status
			}
		}
	}
	return models.PaymentStatusPending
}
