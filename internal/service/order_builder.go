// internal/service/order_builder.go
package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/models"
)

const (
	maxMerchantReferenceLen = 50
	maxDescriptionLen       = 100
)

// Placeholders for billing fields the caller left out. The gateway requires the
// fields to be present but does not verify them.
var defaultBilling = models.BillingAddress{
	EmailAddress: "customer@example.com",
	CountryCode:  "KE",
	FirstName:    "Customer",
	LastName:     "User",
	Line1:        "N/A",
	City:         "Nairobi",
	PostalCode:   "00100",
	ZipCode:      "00100",
}

// ValidatePaymentRequest checks the business fields that must be present before anything is sent to the gateway
func ValidatePaymentRequest(req *models.PaymentRequest) error {
	if req == nil {
		return apperrors.Validation("", "request body is required")
	}
	if req.Amount <= 0 {
		return apperrors.Validation("amount", "amount must be greater than zero")
	}
	if currency := strings.TrimSpace(req.Currency); currency == "" {
		return apperrors.Validation("currency", "currency is required")
	} else if len(currency) != 3 {
		return apperrors.Validation("currency", "currency must be a 3-letter ISO code")
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.Validation("description", "description is required")
	}
	if len(req.Description) > maxDescriptionLen {
		return apperrors.Validation("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	if strings.TrimSpace(req.CallbackURL) == "" {
		return apperrors.Validation("callback_url", "callback_url is required")
	}
	if !isAbsoluteURL(req.CallbackURL) {
		return apperrors.Validation("callback_url", "callback_url must be an absolute http(s) URL")
	}
	if req.CancellationURL != "" && !isAbsoluteURL(req.CancellationURL) {
		return apperrors.Validation("cancellation_url", "cancellation_url must be an absolute http(s) URL")
	}
	if len(merchantReference(req)) > maxMerchantReferenceLen {
		return apperrors.Validation("merchant_reference", fmt.Sprintf("merchant_reference must be at most %d characters", maxMerchantReferenceLen))
	}
	return nil
}

// BuildOrderPayload merges the caller's fields with defaults. The request must already be valid.
func BuildOrderPayload(req *models.PaymentRequest, notificationID string, now time.Time) *models.OrderPayload {
	ref := merchantReference(req)
	if ref == "" {
		ref = fmt.Sprintf("ORDER-%d", now.UnixMilli())
	}

	return &models.OrderPayload{
		ID:              ref,
		Currency:        strings.ToUpper(strings.TrimSpace(req.Currency)),
		Amount:          req.Amount,
		Description:     strings.TrimSpace(req.Description),
		CallbackURL:     strings.TrimSpace(req.CallbackURL),
		CancellationURL: strings.TrimSpace(req.CancellationURL),
		RedirectMode:    req.RedirectMode,
		NotificationID:  notificationID,
		Branch:          req.Branch,
		BillingAddress:  billingAddress(req),
	}
}

func merchantReference(req *models.PaymentRequest) string {
	if ref := strings.TrimSpace(req.MerchantReference); ref != "" {
		return ref
	}
	return strings.TrimSpace(req.ID)
}

// billingAddress layers flat fields over the nested address over the placeholders
func billingAddress(req *models.PaymentRequest) models.BillingAddress {
	addr := models.BillingAddress{}
	if req.BillingAddress != nil {
		addr = *req.BillingAddress
	}

	override := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	override(&addr.EmailAddress, req.Email)
	override(&addr.PhoneNumber, req.Phone)
	override(&addr.CountryCode, req.CountryCode)
	override(&addr.FirstName, req.FirstName)
	override(&addr.LastName, req.LastName)

	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	if addr.PhoneNumber == "" {
		fill(&addr.EmailAddress, defaultBilling.EmailAddress)
	}
	fill(&addr.CountryCode, defaultBilling.CountryCode)
	fill(&addr.FirstName, defaultBilling.FirstName)
	fill(&addr.LastName, defaultBilling.LastName)
	fill(&addr.Line1, defaultBilling.Line1)
	fill(&addr.City, defaultBilling.City)
	fill(&addr.PostalCode, defaultBilling.PostalCode)
	fill(&addr.ZipCode, defaultBilling.ZipCode)

	addr.CountryCode = strings.ToUpper(addr.CountryCode)
	return addr
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
