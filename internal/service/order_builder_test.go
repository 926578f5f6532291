package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/models"
)

func validRequest() *models.PaymentRequest {
	return &models.PaymentRequest{
		Amount:      10,
		Currency:    "KES",
		Description: "Test",
		CallbackURL: "https://app.test/cb",
		Email:       "a@b.com",
	}
}

func TestValidatePaymentRequest(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *models.PaymentRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *models.PaymentRequest) {}},
		{name: "zero amount", mutate: func(r *models.PaymentRequest) { r.Amount = 0 }, wantField: "amount"},
		{name: "negative amount", mutate: func(r *models.PaymentRequest) { r.Amount = -5 }, wantField: "amount"},
		{name: "missing currency", mutate: func(r *models.PaymentRequest) { r.Currency = " " }, wantField: "currency"},
		{name: "bad currency", mutate: func(r *models.PaymentRequest) { r.Currency = "KSHS" }, wantField: "currency"},
		{name: "missing description", mutate: func(r *models.PaymentRequest) { r.Description = "" }, wantField: "description"},
		{name: "long description", mutate: func(r *models.PaymentRequest) { r.Description = strings.Repeat("x", 101) }, wantField: "description"},
		{name: "missing callback", mutate: func(r *models.PaymentRequest) { r.CallbackURL = "" }, wantField: "callback_url"},
		{name: "relative callback", mutate: func(r *models.PaymentRequest) { r.CallbackURL = "/cb" }, wantField: "callback_url"},
		{name: "bad cancellation url", mutate: func(r *models.PaymentRequest) { r.CancellationURL = "ftp://x" }, wantField: "cancellation_url"},
		{name: "long reference", mutate: func(r *models.PaymentRequest) { r.MerchantReference = strings.Repeat("r", 51) }, wantField: "merchant_reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)

			err := ValidatePaymentRequest(req)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
			assert.Equal(t, tt.wantField, appErr.Field)
		})
	}

	assert.True(t, apperrors.IsValidation(ValidatePaymentRequest(nil)))
}

func TestBuildOrderPayload_Defaults(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	req := validRequest()
	req.Currency = "kes"

	p := BuildOrderPayload(req, "ipn-1", now)

	assert.Equal(t, "ORDER-1760000000123", p.ID)
	assert.Equal(t, "KES", p.Currency)
	assert.Equal(t, 10.0, p.Amount)
	assert.Equal(t, "ipn-1", p.NotificationID)
	assert.Equal(t, "https://app.test/cb", p.CallbackURL)
	assert.Equal(t, models.BillingAddress{
		EmailAddress: "a@b.com",
		CountryCode:  "KE",
		FirstName:    "Customer",
		LastName:     "User",
		Line1:        "N/A",
		City:         "Nairobi",
		PostalCode:   "00100",
		ZipCode:      "00100",
	}, p.BillingAddress)
}

func TestBuildOrderPayload_MergesBilling(t *testing.T) {
	req := validRequest()
	req.ID = "INV-7"
	req.Email = ""
	req.Phone = "0712345678"
	req.FirstName = "Jane"
	req.BillingAddress = &models.BillingAddress{
		EmailAddress: "nested@b.com",
		FirstName:    "Nested",
		LastName:     "Doe",
		CountryCode:  "ug",
		City:         "Kampala",
	}

	p := BuildOrderPayload(req, "ipn-1", time.Now())

	assert.Equal(t, "INV-7", p.ID, "id is used when merchant_reference is absent")
	assert.Equal(t, "nested@b.com", p.BillingAddress.EmailAddress)
	assert.Equal(t, "0712345678", p.BillingAddress.PhoneNumber)
	assert.Equal(t, "Jane", p.BillingAddress.FirstName, "flat fields win over nested")
	assert.Equal(t, "Doe", p.BillingAddress.LastName)
	assert.Equal(t, "UG", p.BillingAddress.CountryCode)
	assert.Equal(t, "Kampala", p.BillingAddress.City)
	assert.Equal(t, "N/A", p.BillingAddress.Line1)
}

func TestBuildOrderPayload_PhoneOnlyKeepsEmailEmpty(t *testing.T) {
	req := validRequest()
	req.Email = ""
	req.Phone = "0712345678"
	req.MerchantReference = "REF-1"

	p := BuildOrderPayload(req, "ipn-1", time.Now())

	assert.Equal(t, "REF-1", p.ID)
	assert.Empty(t, p.BillingAddress.EmailAddress)
	assert.Equal(t, "0712345678", p.BillingAddress.PhoneNumber)
}
