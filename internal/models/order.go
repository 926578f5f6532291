// internal/models/order.go
package models

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal reports whether the gateway will not move the order out of this status
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// ObservationSource tells how the proxy learned about a status
type ObservationSource string

const (
	SourceSubmit ObservationSource = "submit"
	SourcePoll   ObservationSource = "poll"
	SourcePush   ObservationSource = "push"
)

type BillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1"`
	Line2        string `json:"line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	ZipCode      string `json:"zip_code"`
}

// PaymentRequest is what the frontend sends. Billing fields may come flat or nested.
type PaymentRequest struct {
	MerchantReference string          `json:"merchant_reference"`
	ID                string          `json:"id"`
	Amount            float64         `json:"amount"`
	Currency          string          `json:"currency"`
	Description       string          `json:"description"`
	CallbackURL       string          `json:"callback_url"`
	CancellationURL   string          `json:"cancellation_url"`
	RedirectMode      string          `json:"redirect_mode"`
	Branch            string          `json:"branch"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	CountryCode       string          `json:"country_code"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	BillingAddress    *BillingAddress `json:"billing_address"`
}

// OrderPayload is the SubmitOrderRequest body
type OrderPayload struct {
	ID              string         `json:"id"`
	Currency        string         `json:"currency"`
	Amount          float64        `json:"amount"`
	Description     string         `json:"description"`
	CallbackURL     string         `json:"callback_url"`
	CancellationURL string         `json:"cancellation_url,omitempty"`
	RedirectMode    string         `json:"redirect_mode,omitempty"`
	NotificationID  string         `json:"notification_id"`
	Branch          string         `json:"branch,omitempty"`
	BillingAddress  BillingAddress `json:"billing_address"`
}

// GatewayError is the error object Pesapal embeds in otherwise 200 responses
type GatewayError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *GatewayError) Empty() bool {
	return e == nil || (e.ErrorType == "" && e.Code == "" && e.Message == "")
}

type OrderResponse struct {
	OrderTrackingID   string          `json:"order_tracking_id"`
	MerchantReference string          `json:"merchant_reference"`
	RedirectURL       string          `json:"redirect_url"`
	Error             *GatewayError   `json:"error"`
	Raw               json.RawMessage `json:"-"`
}

type TransactionStatus struct {
	PaymentMethod            string          `json:"payment_method"`
	Amount                   float64         `json:"amount"`
	CreatedDate              string          `json:"created_date"`
	ConfirmationCode         string          `json:"confirmation_code"`
	PaymentStatusDescription string          `json:"payment_status_description"`
	Description              string          `json:"description"`
	Message                  string          `json:"message"`
	PaymentAccount           string          `json:"payment_account"`
	StatusCode               int             `json:"status_code"`
	MerchantReference        string          `json:"merchant_reference"`
	Currency                 string          `json:"currency"`
	Error                    *GatewayError   `json:"error"`
	Raw                      json.RawMessage `json:"-"`
}

// PaymentResult is returned to the frontend after a successful submission
type PaymentResult struct {
	OrderTrackingID   string        `json:"order_tracking_id"`
	MerchantReference string        `json:"merchant_reference"`
	RedirectURL       string        `json:"redirect_url"`
	PaymentURL        string        `json:"payment_url"`
	Status            PaymentStatus `json:"status"`
}

// StatusResult is returned for a status poll. Status is the reconciled view,
// GatewayStatus what this particular poll classified to.
type StatusResult struct {
	OrderTrackingID          string        `json:"order_tracking_id"`
	MerchantReference        string        `json:"merchant_reference"`
	Status                   PaymentStatus `json:"status"`
	GatewayStatus            PaymentStatus `json:"gateway_status"`
	PaymentStatusDescription string        `json:"payment_status_description"`
	PaymentMethod            string        `json:"payment_method"`
	Amount                   float64       `json:"amount"`
	Currency                 string        `json:"currency"`
	ConfirmationCode         string        `json:"confirmation_code,omitempty"`
}

// OrderState is the last status the proxy observed for a tracking id
type OrderState struct {
	TrackingID        string            `json:"order_tracking_id" db:"order_tracking_id"`
	MerchantReference string            `json:"merchant_reference" db:"merchant_reference"`
	Status            PaymentStatus     `json:"status" db:"status"`
	Description       string            `json:"description" db:"description"`
	Source            ObservationSource `json:"source" db:"source"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// Database schema
const OrderStateSchema = `
CREATE TABLE IF NOT EXISTS order_states (
    order_tracking_id VARCHAR(128) PRIMARY KEY,
    merchant_reference VARCHAR(128),
    status VARCHAR(20) NOT NULL,
    description TEXT,
    source VARCHAR(10) NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`
