// internal/models/notification.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Notification is an IPN as delivered by the gateway
type Notification struct {
	TrackingID               string  `json:"tracking_id"`
	MerchantReference        string  `json:"merchant_reference"`
	NotificationType         string  `json:"notification_type"`
	PaymentStatusDescription string  `json:"payment_status_description"`
	PaymentMethod            string  `json:"payment_method"`
	Amount                   float64 `json:"amount"`
	Account                  string  `json:"account"`
}

// DedupKey identifies repeated deliveries of the same notification
func (n *Notification) DedupKey() string {
	return strings.Join([]string{
		n.TrackingID,
		strings.ToUpper(n.NotificationType),
		n.MerchantReference,
		strings.ToLower(n.PaymentStatusDescription),
	}, "|")
}

type NotificationLogStatus string

const (
	NotificationReceived     NotificationLogStatus = "received"
	NotificationHandled      NotificationLogStatus = "handled"
	NotificationHandleFailed NotificationLogStatus = "handle_failed"
)

type NotificationRecord struct {
	ID           string                `json:"id" db:"id"`
	DedupKey     string                `json:"dedup_key" db:"dedup_key"`
	Notification Notification          `json:"notification"`
	Status       NotificationLogStatus `json:"status" db:"status"`
	Error        string                `json:"error,omitempty" db:"error"`
	Raw          json.RawMessage       `json:"raw,omitempty" db:"raw"`
	ReceivedAt   time.Time             `json:"received_at" db:"received_at"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// NotificationAck is the body returned to the gateway for every delivery
type NotificationAck struct {
	Status                 string `json:"status"`
	OrderNotificationType  string `json:"orderNotificationType,omitempty"`
	OrderTrackingID        string `json:"orderTrackingId,omitempty"`
	OrderMerchantReference string `json:"orderMerchantReference,omitempty"`
}

// Database schema
const NotificationSchema = `
CREATE TABLE IF NOT EXISTS payment_notifications (
    id VARCHAR(36) PRIMARY KEY,
    dedup_key TEXT NOT NULL UNIQUE,
    order_tracking_id VARCHAR(128),
    merchant_reference VARCHAR(128),
    notification_type VARCHAR(32),
    payment_status_description TEXT,
    payment_method VARCHAR(64),
    amount DECIMAL(19, 4),
    account VARCHAR(128),
    status VARCHAR(20) NOT NULL,
    error TEXT,
    raw JSONB,
    received_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_notifications_tracking_id ON payment_notifications (order_tracking_id);
`
