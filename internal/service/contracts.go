// internal/service/contracts.go
package service

import (
	"context"

	"pesapal-proxy/internal/models"
)

// Gateway is the subset of the Pesapal client the orchestrator calls
type Gateway interface {
	RequestToken(ctx context.Context) (string, error)
	SubmitOrder(ctx context.Context, token string, payload *models.OrderPayload) (*models.OrderResponse, error)
	GetTransactionStatus(ctx context.Context, token, trackingID string) (*models.TransactionStatus, error)
	RegisterIPN(ctx context.Context, token, ipnURL string) (string, error)
}

// StateStore holds the last observed status per tracking id. Get returns nil, nil for unknown ids.
type StateStore interface {
	Get(ctx context.Context, trackingID string) (*models.OrderState, error)
	Save(ctx context.Context, state *models.OrderState) error
}

// NotificationStore is the IPN log. Record returns false when the dedup key is already
// present, unless the stored record is handle_failed: then rec takes over its id and
// Record returns true.
type NotificationStore interface {
	Record(ctx context.Context, rec *models.NotificationRecord) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.NotificationLogStatus, errMsg string) error
}

// StatusFetcher looks up the gateway's current view of an order
type StatusFetcher interface {
	FetchStatus(ctx context.Context, trackingID string) (*models.TransactionStatus, error)
}
