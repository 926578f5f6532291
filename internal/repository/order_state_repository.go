// internal/repository/order_state_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"

	"pesapal-proxy/internal/models"
)

type OrderStateRepository struct {
	db *sql.DB
}

func NewOrderStateRepository(db *sql.DB) *OrderStateRepository {
	return &OrderStateRepository{db: db}
}

func (r *OrderStateRepository) Get(ctx context.Context, trackingID string) (*models.OrderState, error) {
	query := `
		SELECT order_tracking_id, merchant_reference, status, description, source, updated_at
		FROM order_states WHERE order_tracking_id = $1
	`

	state := &models.OrderState{}
	var reference, description sql.NullString
	err := r.db.QueryRowContext(ctx, query, trackingID).Scan(
		&state.TrackingID,
		&reference,
		&state.Status,
		&description,
		&state.Source,
		&state.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state.MerchantReference = reference.String
	state.Description = description.String
	return state, nil
}

func (r *OrderStateRepository) Save(ctx context.Context, state *models.OrderState) error {
	query := `
		INSERT INTO order_states (
			order_tracking_id, merchant_reference, status, description, source, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_tracking_id) DO UPDATE SET
			merchant_reference = COALESCE(NULLIF(EXCLUDED.merchant_reference, ''), order_states.merchant_reference),
			status = EXCLUDED.status,
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		state.TrackingID,
		state.MerchantReference,
		state.Status,
		state.Description,
		state.Source,
		state.UpdatedAt,
	)

	return err
}
