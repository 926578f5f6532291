// internal/repository/notification_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pesapal-proxy/internal/models"
)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Record inserts rec and reports false when its dedup key was already stored.
// A stored handle_failed record is reclaimed: it is reset to rec's status and
// payload, rec takes over its id, and Record reports true.
func (r *NotificationRepository) Record(ctx context.Context, rec *models.NotificationRecord) (bool, error) {
	query := `
		INSERT INTO payment_notifications (
			id, dedup_key, order_tracking_id, merchant_reference, notification_type,
			payment_status_description, payment_method, amount, account,
			status, error, raw, received_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (dedup_key) DO UPDATE
		SET status = EXCLUDED.status, error = EXCLUDED.error, raw = EXCLUDED.raw,
			payment_method = EXCLUDED.payment_method, amount = EXCLUDED.amount,
			updated_at = EXCLUDED.updated_at
		WHERE payment_notifications.status = $15
		RETURNING id
	`

	n := rec.Notification
	var raw interface{}
	if len(rec.Raw) > 0 {
		raw = []byte(rec.Raw)
	}

	var id string
	err := r.db.QueryRowContext(ctx, query,
		rec.ID,
		rec.DedupKey,
		n.TrackingID,
		n.MerchantReference,
		n.NotificationType,
		n.PaymentStatusDescription,
		n.PaymentMethod,
		n.Amount,
		n.Account,
		rec.Status,
		rec.Error,
		raw,
		rec.ReceivedAt,
		rec.UpdatedAt,
		models.NotificationHandleFailed,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	rec.ID = id
	return true, nil
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status models.NotificationLogStatus, errMsg string) error {
	query := `
		UPDATE payment_notifications
		SET status = $1, error = $2, updated_at = $3
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query, status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return err
}
