package repository

import (
	"context"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

// NotificationRepository persists notifications.
type NotificationRepository struct {
	tx *pgTx
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	const query = `
		INSERT INTO notifications (id, user_id, request_id, event_type, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
	`
	payload := string(n.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := r.tx.tx.ExecContext(ctx, query, n.ID, n.UserID, n.RequestID, n.EventType, payload, n.IsRead, n.CreatedAt)
	if err != nil && pgCode(err) == pgForeignKeyViolation {
		return store.ErrNotFound
	}
	return err
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, request_id, event_type, payload::text, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.tx.tx.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var (
			n       models.Notification
			payload string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.RequestID, &n.EventType, &payload, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Payload = []byte(payload)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepository) DeleteByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (int64, error) {
	if len(requestIDs) == 0 {
		return 0, nil
	}
	res, err := r.tx.tx.ExecContext(ctx, `DELETE FROM notifications WHERE request_id = ANY($1::text[]::uuid[])`, uuidStrings(requestIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FeesRepository persists the fees configuration singleton row.
type FeesRepository struct {
	tx *pgTx
}

func (r *FeesRepository) Get(ctx context.Context) (*models.FeesConfig, error) {
	const query = `SELECT minimum_fee, percentage, updated_at, updated_by FROM fees_config WHERE id = 1`
	var cfg models.FeesConfig
	if err := r.tx.tx.QueryRowContext(ctx, query).Scan(&cfg.MinimumFee, &cfg.Percentage, &cfg.UpdatedAt, &cfg.UpdatedBy); err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (r *FeesRepository) Upsert(ctx context.Context, cfg *models.FeesConfig) error {
	const query = `
		INSERT INTO fees_config (id, minimum_fee, percentage, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			minimum_fee = EXCLUDED.minimum_fee,
			percentage = EXCLUDED.percentage,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`
	_, err := r.tx.tx.ExecContext(ctx, query, cfg.MinimumFee, cfg.Percentage, cfg.UpdatedAt, cfg.UpdatedBy)
	return err
}
