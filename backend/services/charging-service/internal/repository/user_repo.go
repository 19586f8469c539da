package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

// UserRepository persists participant activity.
type UserRepository struct {
	tx *pgTx
}

func (r *UserRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const query = `SELECT id, push_token, current_process_id, is_available FROM users WHERE id = $1`
	var u models.User
	if err := r.tx.tx.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.PushToken, &u.CurrentProcessID, &u.IsAvailable); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) SetActivity(ctx context.Context, userID, processID uuid.UUID) error {
	const query = `UPDATE users SET current_process_id = $2, is_available = FALSE WHERE id = $1`
	res, err := r.tx.tx.ExecContext(ctx, query, userID, processID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ClearActivity compares and clears under the row lock taken by the update.
func (r *UserRepository) ClearActivity(ctx context.Context, userID, processID uuid.UUID) (bool, error) {
	const query = `
		WITH prev AS (
			SELECT id, current_process_id FROM users WHERE id = $1 FOR UPDATE
		)
		UPDATE users u
		SET current_process_id = CASE WHEN prev.current_process_id = $2 THEN NULL ELSE prev.current_process_id END,
		    is_available = CASE
		        WHEN prev.current_process_id IS NULL OR prev.current_process_id = $2 THEN TRUE
		        ELSE u.is_available
		    END
		FROM prev
		WHERE u.id = prev.id
		RETURNING COALESCE(prev.current_process_id = $2, FALSE)
	`
	var cleared bool
	if err := r.tx.tx.QueryRowContext(ctx, query, userID, processID).Scan(&cleared); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, store.ErrNotFound
		}
		return false, err
	}
	return cleared, nil
}

// ChargerRepository reads chargers.
type ChargerRepository struct {
	tx *pgTx
}

func (r *ChargerRepository) Get(ctx context.Context, id uuid.UUID) (*models.Charger, error) {
	const query = `SELECT id, owner_id, price_per_kwh, is_active, is_deleted FROM chargers WHERE id = $1`
	var c models.Charger
	if err := r.tx.tx.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.OwnerID, &c.PricePerKWh, &c.IsActive, &c.IsDeleted); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
