package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

// RequestRepository persists charging requests.
type RequestRepository struct {
	tx *pgTx
}

const requestColumns = `id, vehicle_owner_id, charger_id, charger_owner_id, kw_needed, battery_pct, latitude, longitude,
	status, base_amount, platform_fee, estimated_price, requested_at, responded_at, confirmed_at`

func scanRequest(row rowScanner) (*models.ChargingRequest, error) {
	var r models.ChargingRequest
	err := row.Scan(
		&r.ID,
		&r.VehicleOwnerID,
		&r.ChargerID,
		&r.ChargerOwnerID,
		&r.KWNeeded,
		&r.BatteryPct,
		&r.Latitude,
		&r.Longitude,
		&r.Status,
		&r.BaseAmount,
		&r.PlatformFee,
		&r.EstimatedPrice,
		&r.RequestedAt,
		&r.RespondedAt,
		&r.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *models.ChargingRequest) error {
	const query = `
		INSERT INTO charging_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.tx.tx.ExecContext(ctx, query,
		req.ID,
		req.VehicleOwnerID,
		req.ChargerID,
		req.ChargerOwnerID,
		req.KWNeeded,
		req.BatteryPct,
		req.Latitude,
		req.Longitude,
		req.Status,
		req.BaseAmount,
		req.PlatformFee,
		req.EstimatedPrice,
		req.RequestedAt,
		req.RespondedAt,
		req.ConfirmedAt,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return store.ErrDuplicate
		}
		return err
	}
	r.tx.changes.TouchRequest(req.ID, req.VehicleOwnerID, req.ChargerOwnerID)
	return nil
}

func (r *RequestRepository) Get(ctx context.Context, id uuid.UUID) (*models.ChargingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM charging_requests WHERE id = $1`
	req, err := scanRequest(r.tx.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *RequestRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChargingRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + requestColumns + `
		FROM charging_requests
		WHERE vehicle_owner_id = $1 OR charger_owner_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`
	rows, err := r.tx.tx.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChargingRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasActive serializes concurrent submissions for the same pair with a transaction-scoped
// advisory lock before checking.
func (r *RequestRepository) HasActive(ctx context.Context, vehicleOwnerID, chargerID uuid.UUID, pendingSince time.Time) (bool, error) {
	if _, err := r.tx.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		"charging_request:"+vehicleOwnerID.String()+":"+chargerID.String()); err != nil {
		return false, err
	}

	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM charging_requests r
			LEFT JOIN processes p ON p.request_id = r.id
			WHERE r.vehicle_owner_id = $1
			  AND r.charger_id = $2
			  AND (
				(r.status = 'pending' AND r.requested_at > $3)
				OR r.status = 'accepted'
				OR (r.status = 'confirmed' AND p.status IN ('pending', 'in_progress'))
			  )
		)
	`
	var exists bool
	if err := r.tx.tx.QueryRowContext(ctx, query, vehicleOwnerID, chargerID, pendingSince).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *RequestRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.RequestStatus, at time.Time) error {
	const query = `
		UPDATE charging_requests
		SET status = $3::text,
		    responded_at = CASE WHEN $3::text IN ('accepted', 'rejected') THEN COALESCE(responded_at, $4) ELSE responded_at END,
		    confirmed_at = CASE WHEN $3::text = 'confirmed' THEN $4 ELSE confirmed_at END
		WHERE id = $1 AND status = $2
		RETURNING vehicle_owner_id, charger_owner_id
	`
	var vehicleOwnerID, chargerOwnerID uuid.UUID
	err := r.tx.tx.QueryRowContext(ctx, query, id, from, to, at).Scan(&vehicleOwnerID, &chargerOwnerID)
	if err == nil {
		r.tx.changes.TouchRequest(id, vehicleOwnerID, chargerOwnerID)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.tx.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM charging_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrStale
}

func (r *RequestRepository) ListSweepable(ctx context.Context, userIDs []uuid.UUID, staleBefore time.Time, skip []uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	const query = `
		SELECT r.id
		FROM charging_requests r
		WHERE (r.vehicle_owner_id = ANY($1::text[]::uuid[]) OR r.charger_owner_id = ANY($1::text[]::uuid[]))
		  AND ((r.status = 'pending' AND r.requested_at <= $2) OR r.status = 'rejected')
		  AND NOT (r.id = ANY($3::text[]::uuid[]))
		  AND NOT EXISTS (SELECT 1 FROM processes p WHERE p.request_id = r.id)
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.tx.tx.QueryContext(ctx, query, uuidStrings(userIDs), staleBefore, uuidStrings(skip))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *RequestRepository) DeleteMany(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.tx.tx.ExecContext(ctx, `DELETE FROM charging_requests WHERE id = ANY($1::text[]::uuid[])`, uuidStrings(ids))
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return 0, store.ErrReferenced
		}
		return 0, err
	}
	return res.RowsAffected()
}
