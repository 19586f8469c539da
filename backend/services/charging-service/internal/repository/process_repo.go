package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"chargeshare/backend/services/charging-service/internal/models"
	"chargeshare/backend/services/charging-service/internal/store"
)

// ProcessRepository persists processes.
type ProcessRepository struct {
	tx *pgTx
}

const processColumns = `id, request_id, vehicle_owner_id, charger_owner_id, charger_id, status, date_created, date_completed,
	reason, base_amount, platform_fee, estimated_price, amount_paid, amount_charged,
	payment_method, payment_status, gateway_order_id, payment_key, redirect_url, transaction_id,
	vehicle_owner_confirmed_at, owner_approved_at,
	vehicle_owner_rating, vehicle_owner_comment, charger_owner_rating, charger_owner_comment`

func scanProcess(row rowScanner) (*models.Process, error) {
	var (
		p                  models.Process
		voRating, coRating sql.NullInt32
	)
	err := row.Scan(
		&p.ID,
		&p.RequestID,
		&p.VehicleOwnerID,
		&p.ChargerOwnerID,
		&p.ChargerID,
		&p.Status,
		&p.DateCreated,
		&p.DateCompleted,
		&p.Reason,
		&p.BaseAmount,
		&p.PlatformFee,
		&p.EstimatedPrice,
		&p.AmountPaid,
		&p.AmountCharged,
		&p.PaymentMethod,
		&p.PaymentStatus,
		&p.GatewayOrderID,
		&p.PaymentKey,
		&p.RedirectURL,
		&p.TransactionID,
		&p.VehicleOwnerConfirmedAt,
		&p.OwnerApprovedAt,
		&voRating,
		&p.VehicleOwnerComment,
		&coRating,
		&p.ChargerOwnerComment,
	)
	if err != nil {
		return nil, err
	}
	p.VehicleOwnerRating = intPtr(voRating)
	p.ChargerOwnerRating = intPtr(coRating)
	return &p, nil
}

func intPtr(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func (r *ProcessRepository) Create(ctx context.Context, p *models.Process) error {
	const query = `
		INSERT INTO processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		        $21, $22, $23, $24, $25, $26)
	`
	_, err := r.tx.tx.ExecContext(ctx, query,
		p.ID,
		p.RequestID,
		p.VehicleOwnerID,
		p.ChargerOwnerID,
		p.ChargerID,
		p.Status,
		p.DateCreated,
		p.DateCompleted,
		p.Reason,
		p.BaseAmount,
		p.PlatformFee,
		p.EstimatedPrice,
		p.AmountPaid,
		p.AmountCharged,
		p.PaymentMethod,
		p.PaymentStatus,
		p.GatewayOrderID,
		p.PaymentKey,
		p.RedirectURL,
		p.TransactionID,
		p.VehicleOwnerConfirmedAt,
		p.OwnerApprovedAt,
		nullInt(p.VehicleOwnerRating),
		p.VehicleOwnerComment,
		nullInt(p.ChargerOwnerRating),
		p.ChargerOwnerComment,
	)
	if err != nil && pgCode(err) == pgUniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

func (r *ProcessRepository) get(ctx context.Context, where string, arg any) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes WHERE ` + where
	p, err := scanProcess(r.tx.tx.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *ProcessRepository) Get(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	return r.get(ctx, "id = $1", id)
}

func (r *ProcessRepository) GetByRequest(ctx context.Context, requestID uuid.UUID) (*models.Process, error) {
	return r.get(ctx, "request_id = $1", requestID)
}

func (r *ProcessRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Process, error) {
	if orderID == "" {
		return nil, store.ErrNotFound
	}
	return r.get(ctx, "gateway_order_id = $1", orderID)
}

func (r *ProcessRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.ProcessStatus) error {
	const query = `UPDATE processes SET status = $3 WHERE id = $1 AND status = $2`
	res, err := r.tx.tx.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return err
	}
	err = expectAffected(res)
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	var exists bool
	if err := r.tx.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM processes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrStale
}

func (r *ProcessRepository) Save(ctx context.Context, p *models.Process) error {
	const query = `
		UPDATE processes
		SET date_completed = $2,
		    reason = $3,
		    amount_paid = $4,
		    amount_charged = $5,
		    payment_method = $6,
		    payment_status = $7,
		    gateway_order_id = $8,
		    payment_key = $9,
		    redirect_url = $10,
		    transaction_id = $11,
		    vehicle_owner_confirmed_at = $12,
		    owner_approved_at = $13,
		    vehicle_owner_rating = $14,
		    vehicle_owner_comment = $15,
		    charger_owner_rating = $16,
		    charger_owner_comment = $17
		WHERE id = $1
	`
	res, err := r.tx.tx.ExecContext(ctx, query,
		p.ID,
		p.DateCompleted,
		p.Reason,
		p.AmountPaid,
		p.AmountCharged,
		p.PaymentMethod,
		p.PaymentStatus,
		p.GatewayOrderID,
		p.PaymentKey,
		p.RedirectURL,
		p.TransactionID,
		p.VehicleOwnerConfirmedAt,
		p.OwnerApprovedAt,
		nullInt(p.VehicleOwnerRating),
		p.VehicleOwnerComment,
		nullInt(p.ChargerOwnerRating),
		p.ChargerOwnerComment,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
