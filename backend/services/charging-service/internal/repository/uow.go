package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	libdb "chargeshare/backend/libs/db"
	"chargeshare/backend/services/charging-service/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// UnitOfWork runs store transactions on Postgres at READ COMMITTED. Status writes are
// conditional, so stale reads surface as store.ErrStale instead of lost updates.
type UnitOfWork struct {
	store.Hooks
	db *sql.DB
}

var _ store.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork returns unit of work.
func NewUnitOfWork(db *sql.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn and the registered hooks in one transaction.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return libdb.WithTx(ctx, u.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(sqlTx *sql.Tx) error {
		tx := &pgTx{tx: sqlTx, changes: store.NewChangeSet()}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return u.RunHooks(ctx, tx, tx.changes)
	})
}

type pgTx struct {
	tx      *sql.Tx
	changes *store.ChangeSet
}

func (t *pgTx) Requests() store.RequestRepository           { return &RequestRepository{tx: t} }
func (t *pgTx) Processes() store.ProcessRepository          { return &ProcessRepository{tx: t} }
func (t *pgTx) Users() store.UserRepository                 { return &UserRepository{tx: t} }
func (t *pgTx) Chargers() store.ChargerRepository           { return &ChargerRepository{tx: t} }
func (t *pgTx) Notifications() store.NotificationRepository { return &NotificationRepository{tx: t} }
func (t *pgTx) Fees() store.FeesRepository                  { return &FeesRepository{tx: t} }

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// expectAffected turns a zero-row write into store.ErrNotFound.
func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
