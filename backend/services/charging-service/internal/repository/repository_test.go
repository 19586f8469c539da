package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"chargeshare/backend/services/charging-service/internal/store"
)

func TestNotFoundMapsNoRows(t *testing.T) {
	require.ErrorIs(t, notFound(sql.ErrNoRows), store.ErrNotFound)
	require.ErrorIs(t, notFound(fmt.Errorf("scan: %w", sql.ErrNoRows)), store.ErrNotFound)

	other := errors.New("connection reset")
	require.Equal(t, other, notFound(other))
}

func TestPgCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation})
	require.Equal(t, pgUniqueViolation, pgCode(err))
	require.Empty(t, pgCode(errors.New("plain")))
}

func TestUUIDStrings(t *testing.T) {
	id := uuid.New()
	require.Equal(t, []string{id.String()}, uuidStrings([]uuid.UUID{id}))
	require.Empty(t, uuidStrings(nil))
	require.NotNil(t, uuidStrings(nil))
}

func TestNilIntRoundTrip(t *testing.T) {
	require.Nil(t, intPtr(nullInt(nil)))
	four := 4
	got := intPtr(nullInt(&four))
	require.NotNil(t, got)
	require.Equal(t, 4, *got)
}
