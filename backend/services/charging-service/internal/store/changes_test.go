package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChangeSetDeduplicates(t *testing.T) {
	cs := NewChangeSet()
	require.True(t, cs.Empty())

	req := uuid.New()
	a, b := uuid.New(), uuid.New()
	cs.TouchRequest(req, a, b)
	cs.TouchRequest(req, a, uuid.Nil)

	require.False(t, cs.Empty())
	require.Equal(t, []uuid.UUID{req}, cs.RequestIDs())
	require.ElementsMatch(t, []uuid.UUID{a, b}, cs.UserIDs())
}

func TestHooksSkipWithoutRequestChanges(t *testing.T) {
	var h Hooks
	calls := 0
	h.RegisterHook(func(ctx context.Context, tx Tx, changes *ChangeSet) error {
		calls++
		return nil
	})

	require.NoError(t, h.RunHooks(context.Background(), nil, NewChangeSet()))
	require.Zero(t, calls)

	cs := NewChangeSet()
	cs.TouchRequest(uuid.New())
	require.NoError(t, h.RunHooks(context.Background(), nil, cs))
	require.Equal(t, 1, calls)
}

func TestHooksStopOnError(t *testing.T) {
	var h Hooks
	boom := errors.New("boom")
	second := false
	h.RegisterHook(func(ctx context.Context, tx Tx, changes *ChangeSet) error { return boom })
	h.RegisterHook(func(ctx context.Context, tx Tx, changes *ChangeSet) error {
		second = true
		return nil
	})

	cs := NewChangeSet()
	cs.TouchRequest(uuid.New())
	require.ErrorIs(t, h.RunHooks(context.Background(), nil, cs), boom)
	require.False(t, second)
}
