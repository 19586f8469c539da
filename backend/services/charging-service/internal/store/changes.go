package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Hook is a pre-commit side effect. It receives the requests modified in the unit of work
// and may write through tx; its own writes are folded into the same commit.
type Hook func(ctx context.Context, tx Tx, changes *ChangeSet) error

// ChangeSet records charging requests written during a unit of work.
type ChangeSet struct {
	mu       sync.Mutex
	requests map[uuid.UUID]struct{}
	users    map[uuid.UUID]struct{}
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		requests: make(map[uuid.UUID]struct{}),
		users:    make(map[uuid.UUID]struct{}),
	}
}

// TouchRequest marks a request and the users it references as modified.
func (c *ChangeSet) TouchRequest(requestID uuid.UUID, userIDs ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[requestID] = struct{}{}
	for _, id := range userIDs {
		if id != uuid.Nil {
			c.users[id] = struct{}{}
		}
	}
}

// Empty reports whether no request was written.
func (c *ChangeSet) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests) == 0
}

// RequestIDs returns modified request ids in a stable order.
func (c *ChangeSet) RequestIDs() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.requests)
}

// UserIDs returns users referenced by modified requests in a stable order.
func (c *ChangeSet) UserIDs() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedKeys(c.users)
}

func sortedKeys(m map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Hooks is the registry shared by unit-of-work implementations.
type Hooks struct {
	mu    sync.RWMutex
	hooks []Hook
}

// RegisterHook appends a pre-commit hook.
func (h *Hooks) RegisterHook(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RunHooks invokes every hook once when the change set touched a request.
func (h *Hooks) RunHooks(ctx context.Context, tx Tx, changes *ChangeSet) error {
	if changes == nil || changes.Empty() {
		return nil
	}
	h.mu.RLock()
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, tx, changes); err != nil {
			return err
		}
	}
	return nil
}
