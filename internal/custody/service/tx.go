package service

import (
	"context"
	"sync"
	"time"

	dErrors "zimmet/pkg/domain-errors"
)

// LedgerTx provides the atomic boundary for ledger mutations. fn receives a
// context carrying the transaction (for stores that join it, such as the
// outbox) and a Store bound to the same unit of work.
type LedgerTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Snapshotter is implemented by in-memory stores so a failed unit of work can
// be rolled back.
type Snapshotter interface {
	Checkpoint() (restore func())
}

// defaultLedgerTxTimeout is the maximum duration for a ledger transaction.
const defaultLedgerTxTimeout = 5 * time.Second

// memoryLedgerTx serializes every mutation behind one lock. Accept, reject,
// cancel and return only know the transaction id, so a per-document shard
// cannot be chosen before the row is read.
type memoryLedgerTx struct {
	mu      sync.Mutex
	store   Store
	timeout time.Duration
}

// NewMemoryTx wraps store in a single-lock unit of work. When store
// implements Snapshotter, errors roll back every write made by fn.
func NewMemoryTx(store Store, timeout time.Duration) LedgerTx {
	return &memoryLedgerTx{store: store, timeout: timeout}
}

func (t *memoryLedgerTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if snap, ok := t.store.(Snapshotter); ok {
		restore := snap.Checkpoint()
		defer func() {
			if p := recover(); p != nil {
				restore()
				panic(p)
			}
			if err != nil {
				restore()
			}
		}()
	}

	return fn(ctx, t.store)
}
