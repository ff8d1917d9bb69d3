package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"zimmet/internal/custody/service"
	dErrors "zimmet/pkg/domain-errors"
	txcontext "zimmet/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx runs each unit of work in one SQL transaction. The context handed
// to fn carries the *sql.Tx so the outbox store writes in the same transaction.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresLedgerTx(db *sql.DB, timeout time.Duration) *PostgresTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &PostgresTx{db: db, timeout: timeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	err := txcontext.Run(ctx, t.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewPostgresTx(tx))
	})
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger transaction failed")
}
