package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// TransactionManager executes fn within a storage transaction, passing the
// backend's transaction handle through the opaque Tx argument. Repositories
// accept a nil Tx for the non-transactional path. The in-memory backend
// implements this with a plain mutex-guarded call.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
