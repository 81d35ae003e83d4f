package memstore

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"

	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager gives the in-memory backend the same transactional shape as
// postgres: a process-wide mutex serializes every WithTx body, which is what
// makes the submit-time FindCurrent/Enqueue pair atomic.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}
