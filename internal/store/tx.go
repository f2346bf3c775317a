package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/efreitasn/tradingcore/internal/domain"
)

// DB is the in-memory unit of work shared by the repositories of this
// package. Transactions are fully serialized: Begin blocks until the
// previous transaction has committed or rolled back. Calls made with a nil
// tx bypass that queue and apply immediately.
type DB struct {
	sem chan struct{}
}

// NewDB creates an idle DB.
func NewDB() *DB {
	return &DB{sem: make(chan struct{}, 1)}
}

// Begin waits for exclusive access and starts a transaction.
func (db *DB) Begin(ctx context.Context) (domain.Tx, error) {
	select {
	case db.sem <- struct{}{}:
		return &Tx{db: db}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tx records an undo action for every mutation applied through it.
// Rollback replays them in reverse order.
type Tx struct {
	db   *DB
	mu   sync.Mutex
	undo []func()
	done bool
}

// Commit discards the undo log and releases the DB.
func (tx *Tx) Commit(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return domain.ErrTxDone
	}
	tx.done = true
	tx.undo = nil
	<-tx.db.sem
	return nil
}

// Rollback reverts every mutation made through tx. It is a no-op once the
// transaction has finished.
func (tx *Tx) Rollback(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return nil
	}
	tx.done = true
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	<-tx.db.sem
	return nil
}

// onRollback registers fn to run if the transaction rolls back.
// A nil tx means the mutation is not transactional.
func (tx *Tx) onRollback(fn func()) {
	if tx == nil {
		return
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.undo = append(tx.undo, fn)
}

// txFrom unwraps a domain.Tx produced by DB.Begin.
func txFrom(tx domain.Tx) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}
	mt, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("store: foreign transaction type %T", tx)
	}
	if mt == nil {
		return nil, nil
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return nil, domain.ErrTxDone
	}
	return mt, nil
}

// Memory bundles a DB with one store per repository port.
type Memory struct {
	DB           *DB
	Shares       *ShareStore
	Orders       *OrderStore
	Accounts     *AccountStore
	Positions    *PositionStore
	Transactions *TransactionStore
}

// NewMemory creates empty in-memory repositories sharing one DB.
func NewMemory() *Memory {
	return &Memory{
		DB:           NewDB(),
		Shares:       NewShareStore(),
		Orders:       NewOrderStore(),
		Accounts:     NewAccountStore(),
		Positions:    NewPositionStore(),
		Transactions: NewTransactionStore(),
	}
}

// Repositories exposes the stores through the domain ports.
func (m *Memory) Repositories() domain.Repositories {
	return domain.Repositories{
		Shares:       m.Shares,
		Orders:       m.Orders,
		Accounts:     m.Accounts,
		Positions:    m.Positions,
		Transactions: m.Transactions,
		UnitOfWork:   m.DB,
	}
}

// Compile-time interface checks.
var (
	_ domain.UnitOfWork                   = (*DB)(nil)
	_ domain.ShareRepository              = (*ShareStore)(nil)
	_ domain.OrderRepository              = (*OrderStore)(nil)
	_ domain.AccountRepository            = (*AccountStore)(nil)
	_ domain.SecuritiesPositionRepository = (*PositionStore)(nil)
	_ domain.ShareTransactionRepository   = (*TransactionStore)(nil)
)
