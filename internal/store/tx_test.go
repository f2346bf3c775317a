package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingcore/internal/domain"
)

func seedAccount(t *testing.T, m *Memory, id, owner string, balance int64) {
	t.Helper()
	err := m.Accounts.Create(domain.Account{
		ID:               id,
		OwnerID:          owner,
		Type:             domain.AccountTypeTrading,
		Balance:          decimal.NewFromInt(balance),
		AvailableBalance: decimal.NewFromInt(balance),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestTx_RollbackRevertsAllStores(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedAccount(t, m, "acc-1", "c1", 1000)
	if err := m.Shares.Create(domain.Share{ID: "ACME", TotalNumberOfParts: 100, InitialPrice: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("seed share: %v", err)
	}

	tx, err := m.DB.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := m.Accounts.UpdateBalance(ctx, tx, "acc-1", decimal.NewFromInt(-300)); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	if err := m.Accounts.BlockFunds(ctx, tx, "acc-1", decimal.NewFromInt(200)); err != nil {
		t.Fatalf("block funds: %v", err)
	}
	if err := m.Shares.UpdateLastExecutedPrice(ctx, tx, "ACME", decimal.NewFromInt(12)); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if err := m.Positions.Save(ctx, tx, domain.NewSecuritiesPosition("c1", "ACME", 5)); err != nil {
		t.Fatalf("save position: %v", err)
	}
	if err := m.Orders.Save(ctx, tx, domain.Order{ID: "o1", ShareID: "ACME", Status: domain.OrderStatusActive}); err != nil {
		t.Fatalf("save order: %v", err)
	}
	if err := m.Transactions.Save(ctx, tx, domain.ShareTransaction{ID: "t1", ShareID: "ACME"}); err != nil {
		t.Fatalf("save transaction: %v", err)
	}

	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	acc, _ := m.Accounts.Get("acc-1")
	if !acc.Balance.Equal(decimal.NewFromInt(1000)) || !acc.AvailableBalance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("account not restored: balance=%s available=%s", acc.Balance, acc.AvailableBalance)
	}
	share, _ := m.Shares.FindByID(ctx, nil, "ACME")
	if !share.LastExecutedPrice.IsZero() {
		t.Errorf("last executed price not restored: %s", share.LastExecutedPrice)
	}
	if _, err := m.Positions.FindByCustomerIDAndShareID(ctx, nil, "c1", "ACME"); !domain.IsNotFound(err) {
		t.Errorf("position should be gone, got err=%v", err)
	}
	if _, err := m.Orders.Get("o1"); !domain.IsNotFound(err) {
		t.Errorf("order should be gone, got err=%v", err)
	}
	if got := m.Transactions.ListByShareID("ACME"); len(got) != 0 {
		t.Errorf("expected no transactions, got %d", len(got))
	}
}

func TestTx_CommitKeepsChanges(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedAccount(t, m, "acc-1", "c1", 1000)

	tx, _ := m.DB.Begin(ctx)
	if err := m.Accounts.UpdateBalance(ctx, tx, "acc-1", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Rollback after commit is a no-op.
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback after commit: %v", err)
	}

	acc, _ := m.Accounts.Get("acc-1")
	if !acc.Balance.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("balance = %s, want 1050", acc.Balance)
	}
}

func TestTx_FinishedTxRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedAccount(t, m, "acc-1", "c1", 1000)

	tx, _ := m.DB.Begin(ctx)
	_ = tx.Commit(ctx)

	if err := tx.Commit(ctx); !errors.Is(err, domain.ErrTxDone) {
		t.Errorf("second commit error = %v, want ErrTxDone", err)
	}
	err := m.Accounts.UpdateBalance(ctx, tx, "acc-1", decimal.NewFromInt(1))
	if !errors.Is(err, domain.ErrTxDone) {
		t.Errorf("mutation on finished tx error = %v, want ErrTxDone", err)
	}
}

type foreignTx struct{}

func (foreignTx) Commit(context.Context) error   { return nil }
func (foreignTx) Rollback(context.Context) error { return nil }

func TestTx_ForeignTxRejected(t *testing.T) {
	m := NewMemory()
	seedAccount(t, m, "acc-1", "c1", 1000)

	err := m.Accounts.UpdateBalance(context.Background(), foreignTx{}, "acc-1", decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("expected error for foreign transaction")
	}
}

func TestDB_BeginSerializes(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	// A second Begin must wait for the first transaction.
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := db.Begin(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while first tx is open, got %v", err)
	}

	done := make(chan error, 1)
	go func() {
		tx2, err := db.Begin(ctx)
		if err == nil {
			err = tx2.Commit(ctx)
		}
		done <- err
	}()

	_ = tx.Rollback(ctx)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second transaction failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second transaction never started")
	}
}
