package reconcile

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/shared"
)

func TestExplainRejectsConcurrentCallOnSameTransaction(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepository()
	svc := newTestService(repo)
	svc.redis = client

	acct := repo.seedAccount("Operating", dec("1000"))
	txn := repo.seedTransaction(banking.Transaction{
		BankAccountID: acct.ID,
		Amount:        dec("100"),
		Flag:          banking.Debit,
	})

	// Simulate another in-flight call holding the advisory lock.
	held, err := cache.TryLock(context.Background(), client, shared.TransactionLockKey(txn.ID), explainLockTTL)
	require.NoError(t, err)
	require.True(t, held)

	_, err = svc.Explain(context.Background(), ExplainRequest{
		TransactionID: &txn.ID,
		BankAccountID: acct.ID,
		Category:      ledger.CategoryExpense,
		Amount:        txn.Amount,
		Date:          explainDate(),
	})
	require.ErrorIs(t, err, ErrTransactionBusy)

	// Once the lock is released the explain goes through and releases its
	// own lock on the way out.
	require.NoError(t, cache.Unlock(context.Background(), client, shared.TransactionLockKey(txn.ID)))
	_, err = svc.Explain(context.Background(), ExplainRequest{
		TransactionID: &txn.ID,
		BankAccountID: acct.ID,
		Category:      ledger.CategoryExpense,
		Amount:        txn.Amount,
		Date:          explainDate(),
	})
	require.NoError(t, err)
	require.False(t, mr.Exists(shared.TransactionLockKey(txn.ID)))
}
