package banking

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStatusFor(t *testing.T) {
	amount := dec("1000")

	require.Equal(t, StatusNotExplained, StatusFor(dec("1000"), amount))
	require.Equal(t, StatusPartial, StatusFor(dec("400"), amount))
	require.Equal(t, StatusFull, StatusFor(decimal.Zero, amount))
}

func TestBalanceDelta(t *testing.T) {
	require.True(t, BalanceDelta(Debit, dec("250")).Equal(dec("-250")))
	require.True(t, BalanceDelta(Credit, dec("250")).Equal(dec("250")))
}

func TestTransactionValidate(t *testing.T) {
	txn := Transaction{
		BankAccountID: 1,
		Amount:        dec("10"),
		Flag:          Debit,
		Date:          time.Now(),
	}
	require.NoError(t, txn.Validate())

	missingAccount := txn
	missingAccount.BankAccountID = 0
	require.Error(t, missingAccount.Validate())

	zeroAmount := txn
	zeroAmount.Amount = decimal.Zero
	require.ErrorIs(t, zeroAmount.Validate(), ErrNegativeAmount)

	badFlag := txn
	badFlag.Flag = "X"
	require.Error(t, badFlag.Validate())
}
