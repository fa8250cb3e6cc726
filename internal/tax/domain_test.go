package tax

import (
	"testing"

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

func TestSettle(t *testing.T) {
	filing := Filing{BalanceDue: dec("500"), Status: StatusFiled}

	balance, status := Settle(filing, dec("500"))
	require.True(t, balance.IsZero())
	require.Equal(t, StatusPaid, status)

	balance, status = Settle(filing, dec("200"))
	require.True(t, balance.Equal(dec("300")))
	require.Equal(t, StatusPartiallyPaid, status)

	// Overpayment flips the remainder into a positive balance owed back.
	balance, status = Settle(filing, dec("600"))
	require.True(t, balance.Equal(dec("100")))
	require.Equal(t, StatusPartiallyPaid, status)

	// A reclaimable filing behaves the same while a balance remains.
	reclaimable := Filing{BalanceDue: dec("500"), Reclaimable: true}
	balance, status = Settle(reclaimable, dec("200"))
	require.True(t, balance.Equal(dec("300")))
	require.Equal(t, StatusPartiallyPaid, status)

	// Settled to zero it becomes a claim, not paid.
	balance, status = Settle(reclaimable, dec("500"))
	require.True(t, balance.IsZero())
	require.Equal(t, StatusClaimed, status)
}
