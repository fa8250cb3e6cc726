package payroll

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

func TestStatusForDue(t *testing.T) {
	amount := dec("300")

	require.Equal(t, StatusApproved, StatusForDue(dec("300"), amount))
	require.Equal(t, StatusPartiallyPaid, StatusForDue(dec("120"), amount))
	require.Equal(t, StatusPaid, StatusForDue(decimal.Zero, amount))
}
