package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
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

func validPosting() PostingInput {
	return PostingInput{
		Date:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		ReferenceType: RefBankReceipt,
		ReferenceID:   7,
		TransactionID: 42,
		SourceID:      uuid.New(),
		Lines: []PostingLineInput{
			{Category: CategoryBank, Debit: dec("150.00"), ExchangeRate: dec("1")},
			{Category: CategoryAccountsReceivable, Credit: dec("150.00"), ExchangeRate: dec("1")},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	require.NoError(t, validPosting().Validate())

	imbalanced := validPosting()
	imbalanced.Lines[1].Credit = dec("149.99")
	require.ErrorIs(t, imbalanced.Validate(), ErrImbalance)

	single := validPosting()
	single.Lines = single.Lines[:1]
	require.ErrorIs(t, single.Validate(), ErrTooFewLines)

	both := validPosting()
	both.Lines[0].Credit = dec("1")
	require.Error(t, both.Validate())

	negative := validPosting()
	negative.Lines[0].Debit = dec("-150.00")
	require.Error(t, negative.Validate())
}

func TestReversalMirrorsLines(t *testing.T) {
	journal := Journal{
		ID:            11,
		Date:          time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		ReferenceType: RefBankReceipt,
		ReferenceID:   7,
		TransactionID: 42,
		Lines: []JournalLine{
			{Category: CategoryBank, Debit: dec("150.00"), ExchangeRate: dec("1")},
			{Category: CategoryAccountsReceivable, Credit: dec("150.00"), ExchangeRate: dec("1")},
		},
	}

	posting, err := Reversal(journal, uuid.New(), "")
	require.NoError(t, err)
	require.Equal(t, RefReverseBankReceipt, posting.ReferenceType)
	require.NotNil(t, posting.ReversalOf)
	require.Equal(t, int64(11), *posting.ReversalOf)
	require.Equal(t, journal.Date, posting.Date)

	require.True(t, posting.Lines[0].Credit.Equal(dec("150.00")))
	require.True(t, posting.Lines[0].Debit.IsZero())
	require.True(t, posting.Lines[1].Debit.Equal(dec("150.00")))
	require.NoError(t, posting.Validate())
}

func TestReversalSkipsDeletedLines(t *testing.T) {
	journal := Journal{
		ID:            3,
		Date:          time.Now(),
		ReferenceType: RefPayment,
		Lines: []JournalLine{
			{Category: CategoryBank, Credit: dec("10"), Deleted: true},
			{Category: CategoryAccountsPayable, Debit: dec("10"), Deleted: true},
		},
	}
	_, err := Reversal(journal, uuid.New(), "")
	require.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestReversedMapping(t *testing.T) {
	rev, ok := RefRefund.Reversed()
	require.True(t, ok)
	require.Equal(t, RefCancelRefund, rev)

	_, ok = RefReverseBankPayment.Reversed()
	require.False(t, ok)
}
