package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category enumerates chart-of-account categories. The first block selects a
// reconciliation workflow; the second block only ever appears on journal legs.
type Category string

const (
	CategoryExpense                Category = "EXPENSE"
	CategoryMoneyPaidToUser        Category = "MONEY_PAID_TO_USER"
	CategoryTransferdTo            Category = "TRANSFERD_TO"
	CategoryMoneySpent             Category = "MONEY_SPENT"
	CategoryMoneySpentOthers       Category = "MONEY_SPENT_OTHERS"
	CategoryPurchaseOfCapitalAsset Category = "PURCHASE_OF_CAPITAL_ASSET"
	CategorySales                  Category = "SALES"
	CategoryVatPayment             Category = "VAT_PAYMENT"
	CategoryVatClaim               Category = "VAT_CLAIM"
	CategoryCorporateTaxPayment    Category = "CORPORATE_TAX_PAYMENT"
	CategoryTransferFrom           Category = "TRANSFER_FROM"
	CategoryRefundReceived         Category = "REFUND_RECEIVED"
	CategoryInterestReceived       Category = "INTEREST_RECEIVED"
	CategoryDisposalOfCapitalAsset Category = "DISPOSAL_OF_CAPITAL_ASSET"
	CategoryMoneyReceivedFromUser  Category = "MONEY_RECEIVED_FROM_USER"
	CategoryMoneyReceivedOthers    Category = "MONEY_RECEIVED_OTHERS"

	CategoryBank               Category = "BANK"
	CategoryAccountsReceivable Category = "ACCOUNTS_RECEIVABLE"
	CategoryAccountsPayable    Category = "ACCOUNTS_PAYABLE"
	CategorySalariesAndWages   Category = "SALARIES_AND_WAGES"
	CategoryPayrollLiability   Category = "PAYROLL_LIABILITY"
	CategoryInputVat           Category = "INPUT_VAT"
	CategoryOutputVat          Category = "OUTPUT_VAT"
	CategoryVatLiability       Category = "VAT_LIABILITY"
	CategoryCorporationTax     Category = "CORPORATION_TAX"
	CategoryExchangeGainOrLoss Category = "EXCHANGE_GAIN_OR_LOSS"
	CategoryAmountInTransit    Category = "AMOUNT_IN_TRANSIT"
)

// ReferenceType tags a journal with the business event that produced it.
type ReferenceType string

const (
	RefReceipt              ReferenceType = "RECEIPT"
	RefBankReceipt          ReferenceType = "BANK_RECEIPT"
	RefPayment              ReferenceType = "PAYMENT"
	RefBankPayment          ReferenceType = "BANK_PAYMENT"
	RefPayrollExplained     ReferenceType = "PAYROLL_EXPLAINED"
	RefTransactionReconsile ReferenceType = "TRANSACTION_RECONSILE"
	RefVatPayment           ReferenceType = "VAT_PAYMENT"
	RefVatClaim             ReferenceType = "VAT_CLAIM"
	RefCorporateTaxPayment  ReferenceType = "CORPORATE_TAX_PAYMENT"
	RefRefund               ReferenceType = "REFUND"

	RefReverseReceipt              ReferenceType = "REVERSE_RECEIPT"
	RefReverseBankReceipt          ReferenceType = "REVERSE_BANK_RECEIPT"
	RefReversePayment              ReferenceType = "REVERSE_PAYMENT"
	RefReverseBankPayment          ReferenceType = "REVERSE_BANK_PAYMENT"
	RefReversePayrollExplained     ReferenceType = "REVERSE_PAYROLL_EXPLAINED"
	RefReverseTransactionReconsile ReferenceType = "REVERSE_TRANSACTION_RECONSILE"
	RefReverseVatPayment           ReferenceType = "REVERSE_VAT_PAYMENT"
	RefReverseVatClaim             ReferenceType = "REVERSE_VAT_CLAIM"
	RefReverseCorporateTaxPayment  ReferenceType = "REVERSE_CORPORATE_TAX_PAYMENT"
	RefCancelRefund                ReferenceType = "CANCEL_REFUND"
)

var reverseRefs = map[ReferenceType]ReferenceType{
	RefReceipt:              RefReverseReceipt,
	RefBankReceipt:          RefReverseBankReceipt,
	RefPayment:              RefReversePayment,
	RefBankPayment:          RefReverseBankPayment,
	RefPayrollExplained:     RefReversePayrollExplained,
	RefTransactionReconsile: RefReverseTransactionReconsile,
	RefVatPayment:           RefReverseVatPayment,
	RefVatClaim:             RefReverseVatClaim,
	RefCorporateTaxPayment:  RefReverseCorporateTaxPayment,
	RefRefund:               RefCancelRefund,
}

// Reversed returns the REVERSE_* counterpart of a posting reference type.
// The second return is false for reference types that are already reversals.
func (t ReferenceType) Reversed() (ReferenceType, bool) {
	rev, ok := reverseRefs[t]
	return rev, ok
}

// Journal captures posting metadata. A journal whose ReversalOf is non-nil
// cancels the economic effect of the referenced journal.
type Journal struct {
	ID            int64
	Date          time.Time
	ReferenceType ReferenceType
	ReferenceID   int64
	TransactionID int64
	SourceID      uuid.UUID
	Memo          string
	ReversalOf    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Lines         []JournalLine
}

// JournalLine stores one debit or credit leg. Lines are append-only: reversal
// marks them deleted, it never removes rows.
type JournalLine struct {
	ID           int64
	JournalID    int64
	Category     Category
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	ExchangeRate decimal.Decimal
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	Category     Category
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	ExchangeRate decimal.Decimal
}

// PostingInput groups fields required to create a journal.
type PostingInput struct {
	Date          time.Time
	ReferenceType ReferenceType
	ReferenceID   int64
	TransactionID int64
	SourceID      uuid.UUID
	Memo          string
	ReversalOf    *int64
	Lines         []PostingLineInput
}

var (
	// ErrImbalance indicates sum(debit) != sum(credit).
	ErrImbalance = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrJournalNotFound indicates missing journal.
	ErrJournalNotFound = errors.New("ledger: journal not found")
	// ErrNotReversible indicates the reference type has no reverse counterpart.
	ErrNotReversible = errors.New("ledger: journal is not reversible")
	// ErrAlreadyReversed indicates the journal's lines are already deleted.
	ErrAlreadyReversed = errors.New("ledger: journal already reversed")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return errors.New("ledger: date required")
	}
	if in.ReferenceType == "" {
		return errors.New("ledger: reference type required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.Category == "" {
			return fmt.Errorf("ledger: line %d missing category", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrImbalance
	}
	return nil
}

// Reversal builds the mirror-image posting for a journal: every live line has
// its debit and credit swapped and the reference type is remapped to the
// REVERSE_* counterpart. The original journal's id is recorded as ReversalOf.
func Reversal(j Journal, sourceID uuid.UUID, memo string) (PostingInput, error) {
	reversedRef, ok := j.ReferenceType.Reversed()
	if !ok {
		return PostingInput{}, ErrNotReversible
	}
	lines := make([]PostingLineInput, 0, len(j.Lines))
	for _, line := range j.Lines {
		if line.Deleted {
			continue
		}
		lines = append(lines, PostingLineInput{
			Category:     line.Category,
			Debit:        line.Credit,
			Credit:       line.Debit,
			ExchangeRate: line.ExchangeRate,
		})
	}
	if len(lines) == 0 {
		return PostingInput{}, ErrAlreadyReversed
	}
	original := j.ID
	if memo == "" {
		memo = fmt.Sprintf("Reversal of journal %d", j.ID)
	}
	return PostingInput{
		Date:          j.Date,
		ReferenceType: reversedRef,
		ReferenceID:   j.ReferenceID,
		TransactionID: j.TransactionID,
		SourceID:      sourceID,
		Memo:          memo,
		ReversalOf:    &original,
		Lines:         lines,
	}, nil
}
