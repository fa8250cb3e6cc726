package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/tax"
)

func TestDispatchSelectsWorkflowByPayload(t *testing.T) {
	noteID := int64(5)
	cases := []struct {
		name string
		req  ExplainRequest
		want workflow
	}{
		{"expense with payrolls", ExplainRequest{Category: ledger.CategoryExpense, PayrollIDs: []int64{1}}, payrollWorkflow{}},
		{"expense with invoices", ExplainRequest{Category: ledger.CategoryExpense, Allocations: []InvoiceAllocation{{DocumentID: 1}}}, invoiceWorkflow{kind: invoices.KindSupplier}},
		{"plain expense", ExplainRequest{Category: ledger.CategoryExpense}, genericWorkflow{}},
		{"sales with invoices", ExplainRequest{Category: ledger.CategorySales, Allocations: []InvoiceAllocation{{DocumentID: 1}}}, invoiceWorkflow{kind: invoices.KindCustomer}},
		{"vat payment", ExplainRequest{Category: ledger.CategoryVatPayment}, taxWorkflow{}},
		{"transfer", ExplainRequest{Category: ledger.CategoryTransferdTo}, transferWorkflow{}},
		{"refund with credit note", ExplainRequest{Category: ledger.CategoryRefundReceived, CreditNoteID: &noteID}, creditNoteWorkflow{}},
		{"refund without credit note", ExplainRequest{Category: ledger.CategoryRefundReceived}, genericWorkflow{}},
		{"interest received", ExplainRequest{Category: ledger.CategoryInterestReceived}, genericWorkflow{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dispatch(tc.req)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := dispatch(ExplainRequest{Category: ledger.Category("MYSTERY")})
	require.ErrorIs(t, err, ErrUnrecognizedCategory)
}

func TestTaxWorkflowRejectsKindMismatch(t *testing.T) {
	repo := newMemRepository()
	filing := repo.seedFiling(tax.Filing{Kind: tax.KindCorporateTax, TotalAmount: dec("900")})
	txn := repo.seedTransaction(banking.Transaction{BankAccountID: 1, Amount: dec("900"), Flag: banking.Debit})

	err := repo.WithTx(context.Background(), func(ctx context.Context, st Store) error {
		_, err := taxWorkflow{}.plan(ctx, st, txn, ExplainRequest{
			Category: ledger.CategoryVatPayment,
			FilingID: &filing.ID,
		})
		return err
	})
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestTaxWorkflowReclaimableFilingStatus(t *testing.T) {
	t.Run("exact payment becomes a claim", func(t *testing.T) {
		repo := newMemRepository()
		svc := newTestService(repo)
		acct := repo.seedAccount("Operating", dec("2000"))
		filing := repo.seedFiling(tax.Filing{Kind: tax.KindVat, TotalAmount: dec("400"), Reclaimable: true})
		txn := repo.seedTransaction(banking.Transaction{BankAccountID: acct.ID, Amount: dec("400"), Flag: banking.Debit})

		_, err := svc.Explain(context.Background(), ExplainRequest{
			TransactionID: &txn.ID,
			BankAccountID: acct.ID,
			Category:      ledger.CategoryVatPayment,
			Amount:        txn.Amount,
			Date:          explainDate(),
			FilingID:      &filing.ID,
		})
		require.NoError(t, err)

		got := repo.filing(filing.ID)
		require.Equal(t, tax.StatusClaimed, got.Status)
		require.True(t, got.BalanceDue.IsZero())
	})

	t.Run("partial payment stays partially paid", func(t *testing.T) {
		repo := newMemRepository()
		svc := newTestService(repo)
		acct := repo.seedAccount("Operating", dec("2000"))
		filing := repo.seedFiling(tax.Filing{Kind: tax.KindVat, TotalAmount: dec("400"), Reclaimable: true})
		txn := repo.seedTransaction(banking.Transaction{BankAccountID: acct.ID, Amount: dec("100"), Flag: banking.Debit})

		_, err := svc.Explain(context.Background(), ExplainRequest{
			TransactionID: &txn.ID,
			BankAccountID: acct.ID,
			Category:      ledger.CategoryVatPayment,
			Amount:        txn.Amount,
			Date:          explainDate(),
			FilingID:      &filing.ID,
		})
		require.NoError(t, err)

		got := repo.filing(filing.ID)
		require.Equal(t, tax.StatusPartiallyPaid, got.Status)
		require.True(t, got.BalanceDue.Equal(dec("300")))
	})
}
