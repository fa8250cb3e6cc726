package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/payroll"
	"github.com/ledgerline/ledgerline/internal/tax"
)

// reverse undoes every live line of an explanation inside the caller's unit
// of work: each source journal gets a mirrored counter-journal and its lines
// soft-deleted, and each referenced document is restored to the state it held
// before the explanation. History stays append-only except for tax payments,
// which are purged so the filing reads as never settled.
func reverse(ctx context.Context, st Store, txn transactionRef, e Explanation) error {
	reversed := make(map[int64]bool, len(e.Lines))
	for _, line := range e.Lines {
		if line.Deleted {
			continue
		}
		journalID := line.JournalID
		if journalID == 0 {
			// Lines imported before journal links were recorded: fall back
			// to the newest live journal of the matching reference type.
			journal, err := st.Ledger.FindByReference(ctx, txn.id, line.ReferenceType)
			if err != nil {
				return fmt.Errorf("locate journal for %s: %w", line.ReferenceType, err)
			}
			journalID = journal.ID
		}
		if !reversed[journalID] {
			if err := reverseJournal(ctx, st, journalID, txn.memo); err != nil {
				return err
			}
			reversed[journalID] = true
		}
		if err := restoreDocument(ctx, st, txn.id, line); err != nil {
			return err
		}
	}
	if len(reversed) == 0 {
		return ErrNothingToReverse
	}
	return nil
}

// transactionRef carries the two transaction fields reversal needs.
type transactionRef struct {
	id   int64
	memo string
}

func reverseJournal(ctx context.Context, st Store, journalID int64, memo string) error {
	journal, err := st.Ledger.GetJournalWithLines(ctx, journalID)
	if err != nil {
		return fmt.Errorf("load journal %d: %w", journalID, err)
	}
	counter, err := ledger.Reversal(journal, uuid.New(), memo)
	if err != nil {
		return fmt.Errorf("reverse journal %d: %w", journalID, err)
	}
	if _, err := st.Ledger.InsertJournal(ctx, counter); err != nil {
		return err
	}
	return st.Ledger.SoftDeleteLines(ctx, journalID)
}

func restoreDocument(ctx context.Context, st Store, transactionID int64, line ExplanationLine) error {
	switch line.ReferenceType {
	case ledger.RefBankReceipt:
		return restoreInvoice(ctx, st, transactionID, line, invoices.SettlementReceipt)
	case ledger.RefBankPayment:
		return restoreInvoice(ctx, st, transactionID, line, invoices.SettlementPayment)
	case ledger.RefRefund:
		return restoreCreditNote(ctx, st, transactionID, line)
	case ledger.RefPayrollExplained:
		return restorePayroll(ctx, st, transactionID, line)
	case ledger.RefVatPayment, ledger.RefVatClaim, ledger.RefCorporateTaxPayment:
		return restoreFiling(ctx, st, transactionID, line)
	case ledger.RefTransactionReconsile:
		// Generic categories touch no document beyond the journal.
		return nil
	default:
		return fmt.Errorf("%w: reference type %s", ErrNothingToReverse, line.ReferenceType)
	}
}

func restoreInvoice(ctx context.Context, st Store, transactionID int64, line ExplanationLine, kind invoices.SettlementKind) error {
	settlement, err := st.Invoices.FindSettlement(ctx, transactionID, line.ReferenceID, kind)
	if err != nil {
		return err
	}
	if err := st.Invoices.SoftDeleteSettlement(ctx, settlement.ID); err != nil {
		return err
	}
	inv, err := st.Invoices.GetInvoiceForUpdate(ctx, line.ReferenceID)
	if err != nil {
		return err
	}
	due := inv.DueAmount.Add(settlement.Amount)
	return st.Invoices.UpdateInvoiceDue(ctx, inv.ID, due, invoices.StatusForDue(due, inv.TotalAmount))
}

func restoreCreditNote(ctx context.Context, st Store, transactionID int64, line ExplanationLine) error {
	settlement, err := st.Invoices.FindSettlement(ctx, transactionID, line.ReferenceID, invoices.SettlementRefund)
	if err != nil {
		return err
	}
	if err := st.Invoices.SoftDeleteSettlement(ctx, settlement.ID); err != nil {
		return err
	}
	note, err := st.Invoices.GetCreditNoteForUpdate(ctx, line.ReferenceID)
	if err != nil {
		return err
	}
	due := note.DueAmount.Add(settlement.Amount)
	return st.Invoices.UpdateCreditNoteDue(ctx, note.ID, due, invoices.StatusForDue(due, note.TotalAmount))
}

func restorePayroll(ctx context.Context, st Store, transactionID int64, line ExplanationLine) error {
	alloc, err := st.Payrolls.FindAllocation(ctx, transactionID, line.ReferenceID)
	if err != nil {
		return err
	}
	if err := st.Payrolls.SoftDeleteAllocation(ctx, alloc.ID); err != nil {
		return err
	}
	run, err := st.Payrolls.GetPayrollForUpdate(ctx, line.ReferenceID)
	if err != nil {
		return err
	}
	due := run.DueAmount.Add(alloc.Amount)
	return st.Payrolls.UpdatePayrollDue(ctx, run.ID, due, payroll.StatusForDue(due, run.Amount))
}

func restoreFiling(ctx context.Context, st Store, transactionID int64, line ExplanationLine) error {
	filing, err := st.Tax.GetFilingForUpdate(ctx, line.ReferenceID)
	if err != nil {
		return err
	}
	payment, err := st.Tax.FindPaymentByTransaction(ctx, transactionID, filing.ID)
	if err != nil {
		return err
	}
	before := filing.BalanceDue.Add(payment.Amount)
	status := tax.StatusPartiallyPaid
	if before.Equal(filing.TotalAmount) {
		status = tax.StatusFiled
	}
	if err := st.Tax.UpdateFilingBalance(ctx, filing.ID, before, status); err != nil {
		return err
	}
	return st.Tax.HardDeletePayment(ctx, payment.ID)
}
