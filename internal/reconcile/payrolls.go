package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/payroll"
)

// payrollWorkflow walks the requested payroll runs with a three-way
// tie-break between the remaining transaction due and each payroll's due.
// Every payroll gets its own journal and allocation row so a later reversal
// can restore each run independently.
type payrollWorkflow struct{}

func (payrollWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	runs, err := st.Payrolls.ListPayrollsForUpdate(ctx, req.PayrollIDs)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollNotFound) {
			return plan{}, fmt.Errorf("%w: payroll", ErrDocumentNotFound)
		}
		return plan{}, err
	}

	// Preserve the caller-supplied order; the lock query returns id order.
	byID := make(map[int64]payroll.Payroll, len(runs))
	for _, p := range runs {
		byID[p.ID] = p
	}

	rate := rateOrOne(req.ExchangeRate)
	remaining := txn.DueAmount
	explained := decimal.Zero
	var postings []posting
	var mutations []mutation

	for _, id := range req.PayrollIDs {
		run, ok := byID[id]
		if !ok {
			return plan{}, fmt.Errorf("%w: payroll %d", ErrDocumentNotFound, id)
		}
		if remaining.IsZero() {
			break
		}
		if !run.DueAmount.IsPositive() {
			continue
		}

		// Tie-break: the smaller of the two dues settles in full.
		applied := run.DueAmount
		if remaining.LessThan(run.DueAmount) {
			applied = remaining
		}
		remaining = remaining.Sub(applied)
		explained = explained.Add(applied)

		newDue := run.DueAmount.Sub(applied)
		runID := run.ID
		runAmount := run.Amount
		mutations = append(mutations, func(ctx context.Context, st Store) error {
			return st.Payrolls.UpdatePayrollDue(ctx, runID, newDue, payroll.StatusForDue(newDue, runAmount))
		})

		converted := applied.Mul(rate)
		postings = append(postings, posting{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: ledger.RefPayrollExplained,
				ReferenceID:   runID,
				TransactionID: txn.ID,
				Lines:         twoLegs(txn.Flag, ledger.CategoryPayrollLiability, converted, rate),
			},
			lines: []lineSpec{{
				refType:       ledger.RefPayrollExplained,
				refID:         runID,
				amount:        applied,
				converted:     converted,
				rate:          rate,
				partiallyPaid: !newDue.IsZero(),
			}},
			allocs: []allocSpec{{payrollID: runID, amount: applied}},
		})
	}

	if !explained.IsPositive() {
		return plan{}, fmt.Errorf("%w: no payroll due to settle", ErrAmountMismatch)
	}

	return plan{
		category:    req.Category,
		description: req.Description,
		explained:   explained,
		postings:    postings,
		mutations:   mutations,
	}, nil
}
