package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/tax"
)

// taxWorkflow settles exactly one VAT or corporate-tax filing. Tax postings
// are always base currency, so the exchange rate on every leg is 1.
type taxWorkflow struct{}

func (taxWorkflow) plan(ctx context.Context, st Store, txn banking.Transaction, req ExplainRequest) (plan, error) {
	if req.FilingID == nil {
		return plan{}, fmt.Errorf("%w: filing reference required", ErrDocumentNotFound)
	}
	filing, err := st.Tax.GetFilingForUpdate(ctx, *req.FilingID)
	if err != nil {
		if errors.Is(err, tax.ErrFilingNotFound) {
			return plan{}, fmt.Errorf("%w: filing %d", ErrDocumentNotFound, *req.FilingID)
		}
		return plan{}, err
	}
	if err := matchFilingKind(req.Category, filing); err != nil {
		return plan{}, err
	}

	explained := txn.DueAmount
	balanceAfter, status := tax.Settle(filing, explained)

	var refType ledger.ReferenceType
	var destination ledger.Category
	switch req.Category {
	case ledger.CategoryVatPayment:
		refType = ledger.RefVatPayment
		destination = ledger.CategoryVatLiability
	case ledger.CategoryVatClaim:
		refType = ledger.RefVatClaim
		destination = ledger.CategoryVatLiability
	case ledger.CategoryCorporateTaxPayment:
		refType = ledger.RefCorporateTaxPayment
		destination = ledger.CategoryCorporationTax
	}

	filingID := filing.ID
	mutations := []mutation{
		func(ctx context.Context, st Store) error {
			return st.Tax.UpdateFilingBalance(ctx, filingID, balanceAfter, status)
		},
		func(ctx context.Context, st Store) error {
			_, err := st.Tax.InsertPayment(ctx, tax.Payment{
				FilingID:      filingID,
				TransactionID: txn.ID,
				Amount:        explained,
			}, balanceAfter, status)
			return err
		},
	}

	one := decimal.NewFromInt(1)
	return plan{
		category:    req.Category,
		description: req.Description,
		explained:   explained,
		mutations:   mutations,
		postings: []posting{{
			input: ledger.PostingInput{
				Date:          txn.Date,
				ReferenceType: refType,
				ReferenceID:   filingID,
				TransactionID: txn.ID,
				Lines:         twoLegs(txn.Flag, destination, explained, one),
			},
			lines: []lineSpec{{
				refType:   refType,
				refID:     filingID,
				amount:    explained,
				converted: explained,
				rate:      one,
			}},
		}},
	}, nil
}

func matchFilingKind(category ledger.Category, filing tax.Filing) error {
	switch category {
	case ledger.CategoryVatPayment, ledger.CategoryVatClaim:
		if filing.Kind != tax.KindVat {
			return fmt.Errorf("%w: filing %d is not a VAT filing", ErrDocumentNotFound, filing.ID)
		}
	case ledger.CategoryCorporateTaxPayment:
		if filing.Kind != tax.KindCorporateTax {
			return fmt.Errorf("%w: filing %d is not a corporate tax filing", ErrDocumentNotFound, filing.ID)
		}
	}
	return nil
}
