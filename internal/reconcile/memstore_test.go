package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/invoices"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/payroll"
	"github.com/ledgerline/ledgerline/internal/tax"
)

// memRepository backs the service with plain maps. WithTx snapshots the
// state up front and restores it when fn fails, mirroring the rollback
// behaviour of the real unit of work.
type memRepository struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	accounts     map[int64]banking.BankAccount
	transactions map[int64]banking.Transaction
	journals     map[int64]ledger.Journal
	invoices     map[int64]invoices.Invoice
	creditNotes  map[int64]invoices.CreditNote
	settlements  map[int64]invoices.Settlement
	payrolls     map[int64]payroll.Payroll
	allocations  map[int64]payroll.Allocation
	filings      map[int64]tax.Filing
	taxPayments  map[int64]tax.Payment
	taxHistory   map[int64]tax.PaymentHistory
	explanations map[int64]Explanation
	nextID       int64
}

func newMemRepository() *memRepository {
	return &memRepository{state: &memState{
		accounts:     map[int64]banking.BankAccount{},
		transactions: map[int64]banking.Transaction{},
		journals:     map[int64]ledger.Journal{},
		invoices:     map[int64]invoices.Invoice{},
		creditNotes:  map[int64]invoices.CreditNote{},
		settlements:  map[int64]invoices.Settlement{},
		payrolls:     map[int64]payroll.Payroll{},
		allocations:  map[int64]payroll.Allocation{},
		filings:      map[int64]tax.Filing{},
		taxPayments:  map[int64]tax.Payment{},
		taxHistory:   map[int64]tax.PaymentHistory{},
		explanations: map[int64]Explanation{},
	}}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memState) clone() *memState {
	out := &memState{
		accounts:     map[int64]banking.BankAccount{},
		transactions: map[int64]banking.Transaction{},
		journals:     map[int64]ledger.Journal{},
		invoices:     map[int64]invoices.Invoice{},
		creditNotes:  map[int64]invoices.CreditNote{},
		settlements:  map[int64]invoices.Settlement{},
		payrolls:     map[int64]payroll.Payroll{},
		allocations:  map[int64]payroll.Allocation{},
		filings:      map[int64]tax.Filing{},
		taxPayments:  map[int64]tax.Payment{},
		taxHistory:   map[int64]tax.PaymentHistory{},
		explanations: map[int64]Explanation{},
		nextID:       s.nextID,
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.transactions {
		out.transactions[k] = v
	}
	for k, v := range s.journals {
		v.Lines = append([]ledger.JournalLine(nil), v.Lines...)
		out.journals[k] = v
	}
	for k, v := range s.invoices {
		out.invoices[k] = v
	}
	for k, v := range s.creditNotes {
		out.creditNotes[k] = v
	}
	for k, v := range s.settlements {
		out.settlements[k] = v
	}
	for k, v := range s.payrolls {
		out.payrolls[k] = v
	}
	for k, v := range s.allocations {
		out.allocations[k] = v
	}
	for k, v := range s.filings {
		out.filings[k] = v
	}
	for k, v := range s.taxPayments {
		out.taxPayments[k] = v
	}
	for k, v := range s.taxHistory {
		out.taxHistory[k] = v
	}
	for k, v := range s.explanations {
		v.Lines = append([]ExplanationLine(nil), v.Lines...)
		out.explanations[k] = v
	}
	return out
}

func (r *memRepository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	store := Store{
		Banking:      &memBanking{s: r.state},
		Ledger:       &memLedger{s: r.state},
		Invoices:     &memInvoices{s: r.state},
		Payrolls:     &memPayrolls{s: r.state},
		Tax:          &memTax{s: r.state},
		Explanations: &memExplanations{s: r.state},
	}
	if err := fn(ctx, store); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memRepository) GetTransaction(ctx context.Context, id int64) (banking.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memBanking{s: r.state}).GetTransactionForUpdate(ctx, id)
}

func (r *memRepository) ListExplanations(ctx context.Context, transactionID int64) ([]Explanation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Explanation
	for _, e := range r.state.explanations {
		if e.TransactionID == transactionID && !e.Deleted {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListByTransaction satisfies the journal reader port.
func (r *memRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]ledger.Journal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.Journal
	for _, j := range r.state.journals {
		if j.TransactionID == transactionID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetAccount satisfies the lister port.
func (r *memRepository) GetAccount(ctx context.Context, id int64) (banking.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.state.accounts[id]
	if !ok || acct.Deleted {
		return banking.BankAccount{}, banking.ErrAccountNotFound
	}
	return acct, nil
}

// CountExplained satisfies the lister port.
func (r *memRepository) CountExplained(ctx context.Context, bankAccountID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.state.transactions {
		if !t.Deleted && t.BankAccountID == bankAccountID && t.Status == banking.StatusFull {
			count++
		}
	}
	return count, nil
}

// ListTransactions satisfies the lister port.
func (r *memRepository) ListTransactions(ctx context.Context, filter banking.ListFilter) ([]banking.Transaction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []banking.Transaction
	for _, t := range r.state.transactions {
		if t.Deleted || t.BankAccountID != filter.BankAccountID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

// seed helpers

func (r *memRepository) seedAccount(name string, balance decimal.Decimal) banking.BankAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct := banking.BankAccount{
		ID:             r.state.id(),
		Name:           name,
		Kind:           banking.AccountKindBank,
		CurrentBalance: balance,
	}
	r.state.accounts[acct.ID] = acct
	return acct
}

func (r *memRepository) seedTransaction(t banking.Transaction) banking.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.state.id()
	if t.DueAmount.IsZero() && t.Status != banking.StatusFull {
		t.DueAmount = t.Amount
	}
	if t.Status == "" {
		t.Status = banking.StatusNotExplained
	}
	if t.Date.IsZero() {
		t.Date = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	}
	r.state.transactions[t.ID] = t
	return t
}

func (r *memRepository) seedInvoice(inv invoices.Invoice) invoices.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.ID = r.state.id()
	if inv.DueAmount.IsZero() && inv.Status != invoices.StatusPaid {
		inv.DueAmount = inv.TotalAmount
	}
	if inv.Status == "" {
		inv.Status = invoices.StatusOpen
	}
	r.state.invoices[inv.ID] = inv
	return inv
}

func (r *memRepository) seedCreditNote(note invoices.CreditNote) invoices.CreditNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	note.ID = r.state.id()
	if note.DueAmount.IsZero() {
		note.DueAmount = note.TotalAmount
	}
	if note.Status == "" {
		note.Status = invoices.StatusOpen
	}
	r.state.creditNotes[note.ID] = note
	return note
}

func (r *memRepository) seedPayroll(run payroll.Payroll) payroll.Payroll {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = r.state.id()
	if run.DueAmount.IsZero() && run.Status != payroll.StatusPaid {
		run.DueAmount = run.Amount
	}
	if run.Status == "" {
		run.Status = payroll.StatusApproved
	}
	r.state.payrolls[run.ID] = run
	return run
}

func (r *memRepository) seedFiling(f tax.Filing) tax.Filing {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = r.state.id()
	if f.BalanceDue.IsZero() && f.Status != tax.StatusPaid {
		f.BalanceDue = f.TotalAmount
	}
	if f.Status == "" {
		f.Status = tax.StatusFiled
	}
	r.state.filings[f.ID] = f
	return f
}

func (r *memRepository) account(id int64) banking.BankAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.accounts[id]
}

func (r *memRepository) transaction(id int64) banking.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.transactions[id]
}

func (r *memRepository) invoice(id int64) invoices.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.invoices[id]
}

func (r *memRepository) creditNote(id int64) invoices.CreditNote {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.creditNotes[id]
}

func (r *memRepository) payrollRun(id int64) payroll.Payroll {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.payrolls[id]
}

func (r *memRepository) filing(id int64) tax.Filing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.filings[id]
}

func (r *memRepository) journalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.journals)
}

// memBanking

type memBanking struct{ s *memState }

func (m *memBanking) GetTransactionForUpdate(ctx context.Context, id int64) (banking.Transaction, error) {
	t, ok := m.s.transactions[id]
	if !ok || t.Deleted {
		return banking.Transaction{}, banking.ErrTransactionNotFound
	}
	return t, nil
}

func (m *memBanking) InsertTransaction(ctx context.Context, t banking.Transaction) (banking.Transaction, error) {
	t.ID = m.s.id()
	t.DueAmount = t.Amount
	t.Status = banking.StatusNotExplained
	m.s.transactions[t.ID] = t
	return t, nil
}

func (m *memBanking) UpdateExplained(ctx context.Context, t banking.Transaction) error {
	if _, ok := m.s.transactions[t.ID]; !ok {
		return banking.ErrTransactionNotFound
	}
	m.s.transactions[t.ID] = t
	return nil
}

func (m *memBanking) ClearExplanation(ctx context.Context, id int64, due decimal.Decimal, status banking.ExplanationStatus) error {
	t, ok := m.s.transactions[id]
	if !ok || t.Deleted {
		return banking.ErrTransactionNotFound
	}
	t.DueAmount = due
	t.Status = status
	t.ExplainedCategory = nil
	t.ContactID = nil
	t.AttachmentRef = nil
	m.s.transactions[id] = t
	return nil
}

func (m *memBanking) SoftDeleteTransaction(ctx context.Context, id int64) error {
	t, ok := m.s.transactions[id]
	if !ok || t.Deleted {
		return banking.ErrTransactionNotFound
	}
	t.Deleted = true
	m.s.transactions[id] = t
	return nil
}

func (m *memBanking) GetAccountForUpdate(ctx context.Context, id int64) (banking.BankAccount, error) {
	a, ok := m.s.accounts[id]
	if !ok {
		return banking.BankAccount{}, banking.ErrAccountNotFound
	}
	return a, nil
}

func (m *memBanking) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	a, ok := m.s.accounts[id]
	if !ok {
		return banking.ErrAccountNotFound
	}
	a.CurrentBalance = balance
	m.s.accounts[id] = a
	return nil
}

func (m *memBanking) FindAccountByName(ctx context.Context, name string) (banking.BankAccount, error) {
	for _, a := range m.s.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return banking.BankAccount{}, banking.ErrAccountNotFound
}

// memLedger

type memLedger struct{ s *memState }

func (m *memLedger) InsertJournal(ctx context.Context, in ledger.PostingInput) (ledger.Journal, error) {
	if err := in.Validate(); err != nil {
		return ledger.Journal{}, err
	}
	j := ledger.Journal{
		ID:            m.s.id(),
		Date:          in.Date,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		TransactionID: in.TransactionID,
		SourceID:      in.SourceID,
		Memo:          in.Memo,
		ReversalOf:    in.ReversalOf,
	}
	for _, line := range in.Lines {
		j.Lines = append(j.Lines, ledger.JournalLine{
			ID:           m.s.id(),
			JournalID:    j.ID,
			Category:     line.Category,
			Debit:        line.Debit,
			Credit:       line.Credit,
			ExchangeRate: line.ExchangeRate,
		})
	}
	m.s.journals[j.ID] = j
	return j, nil
}

func (m *memLedger) GetJournalWithLines(ctx context.Context, id int64) (ledger.Journal, error) {
	j, ok := m.s.journals[id]
	if !ok {
		return ledger.Journal{}, ledger.ErrJournalNotFound
	}
	return j, nil
}

func (m *memLedger) FindByReference(ctx context.Context, transactionID int64, refTypes ...ledger.ReferenceType) (ledger.Journal, error) {
	var found *ledger.Journal
	for _, j := range m.s.journals {
		if j.TransactionID != transactionID {
			continue
		}
		for _, rt := range refTypes {
			if j.ReferenceType == rt && (found == nil || j.ID > found.ID) {
				copied := j
				found = &copied
			}
		}
	}
	if found == nil {
		return ledger.Journal{}, ledger.ErrJournalNotFound
	}
	return *found, nil
}

func (m *memLedger) SoftDeleteLines(ctx context.Context, journalID int64) error {
	j, ok := m.s.journals[journalID]
	if !ok {
		return ledger.ErrJournalNotFound
	}
	lines := append([]ledger.JournalLine(nil), j.Lines...)
	for i := range lines {
		lines[i].Deleted = true
	}
	j.Lines = lines
	m.s.journals[journalID] = j
	return nil
}

// memInvoices

type memInvoices struct{ s *memState }

func (m *memInvoices) GetInvoiceForUpdate(ctx context.Context, id int64) (invoices.Invoice, error) {
	inv, ok := m.s.invoices[id]
	if !ok || inv.Deleted {
		return invoices.Invoice{}, invoices.ErrInvoiceNotFound
	}
	return inv, nil
}

func (m *memInvoices) UpdateInvoiceDue(ctx context.Context, id int64, due decimal.Decimal, status invoices.Status) error {
	inv, ok := m.s.invoices[id]
	if !ok {
		return invoices.ErrInvoiceNotFound
	}
	inv.DueAmount = due
	inv.Status = status
	m.s.invoices[id] = inv
	return nil
}

func (m *memInvoices) GetCreditNoteForUpdate(ctx context.Context, id int64) (invoices.CreditNote, error) {
	note, ok := m.s.creditNotes[id]
	if !ok || note.Deleted {
		return invoices.CreditNote{}, invoices.ErrCreditNoteNotFound
	}
	return note, nil
}

func (m *memInvoices) UpdateCreditNoteDue(ctx context.Context, id int64, due decimal.Decimal, status invoices.Status) error {
	note, ok := m.s.creditNotes[id]
	if !ok {
		return invoices.ErrCreditNoteNotFound
	}
	note.DueAmount = due
	note.Status = status
	m.s.creditNotes[id] = note
	return nil
}

func (m *memInvoices) InsertSettlement(ctx context.Context, in invoices.Settlement) (invoices.Settlement, error) {
	in.ID = m.s.id()
	m.s.settlements[in.ID] = in
	return in, nil
}

func (m *memInvoices) FindSettlement(ctx context.Context, transactionID, documentID int64, kind invoices.SettlementKind) (invoices.Settlement, error) {
	for _, s := range m.s.settlements {
		if s.TransactionID == transactionID && s.DocumentID == documentID && s.Kind == kind && !s.Deleted {
			return s, nil
		}
	}
	return invoices.Settlement{}, invoices.ErrSettlementNotFound
}

func (m *memInvoices) SoftDeleteSettlement(ctx context.Context, id int64) error {
	s, ok := m.s.settlements[id]
	if !ok {
		return invoices.ErrSettlementNotFound
	}
	s.Deleted = true
	m.s.settlements[id] = s
	return nil
}

// memPayrolls

type memPayrolls struct{ s *memState }

func (m *memPayrolls) GetPayrollForUpdate(ctx context.Context, id int64) (payroll.Payroll, error) {
	run, ok := m.s.payrolls[id]
	if !ok || run.Deleted {
		return payroll.Payroll{}, payroll.ErrPayrollNotFound
	}
	return run, nil
}

func (m *memPayrolls) ListPayrollsForUpdate(ctx context.Context, ids []int64) ([]payroll.Payroll, error) {
	var out []payroll.Payroll
	for _, id := range ids {
		run, ok := m.s.payrolls[id]
		if !ok || run.Deleted {
			return nil, payroll.ErrPayrollNotFound
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPayrolls) UpdatePayrollDue(ctx context.Context, id int64, due decimal.Decimal, status payroll.Status) error {
	run, ok := m.s.payrolls[id]
	if !ok {
		return payroll.ErrPayrollNotFound
	}
	run.DueAmount = due
	run.Status = status
	m.s.payrolls[id] = run
	return nil
}

func (m *memPayrolls) InsertAllocation(ctx context.Context, in payroll.Allocation) (payroll.Allocation, error) {
	in.ID = m.s.id()
	m.s.allocations[in.ID] = in
	return in, nil
}

func (m *memPayrolls) FindAllocation(ctx context.Context, transactionID, payrollID int64) (payroll.Allocation, error) {
	for _, a := range m.s.allocations {
		if a.TransactionID == transactionID && a.PayrollID == payrollID && !a.Deleted {
			return a, nil
		}
	}
	return payroll.Allocation{}, payroll.ErrAllocationNotFound
}

func (m *memPayrolls) SoftDeleteAllocation(ctx context.Context, id int64) error {
	a, ok := m.s.allocations[id]
	if !ok {
		return payroll.ErrAllocationNotFound
	}
	a.Deleted = true
	m.s.allocations[id] = a
	return nil
}

// memTax

type memTax struct{ s *memState }

func (m *memTax) GetFilingForUpdate(ctx context.Context, id int64) (tax.Filing, error) {
	f, ok := m.s.filings[id]
	if !ok {
		return tax.Filing{}, tax.ErrFilingNotFound
	}
	return f, nil
}

func (m *memTax) UpdateFilingBalance(ctx context.Context, id int64, balance decimal.Decimal, status tax.FilingStatus) error {
	f, ok := m.s.filings[id]
	if !ok {
		return tax.ErrFilingNotFound
	}
	f.BalanceDue = balance
	f.Status = status
	m.s.filings[id] = f
	return nil
}

func (m *memTax) InsertPayment(ctx context.Context, p tax.Payment, balanceAfter decimal.Decimal, status tax.FilingStatus) (tax.Payment, error) {
	p.ID = m.s.id()
	m.s.taxPayments[p.ID] = p
	m.s.taxHistory[m.s.id()] = tax.PaymentHistory{
		PaymentID:    p.ID,
		FilingID:     p.FilingID,
		Amount:       p.Amount,
		BalanceAfter: balanceAfter,
		Status:       status,
	}
	return p, nil
}

func (m *memTax) FindPaymentByTransaction(ctx context.Context, transactionID, filingID int64) (tax.Payment, error) {
	for _, p := range m.s.taxPayments {
		if p.TransactionID == transactionID && p.FilingID == filingID {
			return p, nil
		}
	}
	return tax.Payment{}, tax.ErrPaymentNotFound
}

func (m *memTax) HardDeletePayment(ctx context.Context, paymentID int64) error {
	if _, ok := m.s.taxPayments[paymentID]; !ok {
		return tax.ErrPaymentNotFound
	}
	for id, h := range m.s.taxHistory {
		if h.PaymentID == paymentID {
			delete(m.s.taxHistory, id)
		}
	}
	delete(m.s.taxPayments, paymentID)
	return nil
}

// memExplanations

type memExplanations struct{ s *memState }

func (m *memExplanations) InsertExplanation(ctx context.Context, e Explanation) (Explanation, error) {
	e.ID = m.s.id()
	for i := range e.Lines {
		e.Lines[i].ID = m.s.id()
		e.Lines[i].ExplanationID = e.ID
	}
	m.s.explanations[e.ID] = e
	return e, nil
}

func (m *memExplanations) GetExplanation(ctx context.Context, id int64) (Explanation, error) {
	e, ok := m.s.explanations[id]
	if !ok || e.Deleted {
		return Explanation{}, ErrExplanationNotFound
	}
	return e, nil
}

func (m *memExplanations) SoftDeleteExplanation(ctx context.Context, id int64) error {
	e, ok := m.s.explanations[id]
	if !ok {
		return ErrExplanationNotFound
	}
	e.Deleted = true
	lines := append([]ExplanationLine(nil), e.Lines...)
	for i := range lines {
		lines[i].Deleted = true
	}
	e.Lines = lines
	m.s.explanations[id] = e
	return nil
}
