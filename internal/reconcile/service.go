package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/banking"
	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/observability"
	"github.com/ledgerline/ledgerline/internal/payroll"
	"github.com/ledgerline/ledgerline/internal/platform/cache"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// JournalReader lists journals outside a unit of work, for read endpoints.
type JournalReader interface {
	ListByTransaction(ctx context.Context, transactionID int64) ([]ledger.Journal, error)
}

// TransactionLister serves the listing endpoint.
type TransactionLister interface {
	GetAccount(ctx context.Context, id int64) (banking.BankAccount, error)
	ListTransactions(ctx context.Context, filter banking.ListFilter) ([]banking.Transaction, int, error)
	CountExplained(ctx context.Context, bankAccountID int64) (int, error)
}

// Notifier delivers post-commit notifications. Enqueue failures are logged
// and never fail the explain that produced them.
type Notifier interface {
	EnqueueNotification(ctx context.Context, n Notification) error
}

// Auditor records who did what after the unit of work commits.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const explainLockTTL = 10 * time.Second

// Service orchestrates explain and unexplain calls: one workflow plans, one
// executor applies, everything inside a single unit of work.
type Service struct {
	repo     RepositoryPort
	journals JournalReader
	lister   TransactionLister
	redis    *redis.Client
	notifier Notifier
	audit    Auditor
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs Service. notifier and audit may be nil in tests.
func NewService(repo RepositoryPort, journals JournalReader, lister TransactionLister, redisClient *redis.Client, notifier Notifier, audit Auditor, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		journals: journals,
		lister:   lister,
		redis:    redisClient,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ExplainResult reports the state written by a successful explain.
type ExplainResult struct {
	Transaction banking.Transaction
	Explanation Explanation
}

// Explain matches one transaction against the documents named by the request
// and posts the balanced journals, the explanation record, the document
// updates, and the bank balance change in one unit of work. A nil
// TransactionID creates the transaction first.
func (s *Service) Explain(ctx context.Context, req ExplainRequest) (ExplainResult, error) {
	// Resolve the workflow before touching storage so an unknown category
	// never opens a transaction.
	wf, err := dispatch(req)
	if err != nil {
		s.count("explain", "rejected")
		return ExplainResult{}, err
	}

	if req.TransactionID != nil {
		release, err := s.lock(ctx, shared.TransactionLockKey(*req.TransactionID))
		if err != nil {
			s.count("explain", "conflict")
			return ExplainResult{}, err
		}
		defer release()
	}

	var result ExplainResult
	var notifications []Notification
	err = s.repo.WithTx(ctx, func(ctx context.Context, st Store) error {
		txn, err := s.loadOrCreate(ctx, st, req)
		if err != nil {
			return err
		}
		if txn.Status == banking.StatusFull {
			return ErrAlreadyExplained
		}

		// An edited amount shifts the remaining due by the difference; the
		// balance catches up when that remainder is explained, so the edit
		// never re-applies the full amount.
		if req.Amount.IsPositive() && !req.Amount.Equal(txn.Amount) {
			delta := req.Amount.Sub(txn.Amount)
			txn.Amount = req.Amount
			txn.DueAmount = txn.DueAmount.Add(delta)
			if txn.DueAmount.IsNegative() {
				return fmt.Errorf("%w: amount edit below explained total", ErrAmountMismatch)
			}
		}

		p, err := wf.plan(ctx, st, txn, req)
		if err != nil {
			return err
		}
		if !p.explained.IsPositive() {
			return fmt.Errorf("%w: nothing explained", ErrAmountMismatch)
		}

		explanation, err := s.apply(ctx, st, &txn, req, p)
		if err != nil {
			return err
		}
		result = ExplainResult{Transaction: txn, Explanation: explanation}
		notifications = p.notifications
		return nil
	})
	if err != nil {
		s.count("explain", "error")
		return ExplainResult{}, err
	}

	s.count("explain", "ok")
	s.afterCommit(ctx, "transaction.explain", result.Transaction.ID, map[string]any{
		"category":  string(result.Explanation.Category),
		"explained": result.Explanation.PaidAmount.String(),
	})
	for _, n := range notifications {
		if err := s.notify(ctx, n); err != nil {
			s.logger.Warn("notification enqueue failed",
				slog.String("kind", n.Kind),
				slog.Int64("transaction_id", result.Transaction.ID),
				slog.Any("error", err))
		}
	}
	return result, nil
}

// apply is the single executor for workflow plans: journals first, then the
// pending document mutations, then the explanation record, the transaction,
// and finally the serialized balance update.
func (s *Service) apply(ctx context.Context, st Store, txn *banking.Transaction, req ExplainRequest, p plan) (Explanation, error) {
	explanation := Explanation{
		TransactionID:    txn.ID,
		PaidAmount:       p.explained,
		Category:         p.category,
		ContactID:        req.ContactID,
		ExchangeGainLoss: p.gainLoss,
	}
	for _, post := range p.postings {
		post.input.SourceID = uuid.New()
		journal, err := st.Ledger.InsertJournal(ctx, post.input)
		if err != nil {
			return Explanation{}, err
		}
		for _, spec := range post.lines {
			explanation.Lines = append(explanation.Lines, ExplanationLine{
				ReferenceType: spec.refType,
				ReferenceID:   spec.refID,
				Amount:        spec.amount,
				Converted:     spec.converted,
				ExchangeRate:  spec.rate,
				PartiallyPaid: spec.partiallyPaid,
				JournalID:     journal.ID,
			})
		}
		for _, alloc := range post.allocs {
			if _, err := st.Payrolls.InsertAllocation(ctx, payroll.Allocation{
				TransactionID: txn.ID,
				PayrollID:     alloc.payrollID,
				Amount:        alloc.amount,
				JournalID:     journal.ID,
			}); err != nil {
				return Explanation{}, err
			}
		}
	}
	for _, apply := range p.mutations {
		if err := apply(ctx, st); err != nil {
			return Explanation{}, err
		}
	}

	account, err := st.Banking.GetAccountForUpdate(ctx, txn.BankAccountID)
	if err != nil {
		return Explanation{}, err
	}
	delta := banking.BalanceDelta(txn.Flag, p.explained)
	balance := account.CurrentBalance.Add(delta)
	if err := st.Banking.UpdateAccountBalance(ctx, account.ID, balance); err != nil {
		return Explanation{}, err
	}
	explanation.BalanceSnapshot = balance

	explanation, err = st.Explanations.InsertExplanation(ctx, explanation)
	if err != nil {
		return Explanation{}, err
	}

	txn.DueAmount = txn.DueAmount.Sub(p.explained)
	txn.Status = banking.StatusFor(txn.DueAmount, txn.Amount)
	txn.ExplainedCategory = &p.category
	if p.description != "" {
		txn.Description = p.description
	}
	if req.ContactID != nil {
		txn.ContactID = req.ContactID
	}
	if req.AttachmentRef != nil {
		txn.AttachmentRef = req.AttachmentRef
	}
	if req.ExchangeRate.IsPositive() {
		txn.ExchangeRate = req.ExchangeRate
	}
	if err := st.Banking.UpdateExplained(ctx, *txn); err != nil {
		return Explanation{}, err
	}
	return explanation, nil
}

func (s *Service) loadOrCreate(ctx context.Context, st Store, req ExplainRequest) (banking.Transaction, error) {
	if req.TransactionID != nil {
		return st.Banking.GetTransactionForUpdate(ctx, *req.TransactionID)
	}
	txn := banking.Transaction{
		BankAccountID: req.BankAccountID,
		Amount:        req.Amount,
		Flag:          banking.DebitCredit(req.Flag),
		Date:          req.Date,
		Description:   req.Description,
		ExchangeRate:  rateOrOne(req.ExchangeRate),
	}
	if err := txn.Validate(); err != nil {
		return banking.Transaction{}, err
	}
	return st.Banking.InsertTransaction(ctx, txn)
}

// Unexplain reverses one explanation: mirrored counter-journals, restored
// documents, a cleared transaction, and the inverse balance delta, all in the
// same unit of work.
func (s *Service) Unexplain(ctx context.Context, req UnexplainRequest) (banking.Transaction, error) {
	release, err := s.lock(ctx, shared.TransactionLockKey(req.TransactionID))
	if err != nil {
		s.count("unexplain", "conflict")
		return banking.Transaction{}, err
	}
	defer release()

	var txn banking.Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, st Store) error {
		var err error
		txn, err = st.Banking.GetTransactionForUpdate(ctx, req.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status == banking.StatusNotExplained {
			return ErrNothingToReverse
		}
		explanation, err := st.Explanations.GetExplanation(ctx, req.ExplanationID)
		if err != nil {
			return err
		}
		if explanation.TransactionID != txn.ID {
			return fmt.Errorf("%w: explanation %d does not belong to transaction %d",
				ErrExplanationNotFound, req.ExplanationID, txn.ID)
		}

		memo := fmt.Sprintf("reversal of explanation %d", explanation.ID)
		if err := reverse(ctx, st, transactionRef{id: txn.ID, memo: memo}, explanation); err != nil {
			return err
		}
		if err := st.Explanations.SoftDeleteExplanation(ctx, explanation.ID); err != nil {
			return err
		}

		txn.DueAmount = txn.DueAmount.Add(explanation.PaidAmount)
		txn.Status = banking.StatusFor(txn.DueAmount, txn.Amount)
		if err := st.Banking.ClearExplanation(ctx, txn.ID, txn.DueAmount, txn.Status); err != nil {
			return err
		}

		account, err := st.Banking.GetAccountForUpdate(ctx, txn.BankAccountID)
		if err != nil {
			return err
		}
		delta := banking.BalanceDelta(txn.Flag, explanation.PaidAmount)
		return st.Banking.UpdateAccountBalance(ctx, account.ID, account.CurrentBalance.Sub(delta))
	})
	if err != nil {
		s.count("unexplain", "error")
		return banking.Transaction{}, err
	}

	s.count("unexplain", "ok")
	s.afterCommit(ctx, "transaction.unexplain", txn.ID, map[string]any{
		"explanation_id": req.ExplanationID,
	})
	return txn, nil
}

// Delete soft-deletes a transaction. Postings are not reversed; callers that
// need the books restored must unexplain first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Store) error {
		return st.Banking.SoftDeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, "transaction.delete", id, nil)
	return nil
}

// DeleteMany soft-deletes a batch atomically: one missing id fails them all.
func (s *Service) DeleteMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Store) error {
		for _, id := range ids {
			if err := st.Banking.SoftDeleteTransaction(ctx, id); err != nil {
				return fmt.Errorf("transaction %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.afterCommit(ctx, "transaction.delete", id, nil)
	}
	return nil
}

// TransactionView is the read model for one transaction.
type TransactionView struct {
	Transaction  banking.Transaction `json:"transaction"`
	Explanations []Explanation       `json:"explanations"`
	Journals     []ledger.Journal    `json:"journals"`
}

// Get fans the three reads out concurrently; none of them mutate.
func (s *Service) Get(ctx context.Context, id int64) (TransactionView, error) {
	var view TransactionView
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txn, err := s.repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		view.Transaction = txn
		return nil
	})
	g.Go(func() error {
		explanations, err := s.repo.ListExplanations(ctx, id)
		if err != nil {
			return err
		}
		view.Explanations = explanations
		return nil
	})
	g.Go(func() error {
		journals, err := s.journals.ListByTransaction(ctx, id)
		if err != nil {
			return err
		}
		view.Journals = journals
		return nil
	})
	if err := g.Wait(); err != nil {
		return TransactionView{}, err
	}
	return view, nil
}

// ListResult is the read model for an account's transaction listing.
type ListResult struct {
	Account        banking.BankAccount   `json:"account"`
	Transactions   []banking.Transaction `json:"transactions"`
	Total          int                   `json:"-"`
	ExplainedCount int                   `json:"explained_count"`
}

// List pages transactions for one bank account, alongside the account's
// running balance and its fully-explained count.
func (s *Service) List(ctx context.Context, filter banking.ListFilter) (ListResult, error) {
	var result ListResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		account, err := s.lister.GetAccount(ctx, filter.BankAccountID)
		if err != nil {
			return err
		}
		result.Account = account
		return nil
	})
	g.Go(func() error {
		transactions, total, err := s.lister.ListTransactions(ctx, filter)
		if err != nil {
			return err
		}
		result.Transactions = transactions
		result.Total = total
		return nil
	})
	g.Go(func() error {
		count, err := s.lister.CountExplained(ctx, filter.BankAccountID)
		if err != nil {
			return err
		}
		result.ExplainedCount = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, err
	}
	return result, nil
}

// lock takes the per-transaction advisory lock when redis is wired; tests
// run without it and fall back to database row locks alone.
func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.redis == nil {
		return func() {}, nil
	}
	ok, err := cache.TryLock(ctx, s.redis, key, explainLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: concurrent call in progress", ErrTransactionBusy)
	}
	return func() {
		if err := cache.Unlock(context.WithoutCancel(ctx), s.redis, key); err != nil {
			s.logger.Warn("lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) count(op, outcome string) {
	if s.metrics != nil {
		s.metrics.CountExplanation(op, outcome)
	}
}

func (s *Service) afterCommit(ctx context.Context, action string, transactionID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{
		Action:   action,
		Entity:   "bank_transaction",
		EntityID: strconv.FormatInt(transactionID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n Notification) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.EnqueueNotification(context.WithoutCancel(ctx), n)
}
