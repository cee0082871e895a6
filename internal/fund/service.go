package fund

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
	"github.com/shopspring/decimal"
)

type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetBudget(ctx context.Context, id int64) (*Budget, error)
	OverviewCategories(ctx context.Context, year int) ([]OverviewCategory, error)
	SearchTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, int64, error)
	ListTransactions(ctx context.Context, budgetID int64) ([]Transaction, error)
	GetTransactionFile(ctx context.Context, transactionID, fileID int64) (*TransactionFile, error)
}

type TxRepository interface {
	GetBudgetForUpdate(ctx context.Context, id int64) (*Budget, error)
	SaveBudget(ctx context.Context, b *Budget) error
	AppendTransaction(ctx context.Context, t *Transaction) error
	// EnsureBudget returns the budget of a subcategory for year, creating a
	// zeroed one when missing.
	EnsureBudget(ctx context.Context, subcategoryID int64, year int) (*Budget, bool, error)
}

type Service struct {
	repo      RepositoryAPI
	locks     settings.LockSource
	files     storage.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, locks settings.LockSource, files storage.Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		locks:     locks,
		files:     files,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Posting is the result of a ledger mutation.
type Posting struct {
	Budget      BudgetView  `json:"budget"`
	Transaction Transaction `json:"transaction"`
}

func canManage(actor internal.Actor) bool {
	return actor.HasRole(internal.RoleCaptain, internal.RoleTreasurer)
}

func (s *Service) ensureUnlocked(ctx context.Context, name settings.Name) error {
	if s.locks == nil {
		return nil
	}
	snap, err := s.locks.Snapshot(ctx)
	if err != nil {
		return err
	}
	return snap.Ensure(name)
}

type mutation func(b *Budget) error

// post applies one mutation and its history row in a single transaction.
// Receipts are written first and removed again if the transaction fails.
func (s *Service) post(ctx context.Context, actor internal.Actor, budgetID int64, kind TransactionType, amount decimal.Decimal, remarks string, month *int, uploads []storage.Upload, apply mutation) (*Posting, error) {
	batch := storage.NewBatch(s.files, s.logger)
	var (
		budget *Budget
		tx     Transaction
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		budget, err = repo.GetBudgetForUpdate(ctx, budgetID)
		if err != nil {
			return err
		}
		if err := apply(budget); err != nil {
			return err
		}
		if err := repo.SaveBudget(ctx, budget); err != nil {
			return err
		}

		tx = Transaction{
			BudgetID:    budget.ID,
			ProcessedBy: actor.ID,
			Date:        s.now(),
			Type:        kind,
			Month:       month,
			Amount:      amount,
			Remarks:     optional(remarks),
		}
		if len(uploads) > 0 {
			stored, err := batch.PutAll(ctx, uploads, fmt.Sprintf("receipts/%d", budget.ID))
			if err != nil {
				return err
			}
			for _, f := range stored {
				tx.Files = append(tx.Files, TransactionFile{Name: f.Name, Path: f.Path, Size: f.Size, FileType: FileTypeOf(f.ContentType)})
			}
		}
		return repo.AppendTransaction(ctx, &tx)
	})
	if err != nil {
		batch.Rollback(ctx)
		s.logger.Warn("fund transaction rejected",
			"budget_id", budgetID,
			"type", kind,
			"actor_id", actor.ID,
			"error", err)
		return nil, err
	}

	s.logger.Info("fund transaction recorded",
		"budget_id", budget.ID,
		"transaction_id", tx.ID,
		"type", kind,
		"amount", amount.StringFixed(2),
		"actor_id", actor.ID)
	if err := s.publisher.Publish(ctx, events.NewFundTransactionEvent(budget.ID, tx.ID, string(kind), amount.StringFixed(2), actor.ID)); err != nil {
		s.logger.Warn("failed to publish fund event", "budget_id", budget.ID, "error", err)
	}
	if tx.Files == nil {
		tx.Files = []TransactionFile{}
	}
	return &Posting{Budget: NewBudgetView(budget, MonthIndexFor(budget.Year, s.now())), Transaction: tx}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AddIncome increases a budget's income and attaches any receipts.
func (s *Service) AddIncome(ctx context.Context, actor internal.Actor, budgetID int64, dto AmountDTO) (*Posting, error) {
	if !canManage(actor) {
		return nil, internal.ErrNotAuthorized
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.post(ctx, actor, budgetID, TypeIncome, dto.Amount, dto.Remarks, nil, dto.Files, func(b *Budget) error {
		b.ApplyIncome(dto.Amount)
		return nil
	})
}

// AddProposedBudget increases the proposed budget unless the budget lock is on.
func (s *Service) AddProposedBudget(ctx context.Context, actor internal.Actor, budgetID int64, dto AmountDTO) (*Posting, error) {
	if !canManage(actor) {
		return nil, internal.ErrNotAuthorized
	}
	if err := s.ensureUnlocked(ctx, settings.Budget); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.post(ctx, actor, budgetID, TypeProposedBudget, dto.Amount, dto.Remarks, nil, nil, func(b *Budget) error {
		b.ApplyProposed(dto.Amount)
		return nil
	})
}

// RecordExpense charges a month column unless the budget lock is on.
func (s *Service) RecordExpense(ctx context.Context, actor internal.Actor, budgetID int64, dto ExpenseDTO) (*Posting, error) {
	if !canManage(actor) {
		return nil, internal.ErrNotAuthorized
	}
	if err := s.ensureUnlocked(ctx, settings.Budget); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	month := dto.Month
	return s.post(ctx, actor, budgetID, TypeExpenses, dto.Amount, dto.Remarks, &month, nil, func(b *Budget) error {
		return b.ApplyExpense(month, dto.Amount)
	})
}

// EnsureBudget opens a zeroed budget for a subcategory and year.
func (s *Service) EnsureBudget(ctx context.Context, actor internal.Actor, dto EnsureBudgetDTO) (*BudgetView, error) {
	if !canManage(actor) {
		return nil, internal.ErrNotAuthorized
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		budget  *Budget
		created bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo TxRepository) error {
		var err error
		budget, created, err = repo.EnsureBudget(ctx, dto.SubcategoryID, dto.Year)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("budget opened", "budget_id", budget.ID, "subcategory_id", dto.SubcategoryID, "year", dto.Year, "actor_id", actor.ID)
	}
	v := NewBudgetView(budget, MonthIndexFor(budget.Year, s.now()))
	return &v, nil
}

func (s *Service) GetBudget(ctx context.Context, id int64) (*BudgetView, error) {
	b, err := s.repo.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	v := NewBudgetView(b, MonthIndexFor(b.Year, s.now()))
	return &v, nil
}

// Overview lists every group, category and active subcategory with the
// budget of year. A zero year means the current one.
func (s *Service) Overview(ctx context.Context, year int) ([]Group, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	cats, err := s.repo.OverviewCategories(ctx, year)
	if err != nil {
		s.logger.Error("failed to load fund overview", "year", year, "error", err)
		return nil, err
	}
	return BuildOverview(cats, MonthIndexFor(year, now)), nil
}

func (s *Service) TransactionHistory(ctx context.Context, dto HistoryFilterDTO) (*HistoryPage, error) {
	f, appErr := dto.Filter()
	if appErr != nil {
		return nil, appErr
	}
	items, total, err := s.repo.SearchTransactions(ctx, f)
	if err != nil {
		s.logger.Error("failed to search fund transactions", "error", err)
		return nil, err
	}
	return newHistoryPage(items, total, f), nil
}

// Reconciliation compares a budget's stored columns with its history.
type Reconciliation struct {
	Budget     BudgetView      `json:"budget"`
	Proposed   decimal.Decimal `json:"replayed_proposed_budget"`
	Income     decimal.Decimal `json:"replayed_income"`
	Expenses   decimal.Decimal `json:"replayed_expenses"`
	Balance    decimal.Decimal `json:"replayed_balance"`
	Consistent bool            `json:"consistent"`
}

// Reconcile replays the transaction history of a budget.
func (s *Service) Reconcile(ctx context.Context, budgetID int64) (*Reconciliation, error) {
	b, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListTransactions(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	totals := Replay(history)
	rec := &Reconciliation{
		Budget:     NewBudgetView(b, MonthIndexFor(b.Year, s.now())),
		Proposed:   totals.Proposed,
		Income:     totals.Income,
		Expenses:   totals.Expenses(),
		Balance:    totals.Balance(),
		Consistent: totals.Matches(b),
	}
	if !rec.Consistent {
		s.logger.Warn("budget does not match its transaction history", "budget_id", budgetID)
	}
	return rec, nil
}

// OpenReceipt streams a file attached to a transaction.
func (s *Service) OpenReceipt(ctx context.Context, transactionID, fileID int64) (io.ReadCloser, *TransactionFile, error) {
	f, err := s.repo.GetTransactionFile(ctx, transactionID, fileID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(ctx, f.Path)
	if err != nil {
		return nil, nil, err
	}
	return rc, f, nil
}
