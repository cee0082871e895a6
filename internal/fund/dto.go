package fund

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
	"github.com/shopspring/decimal"
)

type AmountDTO struct {
	Amount  decimal.Decimal  `json:"amount"`
	Remarks string           `json:"remarks" validate:"max=255"`
	Files   []storage.Upload `json:"-"`
}

func (dto AmountDTO) Validate() *internal.AppError {
	return validation.Merge(
		validation.Struct(dto),
		validation.ValidateAmount("amount", dto.Amount),
	)
}

type ExpenseDTO struct {
	Month   int             `json:"month" validate:"required,min=1,max=12"`
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks" validate:"max=255"`
}

func (dto ExpenseDTO) Validate() *internal.AppError {
	return validation.Merge(
		validation.Struct(dto),
		validation.ValidateAmount("amount", dto.Amount),
	)
}

type EnsureBudgetDTO struct {
	SubcategoryID int64 `json:"subcategory_id" validate:"required,gt=0"`
	Year          int   `json:"year" validate:"required,min=2000,max=2100"`
}

func (dto EnsureBudgetDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

const HistoryPageSize = 15

type HistoryFilter struct {
	BudgetID int64
	Search   string
	Type     TransactionType
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// HistoryFilterDTO is the query of the transaction history screen. Dates are
// YYYY-MM-DD and inclusive.
type HistoryFilterDTO struct {
	BudgetID int64  `json:"budget_id"`
	Search   string `json:"search" validate:"max=255"`
	Type     string `json:"type" validate:"omitempty,oneof=income expenses 'proposed budget'"`
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page" validate:"omitempty,min=1,max=100"`
}

func (dto HistoryFilterDTO) Filter() (HistoryFilter, *internal.AppError) {
	if err := validation.Struct(dto); err != nil {
		return HistoryFilter{}, err
	}
	f := HistoryFilter{BudgetID: dto.BudgetID, Search: dto.Search, Type: TransactionType(dto.Type)}
	if dto.From != "" {
		from, _ := time.Parse(time.DateOnly, dto.From)
		f.From = &from
	}
	if dto.To != "" {
		to, _ := time.Parse(time.DateOnly, dto.To)
		end := to.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return HistoryFilter{}, internal.NewValidationFieldError("to", "to must not be before from", internal.ErrCodeInvalidDate)
	}

	perPage := dto.PerPage
	if perPage == 0 {
		perPage = HistoryPageSize
	}
	page := dto.Page
	if page < 1 {
		page = 1
	}
	f.Limit, f.Offset = perPage, (page-1)*perPage
	return f, nil
}

type HistoryPage struct {
	Items    []Transaction `json:"data"`
	Total    int64         `json:"total"`
	Page     int           `json:"current_page"`
	PerPage  int           `json:"per_page"`
	LastPage int           `json:"last_page"`
}

func newHistoryPage(items []Transaction, total int64, f HistoryFilter) *HistoryPage {
	last := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	if last < 1 {
		last = 1
	}
	if items == nil {
		items = []Transaction{}
	}
	return &HistoryPage{Items: items, Total: total, Page: f.Offset/f.Limit + 1, PerPage: f.Limit, LastPage: last}
}
