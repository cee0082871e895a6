// Package fund is the budget ledger: per-subcategory yearly budgets and the
// append-only transaction history that moves them.
package fund

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeProposedBudget TransactionType = "proposed budget"
	TypeIncome         TransactionType = "income"
	TypeExpenses       TransactionType = "expenses"
)

func (t TransactionType) Valid() bool {
	return t == TypeProposedBudget || t == TypeIncome || t == TypeExpenses
}

const (
	FileTypePDF   = "pdf"
	FileTypeImage = "image"
)

// MonthNames are the display names of the twelve budget columns.
var MonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type Budget struct {
	ID             int64               `json:"id"`
	SubcategoryID  int64               `json:"subcategory_id"`
	Year           int                 `json:"year"`
	ProposedBudget decimal.Decimal     `json:"proposed_budget"`
	Months         [12]decimal.Decimal `json:"months"`
	Income         decimal.Decimal     `json:"income"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewBudget returns a zeroed budget for a subcategory and year.
func NewBudget(subcategoryID int64, year int) *Budget {
	return &Budget{SubcategoryID: subcategoryID, Year: year}
}

// Spent is the sum of all twelve month columns.
func (b *Budget) Spent() decimal.Decimal {
	return sum(b.Months[:])
}

// YTD sums January through monthIndex inclusive; monthIndex is 0-based and
// clamped to the calendar.
func (b *Budget) YTD(monthIndex int) decimal.Decimal {
	if monthIndex < 0 {
		return decimal.Zero
	}
	if monthIndex > 11 {
		monthIndex = 11
	}
	return sum(b.Months[:monthIndex+1])
}

// Balance is proposed_budget - sum(months) + income. It is never stored.
func (b *Budget) Balance() decimal.Decimal {
	return b.ProposedBudget.Sub(b.Spent()).Add(b.Income)
}

func (b *Budget) FirstHalf() decimal.Decimal  { return sum(b.Months[:6]) }
func (b *Budget) SecondHalf() decimal.Decimal { return sum(b.Months[6:]) }

func (b *Budget) ApplyIncome(amount decimal.Decimal) {
	b.Income = b.Income.Add(amount)
}

func (b *Budget) ApplyProposed(amount decimal.Decimal) {
	b.ProposedBudget = b.ProposedBudget.Add(amount)
}

// ApplyExpense adds amount to the 1-based month column.
func (b *Budget) ApplyExpense(month int, amount decimal.Decimal) error {
	if month < 1 || month > 12 {
		return internal.NewValidationFieldError("month", "month must be between 1 and 12", internal.ErrCodeInvalidMonth)
	}
	b.Months[month-1] = b.Months[month-1].Add(amount)
	return nil
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

type TransactionFile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"-"`
	Size     int64  `json:"size"`
	FileType string `json:"file_type"`
}

// FileTypeOf classifies an upload the way receipts are listed.
func FileTypeOf(contentType string) string {
	if contentType == "application/pdf" {
		return FileTypePDF
	}
	return FileTypeImage
}

type Transaction struct {
	ID              int64             `json:"id"`
	BudgetID        int64             `json:"budget_id"`
	ProcessedBy     int64             `json:"processed_by"`
	ProcessedByName string            `json:"processed_by_name,omitempty"`
	SubcategoryName string            `json:"subcategory,omitempty"`
	Year            int               `json:"year,omitempty"`
	Date            time.Time         `json:"date"`
	Type            TransactionType   `json:"type"`
	Month           *int              `json:"month,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	Remarks         *string           `json:"remarks,omitempty"`
	Files           []TransactionFile `json:"files"`
}

// Totals is what a transaction history adds up to.
type Totals struct {
	Proposed decimal.Decimal
	Income   decimal.Decimal
	Months   [12]decimal.Decimal
}

func (t Totals) Expenses() decimal.Decimal {
	return sum(t.Months[:])
}

func (t Totals) Balance() decimal.Decimal {
	return t.Proposed.Sub(t.Expenses()).Add(t.Income)
}

// Matches reports whether a budget's columns equal the replayed totals.
func (t Totals) Matches(b *Budget) bool {
	if !t.Proposed.Equal(b.ProposedBudget) || !t.Income.Equal(b.Income) {
		return false
	}
	for i := range t.Months {
		if !t.Months[i].Equal(b.Months[i]) {
			return false
		}
	}
	return true
}

// Replay re-derives a budget's columns from its transaction history.
// Expenses without a month are ignored.
func Replay(history []Transaction) Totals {
	var t Totals
	for _, tx := range history {
		switch tx.Type {
		case TypeProposedBudget:
			t.Proposed = t.Proposed.Add(tx.Amount)
		case TypeIncome:
			t.Income = t.Income.Add(tx.Amount)
		case TypeExpenses:
			if tx.Month != nil && *tx.Month >= 1 && *tx.Month <= 12 {
				t.Months[*tx.Month-1] = t.Months[*tx.Month-1].Add(tx.Amount)
			}
		}
	}
	return t
}

func BudgetFromDataModel(m *fundDatamodel.Budget) *Budget {
	return &Budget{
		ID:             m.ID,
		SubcategoryID:  m.SubcategoryID,
		Year:           m.Year,
		ProposedBudget: m.ProposedBudget,
		Months:         m.Months(),
		Income:         m.Income,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func BudgetToDataModel(b *Budget) *fundDatamodel.Budget {
	m := &fundDatamodel.Budget{
		ID:             b.ID,
		SubcategoryID:  b.SubcategoryID,
		Year:           b.Year,
		ProposedBudget: b.ProposedBudget,
		Income:         b.Income,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	m.SetMonths(b.Months)
	return m
}
