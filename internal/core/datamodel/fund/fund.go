package fund

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrImmutableRecord = errors.New("fund transaction history is append-only")

type Budget struct {
	ID             int64           `gorm:"primaryKey"`
	SubcategoryID  int64           `gorm:"column:subcategory_id;not null;uniqueIndex:idx_budgets_subcategory_year"`
	Year           int             `gorm:"column:year;not null;uniqueIndex:idx_budgets_subcategory_year"`
	ProposedBudget decimal.Decimal `gorm:"column:proposed_budget;type:decimal(15,2);not null;default:0"`
	January        decimal.Decimal `gorm:"column:january;type:decimal(15,2);not null;default:0"`
	February       decimal.Decimal `gorm:"column:february;type:decimal(15,2);not null;default:0"`
	March          decimal.Decimal `gorm:"column:march;type:decimal(15,2);not null;default:0"`
	April          decimal.Decimal `gorm:"column:april;type:decimal(15,2);not null;default:0"`
	May            decimal.Decimal `gorm:"column:may;type:decimal(15,2);not null;default:0"`
	June           decimal.Decimal `gorm:"column:june;type:decimal(15,2);not null;default:0"`
	July           decimal.Decimal `gorm:"column:july;type:decimal(15,2);not null;default:0"`
	August         decimal.Decimal `gorm:"column:august;type:decimal(15,2);not null;default:0"`
	September      decimal.Decimal `gorm:"column:september;type:decimal(15,2);not null;default:0"`
	October        decimal.Decimal `gorm:"column:october;type:decimal(15,2);not null;default:0"`
	November       decimal.Decimal `gorm:"column:november;type:decimal(15,2);not null;default:0"`
	December       decimal.Decimal `gorm:"column:december;type:decimal(15,2);not null;default:0"`
	Income         decimal.Decimal `gorm:"column:income;type:decimal(15,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Budget) TableName() string { return "budgets" }

// MonthColumns are the budget columns in calendar order.
var MonthColumns = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func (b *Budget) Months() [12]decimal.Decimal {
	return [12]decimal.Decimal{
		b.January, b.February, b.March, b.April, b.May, b.June,
		b.July, b.August, b.September, b.October, b.November, b.December,
	}
}

func (b *Budget) SetMonths(m [12]decimal.Decimal) {
	b.January, b.February, b.March, b.April, b.May, b.June = m[0], m[1], m[2], m[3], m[4], m[5]
	b.July, b.August, b.September, b.October, b.November, b.December = m[6], m[7], m[8], m[9], m[10], m[11]
}

type TransactionHistory struct {
	ID              int64           `gorm:"primaryKey"`
	BudgetID        int64           `gorm:"column:budget_id;not null;index"`
	ProcessedBy     int64           `gorm:"column:processed_by;not null"`
	TransactionDate time.Time       `gorm:"column:transaction_date;not null"`
	Type            string          `gorm:"column:type;not null"`
	Month           *int            `gorm:"column:month"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(15,2);not null"`
	Remarks         *string         `gorm:"column:remarks;type:text"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`

	Files []TransactionFile `gorm:"foreignKey:TransactionID"`
}

func (TransactionHistory) TableName() string { return "fund_transaction_histories" }

func (TransactionHistory) BeforeUpdate(*gorm.DB) error { return ErrImmutableRecord }

func (TransactionHistory) BeforeDelete(*gorm.DB) error { return ErrImmutableRecord }

type TransactionFile struct {
	ID            int64     `gorm:"primaryKey"`
	TransactionID int64     `gorm:"column:fund_transaction_history_id;not null;index"`
	Name          string    `gorm:"column:name;not null"`
	Path          string    `gorm:"column:path;not null"`
	Size          int64     `gorm:"column:size;not null"`
	FileType      string    `gorm:"column:file_type;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TransactionFile) TableName() string { return "budget_transaction_files" }

type Setting struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	IsLocked  bool      `gorm:"column:is_locked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "fund_settings" }

type SettingTimeline struct {
	ID        int64     `gorm:"primaryKey"`
	SettingID int64     `gorm:"column:fund_setting_id;not null;index"`
	Action    string    `gorm:"column:action;not null"`
	UserID    int64     `gorm:"column:user_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SettingTimeline) TableName() string { return "fund_settings_timelines" }
