package request

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrImmutableRecord = errors.New("timeline entries are append-only")

type Request struct {
	ID          int64      `gorm:"primaryKey"`
	Name        string     `gorm:"column:name;not null"`
	CategoryID  int64      `gorm:"column:category_id;not null;index"`
	Description string     `gorm:"column:description;type:text"`
	Status      string     `gorm:"column:status;not null;index"`
	Progress    string     `gorm:"column:progress;not null;index"`
	CreatedBy   int64      `gorm:"column:created_by;not null;index"`
	ProcessedBy *int64     `gorm:"column:processed_by"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	Version     int64      `gorm:"column:version;not null;default:1"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Collaborators []Collaborator `gorm:"foreignKey:RequestID"`
	Files         []File         `gorm:"foreignKey:RequestID"`
}

func (Request) TableName() string { return "requests" }

type Collaborator struct {
	RequestID  int64     `gorm:"column:request_id;primaryKey"`
	UserID     int64     `gorm:"column:user_id;primaryKey"`
	Permission string    `gorm:"column:permission;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Collaborator) TableName() string { return "request_collaborators" }

type File struct {
	ID        int64     `gorm:"primaryKey"`
	RequestID int64     `gorm:"column:request_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Path      string    `gorm:"column:path;not null"`
	Size      int64     `gorm:"column:size;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (File) TableName() string { return "request_files" }

type Timeline struct {
	ID                int64      `gorm:"primaryKey"`
	RequestID         int64      `gorm:"column:request_id;not null;index"`
	ApproverID        *int64     `gorm:"column:approver_id"`
	ApprovedDate      *time.Time `gorm:"column:approved_date"`
	ApprovedProgress  *string    `gorm:"column:approved_progress"`
	ApprovedStatus    *string    `gorm:"column:approved_status"`
	ProcessorID       *int64     `gorm:"column:processor_id"`
	ProcessedDate     *time.Time `gorm:"column:processed_date"`
	ProcessedProgress *string    `gorm:"column:processed_progress"`
	ProcessedStatus   *string    `gorm:"column:processed_status"`
	Remarks           *string    `gorm:"column:remarks;type:text"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Timeline) TableName() string { return "request_timelines" }

func (Timeline) BeforeUpdate(*gorm.DB) error { return ErrImmutableRecord }

func (Timeline) BeforeDelete(*gorm.DB) error { return ErrImmutableRecord }

type Quotation struct {
	ID            int64      `gorm:"primaryKey"`
	RequestID     int64      `gorm:"column:request_id;not null;uniqueIndex"`
	Status        string     `gorm:"column:status;not null"`
	HaveQuotation bool       `gorm:"column:have_quotation;not null;default:false"`
	ProcessedBy   *int64     `gorm:"column:processed_by"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	Details []QuotationDetail `gorm:"foreignKey:QuotationID"`
}

func (Quotation) TableName() string { return "request_quotations" }

type Company struct {
	ID            int64     `gorm:"primaryKey"`
	CompanyName   string    `gorm:"column:company_name;not null"`
	ContactPerson string    `gorm:"column:contact_person;not null"`
	Address       string    `gorm:"column:address;not null"`
	ContactNumber string    `gorm:"column:contact_number;not null"`
	Email         string    `gorm:"column:email;not null;uniqueIndex"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Company) TableName() string { return "companies" }

type QuotationDetail struct {
	ID          int64     `gorm:"primaryKey"`
	QuotationID int64     `gorm:"column:request_quotation_id;not null;index"`
	CompanyID   int64     `gorm:"column:company_id;not null"`
	IsSelected  bool      `gorm:"column:is_selected;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`

	Company Company         `gorm:"foreignKey:CompanyID"`
	Items   []QuotationItem `gorm:"foreignKey:QuotationDetailID"`
}

func (QuotationDetail) TableName() string { return "request_quotation_details" }

type QuotationItem struct {
	ID                int64           `gorm:"primaryKey"`
	QuotationDetailID int64           `gorm:"column:request_quotation_detail_id;not null;index"`
	ItemName          string          `gorm:"column:item_name;not null"`
	Description       *string         `gorm:"column:description"`
	Price             decimal.Decimal `gorm:"column:price;type:decimal(15,2);not null"`
	Quantity          int             `gorm:"column:quantity;not null"`
}

func (QuotationItem) TableName() string { return "request_quotation_items" }

type PurchaseRequest struct {
	ID                   int64      `gorm:"primaryKey"`
	RequestID            int64      `gorm:"column:request_id;not null;uniqueIndex"`
	Status               string     `gorm:"column:status;not null"`
	HaveSupplierApproval bool       `gorm:"column:have_supplier_approval;not null;default:false"`
	ProcessedBy          *int64     `gorm:"column:processed_by"`
	ProcessedAt          *time.Time `gorm:"column:processed_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PurchaseRequest) TableName() string { return "request_purchase_requests" }

type PurchaseOrder struct {
	ID          int64      `gorm:"primaryKey"`
	RequestID   int64      `gorm:"column:request_id;not null;uniqueIndex"`
	Status      string     `gorm:"column:status;not null"`
	ProcessedBy *int64     `gorm:"column:processed_by"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PurchaseOrder) TableName() string { return "request_purchase_orders" }
