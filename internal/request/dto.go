package request

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
)

type CollaboratorInput struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Permission string `json:"permission" validate:"required,oneof=view edit"`
}

type RequestFormDTO struct {
	Name          string              `json:"name" validate:"required,min=3,max=255"`
	CategoryID    int64               `json:"category_id" validate:"required,gt=0"`
	Description   string              `json:"description" validate:"required,min=10"`
	Collaborators []CollaboratorInput `json:"collaborators" validate:"omitempty,dive"`
	RemoveFileIDs []int64             `json:"remove_file_ids,omitempty"`
	Files         []storage.Upload    `json:"-"`
}

func (dto RequestFormDTO) Validate() *internal.AppError {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(dto.Collaborators))
	for _, c := range dto.Collaborators {
		if seen[c.UserID] {
			return internal.NewValidationFieldError("collaborators", "a collaborator can only be added once", internal.ErrCodeValidationFailed)
		}
		seen[c.UserID] = true
	}
	return nil
}

func (dto RequestFormDTO) collaborators(ownerID int64) []Collaborator {
	out := make([]Collaborator, 0, len(dto.Collaborators))
	for _, c := range dto.Collaborators {
		if c.UserID == ownerID {
			continue
		}
		out = append(out, Collaborator{UserID: c.UserID, Permission: Permission(c.Permission)})
	}
	return out
}

type RemarksDTO struct {
	Remarks string `json:"remarks" validate:"max=2000"`
}

type ApproveRequestDTO struct {
	Remarks   string `json:"remarks" validate:"max=2000"`
	CompanyID int64  `json:"company_id"`
}

type ResubmitRequestDTO struct {
	Remarks string          `json:"remarks" validate:"max=2000"`
	Form    *RequestFormDTO `json:"form,omitempty"`
}

// Tabs of the official's request list.
const (
	TabAll             = "all"
	TabForm            = "form"
	TabQuotation       = "quotation"
	TabPurchaseRequest = "purchase-request"
	TabPurchaseOrder   = "purchase-order"
	TabHistory         = "history"
)

const (
	OfficialPageSize = 10
	CaptainPageSize  = 9
)

// ListFilter is what repositories understand; services translate tabs and
// captain filters into it.
type ListFilter struct {
	ParticipantID   int64
	Statuses        []Status
	ExcludeStatuses []Status
	Progress        Progress
	Search          string
	From            *time.Time
	To              *time.Time
	Page            int
	PerPage         int
}

func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

type CaptainFilterDTO struct {
	Search   string     `json:"search"`
	Progress string     `json:"progress"`
	Status   string     `json:"status"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	Page     int        `json:"page"`
}

type Summary struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Category        string    `json:"category"`
	Status          Status    `json:"status"`
	Progress        Progress  `json:"progress"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	ProgressPercent int       `json:"progress_percent"`
}

type Page struct {
	Data     []Summary `json:"data"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	LastPage int       `json:"last_page"`
}

func newPage(items []*Request, total int64, page, perPage int) *Page {
	if page < 1 {
		page = 1
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	data := make([]Summary, 0, len(items))
	for _, r := range items {
		data = append(data, Summary{
			ID:              r.ID,
			Title:           r.Name,
			Category:        r.CategoryName,
			Status:          r.Status,
			Progress:        r.Progress,
			CreatedBy:       r.CreatorName,
			CreatedAt:       r.CreatedAt,
			ProgressPercent: ComputeStages(r.Timeline).Percent(),
		})
	}
	return &Page{Data: data, Total: total, Page: page, PerPage: perPage, LastPage: last}
}

// View is a request as shown to a specific viewer.
type View struct {
	*Request
	Stages          Stages     `json:"stages"`
	ProgressPercent int        `json:"progress_percent"`
	UserPermission  Permission `json:"user_permission"`
}

func NewView(r *Request, actor internal.Actor) *View {
	stages := ComputeStages(r.Timeline)
	return &View{
		Request:         r,
		Stages:          stages,
		ProgressPercent: stages.Percent(),
		UserPermission:  r.PermissionFor(actor),
	}
}
