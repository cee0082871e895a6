package request

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
)

type Progress string

const (
	ProgressRequestForm     Progress = "Request Form"
	ProgressQuotation       Progress = "Quotation"
	ProgressPurchaseRequest Progress = "Purchase Request"
	ProgressPurchaseOrder   Progress = "Purchase Order"
)

// Sequence is the fixed order every request moves through.
var Sequence = []Progress{
	ProgressRequestForm,
	ProgressQuotation,
	ProgressPurchaseRequest,
	ProgressPurchaseOrder,
}

func (p Progress) Valid() bool {
	return p.Index() >= 0
}

func (p Progress) Index() int {
	for i, s := range Sequence {
		if s == p {
			return i
		}
	}
	return -1
}

// Next returns the stage an approval advances to.
func (p Progress) Next() (Progress, error) {
	switch p {
	case ProgressRequestForm:
		return ProgressQuotation, nil
	case ProgressQuotation:
		return ProgressPurchaseRequest, nil
	case ProgressPurchaseRequest:
		return ProgressPurchaseOrder, nil
	case ProgressPurchaseOrder:
		return "", internal.ErrInvalidProgressStep.WithMessage("purchase order is the final stage, use complete")
	default:
		return "", internal.ErrInvalidProgressStep
	}
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusVoided    Status = "voided"
	StatusReturned  Status = "returned"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusDeclined, StatusVoided, StatusReturned, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusVoided || s == StatusCompleted
}

type Permission string

const (
	PermissionOwner Permission = "owner"
	PermissionEdit  Permission = "edit"
	PermissionView  Permission = "view"
	PermissionNone  Permission = ""
)

func (p Permission) CanEdit() bool {
	return p == PermissionOwner || p == PermissionEdit
}

type Collaborator struct {
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name,omitempty"`
	Permission Permission `json:"permission"`
}

type File struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// StageState is the persisted sub-record of a stage the request reached.
type StageState struct {
	ID                   int64      `json:"id"`
	Status               string     `json:"status"`
	HaveQuotation        bool       `json:"have_quotation,omitempty"`
	HaveSupplierApproval bool       `json:"have_supplier_approval,omitempty"`
	ProcessedBy          *int64     `json:"processed_by,omitempty"`
	ProcessedByName      string     `json:"processed_by_name,omitempty"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
}

type Request struct {
	ID            int64          `json:"id"`
	Name          string         `json:"title"`
	CategoryID    int64          `json:"category_id"`
	CategoryName  string         `json:"category,omitempty"`
	Description   string         `json:"description"`
	Status        Status         `json:"status"`
	Progress      Progress       `json:"progress"`
	CreatedBy     int64          `json:"created_by"`
	CreatorName   string         `json:"created_by_name,omitempty"`
	ProcessedBy   *int64         `json:"processed_by,omitempty"`
	ProcessorName string         `json:"processed_by_name,omitempty"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Collaborators []Collaborator `json:"collaborators"`
	Files         []File         `json:"files"`

	Timeline        []timeline.Entry `json:"timelines,omitempty"`
	Quotation       *StageState      `json:"quotation,omitempty"`
	PurchaseRequest *StageState      `json:"purchase_request,omitempty"`
	PurchaseOrder   *StageState      `json:"purchase_order,omitempty"`
}

// StageRecord is the sub-record created when a request advances into a stage.
type StageRecord interface {
	Stage() Progress
	ForRequest() int64
}

type QuotationRecord struct{ RequestID int64 }

func (QuotationRecord) Stage() Progress     { return ProgressQuotation }
func (r QuotationRecord) ForRequest() int64 { return r.RequestID }

type PurchaseRequestRecord struct{ RequestID int64 }

func (PurchaseRequestRecord) Stage() Progress     { return ProgressPurchaseRequest }
func (r PurchaseRequestRecord) ForRequest() int64 { return r.RequestID }

type PurchaseOrderRecord struct{ RequestID int64 }

func (PurchaseOrderRecord) Stage() Progress     { return ProgressPurchaseOrder }
func (r PurchaseOrderRecord) ForRequest() int64 { return r.RequestID }

func newStageRecord(requestID int64, p Progress) (StageRecord, error) {
	switch p {
	case ProgressQuotation:
		return QuotationRecord{RequestID: requestID}, nil
	case ProgressPurchaseRequest:
		return PurchaseRequestRecord{RequestID: requestID}, nil
	case ProgressPurchaseOrder:
		return PurchaseOrderRecord{RequestID: requestID}, nil
	default:
		return nil, internal.ErrInvalidProgressStep
	}
}

// Transition describes every write one action requires. The service persists
// it inside a single database transaction.
type Transition struct {
	Entry                 *timeline.Entry
	Created               StageRecord
	SelectCompanyID       int64
	SupplierApproval      bool
	CompletePurchaseOrder bool
}

func NewRequest(actor internal.Actor, name string, categoryID int64, description string, now time.Time) *Request {
	return &Request{
		Name:        name,
		CategoryID:  categoryID,
		Description: description,
		Status:      StatusDraft,
		Progress:    ProgressRequestForm,
		CreatedBy:   actor.ID,
		CreatorName: actor.Name,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PermissionFor resolves what the actor may do with the request.
func (r *Request) PermissionFor(actor internal.Actor) Permission {
	if actor.ID == r.CreatedBy {
		return PermissionOwner
	}
	for _, c := range r.Collaborators {
		if c.UserID == actor.ID {
			return c.Permission
		}
	}
	if r.Status != StatusDraft && actor.HasRole(internal.RoleCaptain, internal.RoleSecretary, internal.RoleTreasurer) {
		return PermissionView
	}
	return PermissionNone
}

func (r *Request) requireEditor(actor internal.Actor) error {
	if !r.PermissionFor(actor).CanEdit() {
		return internal.ErrNotAuthorized
	}
	return nil
}

func requireCaptain(actor internal.Actor) error {
	if actor.Role != internal.RoleCaptain {
		return internal.ErrNotAuthorized
	}
	return nil
}

func (r *Request) requireStatus(allowed ...Status) error {
	if r.Status.Terminal() {
		return internal.ErrInvalidRequestStatus.WithMessage("request is " + string(r.Status) + " and cannot be changed")
	}
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return internal.ErrInvalidRequestStatus
}

func (r *Request) touch(now time.Time) {
	r.UpdatedAt = now
}

func (r *Request) processing(actor internal.Actor, status timeline.ProcessedStatus, remarks string, now time.Time) *timeline.Entry {
	e := timeline.NewProcessing(r.ID, actor.ID, string(r.Progress), status, remarks, now)
	return &e
}

func (r *Request) approval(actor internal.Actor, status timeline.ApprovedStatus, remarks string, now time.Time) *timeline.Entry {
	e := timeline.NewApproval(r.ID, actor.ID, string(r.Progress), status, remarks, now)
	return &e
}

// Edit replaces the editable fields of a draft or a request being resubmitted
// at the Request Form stage.
func (r *Request) Edit(actor internal.Actor, name string, categoryID int64, description string, now time.Time) error {
	if err := r.requireEditor(actor); err != nil {
		return err
	}
	if r.Progress != ProgressRequestForm {
		return internal.ErrInvalidProgressStep.WithMessage("request details can only change at the request form stage")
	}
	if err := r.requireStatus(StatusDraft, StatusDeclined, StatusReturned); err != nil {
		return err
	}
	r.Name = name
	r.CategoryID = categoryID
	r.Description = description
	r.touch(now)
	return nil
}

// Submit sends a draft to the captain for review.
func (r *Request) Submit(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusDraft); err != nil {
		return nil, err
	}
	r.Status = StatusPending
	r.touch(now)
	return &Transition{Entry: r.processing(actor, timeline.Submitted, remarks, now)}, nil
}

// Process marks the current stage as processed by its official.
func (r *Request) Process(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusPending, StatusReturned); err != nil {
		return nil, err
	}
	r.Status = StatusPending
	r.ProcessedBy = &actor.ID
	r.ProcessedAt = &now
	r.touch(now)
	return &Transition{Entry: r.processing(actor, timeline.Processed, remarks, now)}, nil
}

// ProcessPurchaseRequest records the supplier approval on the purchase request.
func (r *Request) ProcessPurchaseRequest(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if r.Progress != ProgressPurchaseRequest {
		return nil, internal.ErrInvalidProgressStep.WithMessage("request is not at the purchase request stage")
	}
	t, err := r.Process(actor, remarks, now)
	if err != nil {
		return nil, err
	}
	t.SupplierApproval = true
	return t, nil
}

// Approve advances the request one stage and creates the next stage record.
// At the Quotation stage a supplier company must be selected.
func (r *Request) Approve(actor internal.Actor, remarks string, companyID int64, now time.Time) (*Transition, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusPending); err != nil {
		return nil, err
	}

	next, err := r.Progress.Next()
	if err != nil {
		return nil, err
	}

	t := &Transition{}
	switch r.Progress {
	case ProgressQuotation:
		if companyID <= 0 {
			return nil, internal.ErrMissingSelection
		}
		t.SelectCompanyID = companyID
	case ProgressRequestForm, ProgressPurchaseRequest:
	default:
		return nil, internal.ErrInvalidProgressStep
	}

	created, err := newStageRecord(r.ID, next)
	if err != nil {
		return nil, err
	}

	t.Entry = r.approval(actor, timeline.Approved, remarks, now)
	t.Created = created
	r.Progress = next
	r.touch(now)
	return t, nil
}

// Decline rejects a pending request at its current stage.
func (r *Request) Decline(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	return r.reject(actor, timeline.Declined, StatusDeclined, remarks, now)
}

// Return sends a pending request back to its official for changes.
func (r *Request) Return(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	return r.reject(actor, timeline.Returned, StatusReturned, remarks, now)
}

func (r *Request) reject(actor internal.Actor, entryStatus timeline.ApprovedStatus, status Status, remarks string, now time.Time) (*Transition, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusPending); err != nil {
		return nil, err
	}
	t := &Transition{Entry: r.approval(actor, entryStatus, remarks, now)}
	r.Status = status
	r.touch(now)
	return t, nil
}

// Void cancels a request for good.
func (r *Request) Void(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusDraft, StatusPending, StatusReturned, StatusDeclined); err != nil {
		return nil, err
	}
	r.Status = StatusVoided
	r.touch(now)
	return &Transition{Entry: r.processing(actor, timeline.Voided, remarks, now)}, nil
}

// Resubmit puts a declined or returned request back in review.
func (r *Request) Resubmit(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusDeclined, StatusReturned); err != nil {
		return nil, err
	}
	r.Status = StatusPending
	r.touch(now)
	return &Transition{Entry: r.processing(actor, timeline.Resubmitted, remarks, now)}, nil
}

// Complete closes a request whose purchase order the captain accepted.
func (r *Request) Complete(actor internal.Actor, remarks string, now time.Time) (*Transition, error) {
	if err := requireCaptain(actor); err != nil {
		return nil, err
	}
	if err := r.requireStatus(StatusPending); err != nil {
		return nil, err
	}
	if r.Progress != ProgressPurchaseOrder {
		return nil, internal.ErrInvalidProgressStep.WithMessage("only purchase orders can be completed")
	}
	t := &Transition{
		Entry:                 r.approval(actor, timeline.Approved, remarks, now),
		CompletePurchaseOrder: true,
	}
	r.Status = StatusCompleted
	r.touch(now)
	return t, nil
}

// RecordQuotation is applied when an official submits or resubmits the
// supplier quotations of a request at the Quotation stage.
func (r *Request) RecordQuotation(actor internal.Actor, resubmit bool, remarks string, now time.Time) (*Transition, error) {
	if err := r.requireEditor(actor); err != nil {
		return nil, err
	}
	if r.Progress != ProgressQuotation {
		return nil, internal.ErrInvalidProgressStep.WithMessage("request is not at the quotation stage")
	}

	status := timeline.Submitted
	if resubmit {
		status = timeline.Resubmitted
		if err := r.requireStatus(StatusPending, StatusReturned, StatusDeclined); err != nil {
			return nil, err
		}
	} else if err := r.requireStatus(StatusPending); err != nil {
		return nil, err
	}

	r.Status = StatusPending
	r.touch(now)
	return &Transition{Entry: r.processing(actor, status, remarks, now)}, nil
}

// Stages reports which stages have received an approval.
type Stages struct {
	Form            bool `json:"form"`
	Quotation       bool `json:"quotation"`
	PurchaseRequest bool `json:"purchase_request"`
	PurchaseOrder   bool `json:"purchase_order"`
}

func ComputeStages(entries []timeline.Entry) Stages {
	approved := timeline.ApprovedProgresses(entries)
	return Stages{
		Form:            approved[string(ProgressRequestForm)],
		Quotation:       approved[string(ProgressQuotation)],
		PurchaseRequest: approved[string(ProgressPurchaseRequest)],
		PurchaseOrder:   approved[string(ProgressPurchaseOrder)],
	}
}

// Percent is 25 per approved stage.
func (s Stages) Percent() int {
	n := 0
	for _, ok := range []bool{s.Form, s.Quotation, s.PurchaseRequest, s.PurchaseOrder} {
		if ok {
			n++
		}
	}
	return n * 25
}
