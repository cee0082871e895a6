package request

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
)

// RepositoryAPI reads requests and opens write transactions.
type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	List(ctx context.Context, filter ListFilter) ([]*Request, int64, error)
}

// TxRepository is bound to a single database transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*Request, error)
	Create(ctx context.Context, req *Request) error
	Save(ctx context.Context, req *Request) error
	ReplaceCollaborators(ctx context.Context, requestID int64, collaborators []Collaborator) error
	AddFiles(ctx context.Context, requestID int64, files []File) error
	RemoveFiles(ctx context.Context, requestID int64, fileIDs []int64) ([]File, error)
	AppendTimeline(ctx context.Context, entry *timeline.Entry) error
	CreateStageRecord(ctx context.Context, record StageRecord) error
	SelectQuotationCompany(ctx context.Context, requestID, companyID int64) error
	MarkSupplierApproval(ctx context.Context, requestID, processorID int64, at time.Time) error
	ApprovePurchaseOrder(ctx context.Context, requestID, approverID int64, at time.Time) error
}

type CategoryChecker interface {
	IsActiveCategory(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	repo       RepositoryAPI
	categories CategoryChecker
	files      storage.Store
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, categories CategoryChecker, files storage.Store, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		categories: categories,
		files:      files,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source; used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) checkCategory(ctx context.Context, id int64) error {
	if s.categories == nil {
		return nil
	}
	ok, err := s.categories.IsActiveCategory(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return internal.NewValidationFieldError("category_id", "category does not exist or is inactive", internal.ErrCodeInvalidCategory)
	}
	return nil
}

func storedToFiles(stored []storage.StoredFile) []File {
	files := make([]File, len(stored))
	for i, f := range stored {
		files[i] = File{Name: f.Name, Path: f.Path, Size: f.Size}
	}
	return files
}

func (s *Service) Create(ctx context.Context, actor internal.Actor, dto RequestFormDTO) (*Request, error) {
	if !actor.HasRole(internal.RoleOfficial) {
		return nil, internal.ErrNotAuthorized
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, dto.CategoryID); err != nil {
		return nil, err
	}

	batch := storage.NewBatch(s.files, s.logger)
	var created *Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req := NewRequest(actor, dto.Name, dto.CategoryID, dto.Description, s.now())
		if err := tx.Create(ctx, req); err != nil {
			return err
		}
		collaborators := dto.collaborators(actor.ID)
		if err := tx.ReplaceCollaborators(ctx, req.ID, collaborators); err != nil {
			return err
		}
		req.Collaborators = collaborators

		if len(dto.Files) > 0 {
			stored, err := batch.PutAll(ctx, dto.Files, fmt.Sprintf("requests/%d", req.ID))
			if err != nil {
				return err
			}
			files := storedToFiles(stored)
			if err := tx.AddFiles(ctx, req.ID, files); err != nil {
				return err
			}
			req.Files = files
		}
		created = req
		return nil
	})
	if err != nil {
		batch.Rollback(ctx)
		s.logger.Error("failed to create request", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	s.logger.Info("request created", "request_id", created.ID, "actor_id", actor.ID)
	return created, nil
}

// Update edits a draft request.
func (s *Service) Update(ctx context.Context, actor internal.Actor, id int64, dto RequestFormDTO) (*Request, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, dto.CategoryID); err != nil {
		return nil, err
	}

	var removed []File
	batch := storage.NewBatch(s.files, s.logger)
	var updated *Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != StatusDraft {
			return internal.ErrInvalidRequestStatus.WithMessage("only draft requests can be edited, use resubmit")
		}
		removed, err = s.applyForm(ctx, tx, batch, actor, req, dto)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, req); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		batch.Rollback(ctx)
		s.logger.Warn("failed to update request", "error", err, "request_id", id, "actor_id", actor.ID)
		return nil, err
	}

	s.deleteDetached(ctx, removed)
	s.logger.Info("request updated", "request_id", id, "actor_id", actor.ID)
	return updated, nil
}

func (s *Service) applyForm(ctx context.Context, tx TxRepository, batch *storage.Batch, actor internal.Actor, req *Request, dto RequestFormDTO) ([]File, error) {
	if err := req.Edit(actor, dto.Name, dto.CategoryID, dto.Description, s.now()); err != nil {
		return nil, err
	}

	collaborators := dto.collaborators(req.CreatedBy)
	if err := tx.ReplaceCollaborators(ctx, req.ID, collaborators); err != nil {
		return nil, err
	}
	req.Collaborators = collaborators

	var removed []File
	if len(dto.RemoveFileIDs) > 0 {
		var err error
		removed, err = tx.RemoveFiles(ctx, req.ID, dto.RemoveFileIDs)
		if err != nil {
			return nil, err
		}
		req.Files = withoutFiles(req.Files, removed)
	}

	if len(dto.Files) > 0 {
		stored, err := batch.PutAll(ctx, dto.Files, fmt.Sprintf("requests/%d", req.ID))
		if err != nil {
			return nil, err
		}
		added := storedToFiles(stored)
		if err := tx.AddFiles(ctx, req.ID, added); err != nil {
			return nil, err
		}
		req.Files = append(req.Files, added...)
	}
	return removed, nil
}

func withoutFiles(files, removed []File) []File {
	gone := make(map[int64]bool, len(removed))
	for _, f := range removed {
		gone[f.ID] = true
	}
	kept := files[:0:0]
	for _, f := range files {
		if !gone[f.ID] {
			kept = append(kept, f)
		}
	}
	return kept
}

func (s *Service) deleteDetached(ctx context.Context, files []File) {
	if len(files) == 0 || s.files == nil {
		return
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	storage.DeletePaths(ctx, s.files, s.logger, paths)
}

type applyFunc func(ctx context.Context, tx TxRepository, req *Request) (*Transition, error)

// transition loads the request, applies one action and persists the result
// in a single transaction. Events are published only after commit.
func (s *Service) transition(ctx context.Context, actor internal.Actor, id int64, eventType string, apply applyFunc) (*Request, error) {
	var result *Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		t, err := apply(ctx, tx, req)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, actor, req, t); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		s.logger.Warn("request transition rejected",
			"event", eventType,
			"request_id", id,
			"actor_id", actor.ID,
			"error", err)
		return nil, err
	}

	s.logger.Info("request transition applied",
		"event", eventType,
		"request_id", id,
		"actor_id", actor.ID,
		"status", result.Status,
		"progress", result.Progress)

	if err := s.publisher.Publish(ctx, events.NewRequestTransitionEvent(eventType, result.ID, actor.ID, string(result.Progress), string(result.Status))); err != nil {
		s.logger.Warn("failed to publish request event", "event", eventType, "error", err)
	}
	return result, nil
}

func (s *Service) persist(ctx context.Context, tx TxRepository, actor internal.Actor, req *Request, t *Transition) error {
	now := req.UpdatedAt
	if err := tx.Save(ctx, req); err != nil {
		return err
	}
	if t.SelectCompanyID != 0 {
		if err := tx.SelectQuotationCompany(ctx, req.ID, t.SelectCompanyID); err != nil {
			return err
		}
	}
	if t.SupplierApproval {
		if err := tx.MarkSupplierApproval(ctx, req.ID, actor.ID, now); err != nil {
			return err
		}
	}
	if t.CompletePurchaseOrder {
		if err := tx.ApprovePurchaseOrder(ctx, req.ID, actor.ID, now); err != nil {
			return err
		}
	}
	if t.Entry != nil {
		if err := tx.AppendTimeline(ctx, t.Entry); err != nil {
			return err
		}
		req.Timeline = append(req.Timeline, *t.Entry)
	}
	if t.Created != nil {
		if err := tx.CreateStageRecord(ctx, t.Created); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Submit(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestSubmitted, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Submit(actor, dto.Remarks, s.now())
	})
}

func (s *Service) Process(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestProcessed, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Process(actor, dto.Remarks, s.now())
	})
}

func (s *Service) ProcessPurchaseRequest(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestProcessed, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.ProcessPurchaseRequest(actor, dto.Remarks, s.now())
	})
}

func (s *Service) Approve(ctx context.Context, actor internal.Actor, id int64, dto ApproveRequestDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestApproved, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Approve(actor, dto.Remarks, dto.CompanyID, s.now())
	})
}

func (s *Service) Decline(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestDeclined, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Decline(actor, dto.Remarks, s.now())
	})
}

func (s *Service) Return(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestReturned, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Return(actor, dto.Remarks, s.now())
	})
}

func (s *Service) Void(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestVoided, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Void(actor, dto.Remarks, s.now())
	})
}

func (s *Service) Complete(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error) {
	return s.transition(ctx, actor, id, events.EventTypeRequestCompleted, func(_ context.Context, _ TxRepository, req *Request) (*Transition, error) {
		return req.Complete(actor, dto.Remarks, s.now())
	})
}

// Resubmit reopens a declined or returned request. At the Request Form stage
// the form fields may be edited in the same step.
func (s *Service) Resubmit(ctx context.Context, actor internal.Actor, id int64, dto ResubmitRequestDTO) (*Request, error) {
	if dto.Form != nil {
		if err := dto.Form.Validate(); err != nil {
			return nil, err
		}
		if err := s.checkCategory(ctx, dto.Form.CategoryID); err != nil {
			return nil, err
		}
	}

	var removed []File
	batch := storage.NewBatch(s.files, s.logger)
	req, err := s.transition(ctx, actor, id, events.EventTypeRequestResubmitted, func(ctx context.Context, tx TxRepository, req *Request) (*Transition, error) {
		if dto.Form != nil && req.Progress == ProgressRequestForm {
			var err error
			removed, err = s.applyForm(ctx, tx, batch, actor, req, *dto.Form)
			if err != nil {
				return nil, err
			}
		}
		return req.Resubmit(actor, dto.Remarks, s.now())
	})
	if err != nil {
		batch.Rollback(ctx)
		return nil, err
	}
	s.deleteDetached(ctx, removed)
	return req, nil
}

func (s *Service) Get(ctx context.Context, actor internal.Actor, id int64) (*View, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PermissionFor(actor) == PermissionNone {
		s.logger.Warn("request access denied", "request_id", id, "actor_id", actor.ID)
		return nil, internal.ErrNotAuthorized
	}
	timeline.Sort(req.Timeline)
	return NewView(req, actor), nil
}

// OpenFile streams an attachment to a viewer of the request.
func (s *Service) OpenFile(ctx context.Context, actor internal.Actor, requestID, fileID int64) (io.ReadCloser, *File, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.PermissionFor(actor) == PermissionNone {
		return nil, nil, internal.ErrNotAuthorized
	}
	for i := range req.Files {
		if req.Files[i].ID != fileID {
			continue
		}
		rc, err := s.files.Open(ctx, req.Files[i].Path)
		if err != nil {
			return nil, nil, err
		}
		return rc, &req.Files[i], nil
	}
	return nil, nil, internal.ErrFileNotFound
}

func (s *Service) ListForOfficial(ctx context.Context, actor internal.Actor, tab string, page int) (*Page, error) {
	filter := ListFilter{ParticipantID: actor.ID, Page: page, PerPage: OfficialPageSize}
	terminal := []Status{StatusVoided, StatusCompleted}

	switch strings.ToLower(tab) {
	case "", TabAll:
	case TabForm:
		filter.Progress = ProgressRequestForm
		filter.ExcludeStatuses = terminal
	case TabQuotation:
		filter.Progress = ProgressQuotation
		filter.ExcludeStatuses = terminal
	case TabPurchaseRequest:
		filter.Progress = ProgressPurchaseRequest
		filter.ExcludeStatuses = terminal
	case TabPurchaseOrder:
		filter.Progress = ProgressPurchaseOrder
		filter.ExcludeStatuses = terminal
	case TabHistory:
		filter.Statuses = terminal
	default:
		return nil, internal.NewValidationFieldError("tab", "unknown tab "+tab, internal.ErrCodeValidationFailed)
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list requests", "error", err, "actor_id", actor.ID, "tab", tab)
		return nil, err
	}
	return newPage(items, total, page, filter.PerPage), nil
}

func (s *Service) ListForCaptain(ctx context.Context, actor internal.Actor, dto CaptainFilterDTO) (*Page, error) {
	if !actor.HasRole(internal.RoleCaptain) {
		return nil, internal.ErrNotAuthorized
	}

	filter := ListFilter{
		ExcludeStatuses: []Status{StatusDraft},
		Search:          strings.TrimSpace(dto.Search),
		From:            dto.From,
		To:              dto.To,
		Page:            dto.Page,
		PerPage:         CaptainPageSize,
	}
	if dto.Progress != "" {
		p := Progress(dto.Progress)
		if !p.Valid() {
			return nil, internal.NewValidationFieldError("progress", "unknown progress "+dto.Progress, internal.ErrCodeValidationFailed)
		}
		filter.Progress = p
	}
	if dto.Status != "" {
		st := Status(dto.Status)
		if !st.Valid() || st == StatusDraft {
			return nil, internal.NewValidationFieldError("status", "unknown status "+dto.Status, internal.ErrCodeValidationFailed)
		}
		filter.Statuses = []Status{st}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list requests for captain", "error", err)
		return nil, err
	}
	return newPage(items, total, dto.Page, filter.PerPage), nil
}
