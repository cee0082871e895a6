package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	requestDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
	userDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	quotationPostgres "github.com/frahmantamala/barangay-procurement/internal/quotation/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
	timelinePostgres "github.com/frahmantamala/barangay-procurement/internal/timeline/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	stagePending  = "pending"
	stageApproved = "approved"
)

// RequestRepository implements request.RepositoryAPI and, when bound to a
// transaction handle, request.TxRepository.
type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx request.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRequestRepository(tx))
	})
}

func (r *RequestRepository) lock(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *RequestRepository) GetForUpdate(ctx context.Context, id int64) (*request.Request, error) {
	var m requestDatamodel.Request
	err := r.lock(r.db.WithContext(ctx)).
		Preload("Collaborators").
		Preload("Files").
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, err
	}
	return FromDataModel(&m), nil
}

func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	m := ToDataModel(req)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return err
	}
	req.ID = m.ID
	req.CreatedAt = m.CreatedAt
	req.UpdatedAt = m.UpdatedAt
	return nil
}

// Save writes the mutable columns only if nobody else bumped the version.
func (r *RequestRepository) Save(ctx context.Context, req *request.Request) error {
	updatedAt := req.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).
		Model(&requestDatamodel.Request{}).
		Where("id = ? AND version = ?", req.ID, req.Version).
		Updates(map[string]interface{}{
			"name":         req.Name,
			"category_id":  req.CategoryID,
			"description":  req.Description,
			"status":       string(req.Status),
			"progress":     string(req.Progress),
			"processed_by": req.ProcessedBy,
			"processed_at": req.ProcessedAt,
			"version":      req.Version + 1,
			"updated_at":   updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrConcurrentModification
	}
	req.Version++
	return nil
}

func (r *RequestRepository) ReplaceCollaborators(ctx context.Context, requestID int64, collaborators []request.Collaborator) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("request_id = ?", requestID).Delete(&requestDatamodel.Collaborator{}).Error; err != nil {
		return err
	}
	if len(collaborators) == 0 {
		return nil
	}
	rows := make([]requestDatamodel.Collaborator, len(collaborators))
	for i, c := range collaborators {
		rows[i] = requestDatamodel.Collaborator{RequestID: requestID, UserID: c.UserID, Permission: string(c.Permission)}
	}
	return db.Create(&rows).Error
}

func (r *RequestRepository) AddFiles(ctx context.Context, requestID int64, files []request.File) error {
	if len(files) == 0 {
		return nil
	}
	rows := make([]requestDatamodel.File, len(files))
	for i, f := range files {
		rows[i] = requestDatamodel.File{RequestID: requestID, Name: f.Name, Path: f.Path, Size: f.Size}
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return err
	}
	for i := range files {
		files[i].ID = rows[i].ID
		files[i].CreatedAt = rows[i].CreatedAt
	}
	return nil
}

func (r *RequestRepository) RemoveFiles(ctx context.Context, requestID int64, fileIDs []int64) ([]request.File, error) {
	db := r.db.WithContext(ctx)
	var rows []requestDatamodel.File
	if err := db.Where("request_id = ? AND id IN ?", requestID, fileIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := db.Where("request_id = ? AND id IN ?", requestID, fileIDs).Delete(&requestDatamodel.File{}).Error; err != nil {
		return nil, err
	}
	out := make([]request.File, len(rows))
	for i, f := range rows {
		out[i] = fileFromDataModel(f)
	}
	return out, nil
}

func (r *RequestRepository) AppendTimeline(ctx context.Context, entry *timeline.Entry) error {
	return timelinePostgres.NewTimelineRepository(r.db).Append(ctx, entry)
}

func (r *RequestRepository) CreateStageRecord(ctx context.Context, record request.StageRecord) error {
	db := r.db.WithContext(ctx)
	switch rec := record.(type) {
	case request.QuotationRecord:
		return db.Create(&requestDatamodel.Quotation{RequestID: rec.RequestID, Status: stagePending}).Error
	case request.PurchaseRequestRecord:
		return db.Create(&requestDatamodel.PurchaseRequest{RequestID: rec.RequestID, Status: stagePending}).Error
	case request.PurchaseOrderRecord:
		return db.Create(&requestDatamodel.PurchaseOrder{RequestID: rec.RequestID, Status: stagePending}).Error
	default:
		return internal.ErrInvalidProgressStep
	}
}

func (r *RequestRepository) SelectQuotationCompany(ctx context.Context, requestID, companyID int64) error {
	var q requestDatamodel.Quotation
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return internal.ErrMissingSelection.WithMessage("no quotation has been submitted for this request")
		}
		return err
	}
	if err := quotationPostgres.SelectCompany(ctx, r.db, q.ID, companyID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&requestDatamodel.Quotation{}).
		Where("id = ?", q.ID).
		Update("status", stageApproved).Error
}

func (r *RequestRepository) MarkSupplierApproval(ctx context.Context, requestID, processorID int64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&requestDatamodel.PurchaseRequest{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"have_supplier_approval": true,
			"processed_by":           processorID,
			"processed_at":           at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrInvalidProgressStep.WithMessage("purchase request record is missing")
	}
	return nil
}

func (r *RequestRepository) ApprovePurchaseOrder(ctx context.Context, requestID, approverID int64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&requestDatamodel.PurchaseOrder{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"status":       stageApproved,
			"processed_by": approverID,
			"processed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrInvalidProgressStep.WithMessage("purchase order record is missing")
	}
	return nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*request.Request, error) {
	db := r.db.WithContext(ctx)

	var m requestDatamodel.Request
	err := db.Preload("Collaborators").Preload("Files").Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRequestNotFound
		}
		return nil, err
	}
	req := FromDataModel(&m)

	userIDs := []int64{req.CreatedBy}
	if req.ProcessedBy != nil {
		userIDs = append(userIDs, *req.ProcessedBy)
	}
	for _, c := range req.Collaborators {
		userIDs = append(userIDs, c.UserID)
	}

	var stages struct {
		quotation requestDatamodel.Quotation
		pr        requestDatamodel.PurchaseRequest
		po        requestDatamodel.PurchaseOrder
	}
	if req.Quotation, err = findStage(db, id, &stages.quotation, func() *request.StageState {
		q := stages.quotation
		return &request.StageState{ID: q.ID, Status: q.Status, HaveQuotation: q.HaveQuotation, ProcessedBy: q.ProcessedBy, ProcessedAt: q.ProcessedAt}
	}); err != nil {
		return nil, err
	}
	if req.PurchaseRequest, err = findStage(db, id, &stages.pr, func() *request.StageState {
		p := stages.pr
		return &request.StageState{ID: p.ID, Status: p.Status, HaveSupplierApproval: p.HaveSupplierApproval, ProcessedBy: p.ProcessedBy, ProcessedAt: p.ProcessedAt}
	}); err != nil {
		return nil, err
	}
	if req.PurchaseOrder, err = findStage(db, id, &stages.po, func() *request.StageState {
		p := stages.po
		return &request.StageState{ID: p.ID, Status: p.Status, ProcessedBy: p.ProcessedBy, ProcessedAt: p.ProcessedAt}
	}); err != nil {
		return nil, err
	}
	for _, st := range []*request.StageState{req.Quotation, req.PurchaseRequest, req.PurchaseOrder} {
		if st != nil && st.ProcessedBy != nil {
			userIDs = append(userIDs, *st.ProcessedBy)
		}
	}

	names, err := userNames(db, userIDs)
	if err != nil {
		return nil, err
	}
	req.CreatorName = names[req.CreatedBy]
	if req.ProcessedBy != nil {
		req.ProcessorName = names[*req.ProcessedBy]
	}
	for i := range req.Collaborators {
		req.Collaborators[i].Name = names[req.Collaborators[i].UserID]
	}
	for _, st := range []*request.StageState{req.Quotation, req.PurchaseRequest, req.PurchaseOrder} {
		if st != nil && st.ProcessedBy != nil {
			st.ProcessedByName = names[*st.ProcessedBy]
		}
	}

	categories, err := categoryNames(db, []int64{req.CategoryID})
	if err != nil {
		return nil, err
	}
	req.CategoryName = categories[req.CategoryID]

	req.Timeline, err = timelinePostgres.NewTimelineRepository(r.db).ListByRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func findStage(db *gorm.DB, requestID int64, dest interface{}, build func() *request.StageState) (*request.StageState, error) {
	err := db.Where("request_id = ?", requestID).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return build(), nil
}

func (r *RequestRepository) List(ctx context.Context, filter request.ListFilter) ([]*request.Request, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&requestDatamodel.Request{})
		if filter.ParticipantID != 0 {
			q = q.Where("requests.created_by = ? OR requests.id IN (?)", filter.ParticipantID,
				r.db.Model(&requestDatamodel.Collaborator{}).Select("request_id").Where("user_id = ?", filter.ParticipantID))
		}
		if len(filter.Statuses) > 0 {
			q = q.Where("requests.status IN ?", statusStrings(filter.Statuses))
		}
		if len(filter.ExcludeStatuses) > 0 {
			q = q.Where("requests.status NOT IN ?", statusStrings(filter.ExcludeStatuses))
		}
		if filter.Progress != "" {
			q = q.Where("requests.progress = ?", string(filter.Progress))
		}
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			q = q.Where("(LOWER(requests.name) LIKE ? OR LOWER(requests.description) LIKE ?)", like, like)
		}
		if filter.From != nil {
			q = q.Where("requests.created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			q = q.Where("requests.created_at <= ?", *filter.To)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := base().Order("requests.created_at DESC").Order("requests.id DESC")
	if filter.PerPage > 0 {
		q = q.Limit(filter.PerPage).Offset(filter.Offset())
	}
	var rows []requestDatamodel.Request
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return []*request.Request{}, total, nil
	}

	ids := make([]int64, len(rows))
	userIDs := make([]int64, 0, len(rows))
	categoryIDs := make([]int64, 0, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		userIDs = append(userIDs, row.CreatedBy)
		categoryIDs = append(categoryIDs, row.CategoryID)
	}

	names, err := userNames(r.db.WithContext(ctx), userIDs)
	if err != nil {
		return nil, 0, err
	}
	categories, err := categoryNames(r.db.WithContext(ctx), categoryIDs)
	if err != nil {
		return nil, 0, err
	}

	var approvals []requestDatamodel.Timeline
	if err := r.db.WithContext(ctx).
		Where("request_id IN ? AND approved_status = ?", ids, string(timeline.Approved)).
		Find(&approvals).Error; err != nil {
		return nil, 0, err
	}
	byRequest := make(map[int64][]timeline.Entry)
	for i := range approvals {
		byRequest[approvals[i].RequestID] = append(byRequest[approvals[i].RequestID], timeline.FromDataModel(&approvals[i]))
	}

	out := make([]*request.Request, len(rows))
	for i := range rows {
		req := FromDataModel(&rows[i])
		req.CreatorName = names[req.CreatedBy]
		req.CategoryName = categories[req.CategoryID]
		req.Timeline = byRequest[req.ID]
		out[i] = req
	}
	return out, total, nil
}

func statusStrings(statuses []request.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func userNames(db *gorm.DB, ids []int64) (map[int64]string, error) {
	var users []userDatamodel.User
	if err := db.Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Name
	}
	return out, nil
}

func categoryNames(db *gorm.DB, ids []int64) (map[int64]string, error) {
	var categories []categoryDatamodel.Category
	if err := db.Unscoped().Select("id", "name").Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out, nil
}

func ToDataModel(req *request.Request) *requestDatamodel.Request {
	return &requestDatamodel.Request{
		ID:          req.ID,
		Name:        req.Name,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Status:      string(req.Status),
		Progress:    string(req.Progress),
		CreatedBy:   req.CreatedBy,
		ProcessedBy: req.ProcessedBy,
		ProcessedAt: req.ProcessedAt,
		Version:     req.Version,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}

func FromDataModel(m *requestDatamodel.Request) *request.Request {
	req := &request.Request{
		ID:            m.ID,
		Name:          m.Name,
		CategoryID:    m.CategoryID,
		Description:   m.Description,
		Status:        request.Status(m.Status),
		Progress:      request.Progress(m.Progress),
		CreatedBy:     m.CreatedBy,
		ProcessedBy:   m.ProcessedBy,
		ProcessedAt:   m.ProcessedAt,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Collaborators: make([]request.Collaborator, 0, len(m.Collaborators)),
		Files:         make([]request.File, 0, len(m.Files)),
	}
	for _, c := range m.Collaborators {
		req.Collaborators = append(req.Collaborators, request.Collaborator{UserID: c.UserID, Permission: request.Permission(c.Permission)})
	}
	for _, f := range m.Files {
		req.Files = append(req.Files, fileFromDataModel(f))
	}
	return req
}

func fileFromDataModel(f requestDatamodel.File) request.File {
	return request.File{ID: f.ID, Name: f.Name, Path: f.Path, Size: f.Size, CreatedAt: f.CreatedAt}
}
