package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	requestDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
	"github.com/frahmantamala/barangay-procurement/internal/quotation"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestsFactory binds a request repository to a transaction handle.
type RequestsFactory func(tx *gorm.DB) request.TxRepository

type QuotationRepository struct {
	db       *gorm.DB
	requests RequestsFactory
}

func NewQuotationRepository(db *gorm.DB, requests RequestsFactory) *QuotationRepository {
	return &QuotationRepository{db: db, requests: requests}
}

func (r *QuotationRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx quotation.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewQuotationRepository(tx, r.requests))
	})
}

func (r *QuotationRepository) Requests() request.TxRepository {
	return r.requests(r.db)
}

func (r *QuotationRepository) GetOrCreate(ctx context.Context, requestID int64) (*quotation.Quotation, error) {
	db := r.db.WithContext(ctx)
	var m requestDatamodel.Quotation
	err := db.Where("request_id = ?", requestID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		m = requestDatamodel.Quotation{RequestID: requestID, Status: quotation.StatusPending}
		err = db.Create(&m).Error
	}
	if err != nil {
		return nil, err
	}
	return quotationFromDataModel(&m), nil
}

// UpsertCompany matches companies by email and refreshes their contact data.
func (r *QuotationRepository) UpsertCompany(ctx context.Context, company *quotation.Company) error {
	db := r.db.WithContext(ctx)
	var m requestDatamodel.Company
	err := db.Where("email = ?", company.Email).First(&m).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = requestDatamodel.Company{Email: company.Email}
	case err != nil:
		return err
	}

	m.CompanyName = company.Name
	m.ContactPerson = company.ContactPerson
	m.Address = company.Address
	m.ContactNumber = company.ContactNumber
	if err := db.Save(&m).Error; err != nil {
		return err
	}
	company.ID = m.ID
	return nil
}

func (r *QuotationRepository) ReplaceDetails(ctx context.Context, quotationID int64, details []quotation.Detail) error {
	db := r.db.WithContext(ctx)

	existing := db.Model(&requestDatamodel.QuotationDetail{}).Select("id").Where("request_quotation_id = ?", quotationID)
	if err := db.Where("request_quotation_detail_id IN (?)", existing).Delete(&requestDatamodel.QuotationItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("request_quotation_id = ?", quotationID).Delete(&requestDatamodel.QuotationDetail{}).Error; err != nil {
		return err
	}

	for i := range details {
		dm := requestDatamodel.QuotationDetail{
			QuotationID: quotationID,
			CompanyID:   details[i].CompanyID,
		}
		if err := db.Omit(clause.Associations).Create(&dm).Error; err != nil {
			return err
		}
		details[i].ID = dm.ID

		if len(details[i].Items) == 0 {
			continue
		}
		items := make([]requestDatamodel.QuotationItem, len(details[i].Items))
		for j, it := range details[i].Items {
			items[j] = requestDatamodel.QuotationItem{
				QuotationDetailID: dm.ID,
				ItemName:          it.Name,
				Description:       it.Description,
				Price:             it.Price,
				Quantity:          it.Quantity,
			}
		}
		if err := db.Create(&items).Error; err != nil {
			return err
		}
		for j := range items {
			details[i].Items[j].ID = items[j].ID
		}
	}
	return nil
}

func (r *QuotationRepository) MarkSubmitted(ctx context.Context, quotationID, processorID int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&requestDatamodel.Quotation{}).
		Where("id = ?", quotationID).
		Updates(map[string]interface{}{
			"status":         quotation.StatusPending,
			"have_quotation": true,
			"processed_by":   processorID,
			"processed_at":   at,
		}).Error
}

func (r *QuotationRepository) GetByRequest(ctx context.Context, requestID int64) (*quotation.Quotation, error) {
	var m requestDatamodel.Quotation
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Details.Company").
		Preload("Details.Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("request_id = ?", requestID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrQuotationNotFound
		}
		return nil, err
	}
	return quotationFromDataModel(&m), nil
}

// SelectCompany leaves exactly one detail of the quotation selected: the one
// quoted by companyID.
func SelectCompany(ctx context.Context, db *gorm.DB, quotationID, companyID int64) error {
	db = db.WithContext(ctx)
	var rows []requestDatamodel.QuotationDetail
	if err := db.Select("id", "company_id", "is_selected").
		Where("request_quotation_id = ?", quotationID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return err
	}

	details := make([]quotation.Detail, len(rows))
	for i, row := range rows {
		details[i] = quotation.Detail{ID: row.ID, CompanyID: row.CompanyID, IsSelected: row.IsSelected}
	}
	idx, err := quotation.SelectCompany(details, companyID)
	if err != nil {
		return err
	}

	if err := db.Model(&requestDatamodel.QuotationDetail{}).
		Where("request_quotation_id = ?", quotationID).
		Update("is_selected", false).Error; err != nil {
		return err
	}
	return db.Model(&requestDatamodel.QuotationDetail{}).
		Where("id = ?", details[idx].ID).
		Update("is_selected", true).Error
}

func quotationFromDataModel(m *requestDatamodel.Quotation) *quotation.Quotation {
	q := &quotation.Quotation{
		ID:            m.ID,
		RequestID:     m.RequestID,
		Status:        m.Status,
		HaveQuotation: m.HaveQuotation,
		ProcessedBy:   m.ProcessedBy,
		ProcessedAt:   m.ProcessedAt,
		Details:       make([]quotation.Detail, 0, len(m.Details)),
	}
	for _, d := range m.Details {
		detail := quotation.Detail{
			ID:         d.ID,
			CompanyID:  d.CompanyID,
			IsSelected: d.IsSelected,
			Company: quotation.Company{
				ID:            d.Company.ID,
				Name:          d.Company.CompanyName,
				ContactPerson: d.Company.ContactPerson,
				Address:       d.Company.Address,
				ContactNumber: d.Company.ContactNumber,
				Email:         d.Company.Email,
			},
			Items: make([]quotation.Item, 0, len(d.Items)),
		}
		for _, it := range d.Items {
			detail.Items = append(detail.Items, quotation.Item{
				ID:          it.ID,
				Name:        it.ItemName,
				Description: it.Description,
				Price:       it.Price,
				Quantity:    it.Quantity,
			})
		}
		q.Details = append(q.Details, detail)
	}
	return q
}
