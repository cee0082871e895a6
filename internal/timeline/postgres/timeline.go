package postgres

import (
	"context"

	requestDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
	"gorm.io/gorm"
)

type TimelineRepository struct {
	db *gorm.DB
}

// NewTimelineRepository binds to db, which may be a transaction handle.
func NewTimelineRepository(db *gorm.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

func (r *TimelineRepository) Append(ctx context.Context, entry *timeline.Entry) error {
	model := timeline.ToDataModel(entry)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

type timelineRow struct {
	requestDatamodel.Timeline
	ApproverName  *string `gorm:"column:approver_name"`
	ProcessorName *string `gorm:"column:processor_name"`
}

func (r *TimelineRepository) ListByRequest(ctx context.Context, requestID int64) ([]timeline.Entry, error) {
	var rows []timelineRow
	err := r.db.WithContext(ctx).
		Table("request_timelines AS t").
		Select("t.*, approver.name AS approver_name, processor.name AS processor_name").
		Joins("LEFT JOIN users approver ON approver.id = t.approver_id").
		Joins("LEFT JOIN users processor ON processor.id = t.processor_id").
		Where("t.request_id = ?", requestID).
		Order("t.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]timeline.Entry, len(rows))
	for i := range rows {
		entries[i] = timeline.FromDataModel(&rows[i].Timeline)
		if rows[i].ApproverName != nil {
			entries[i].ApproverName = *rows[i].ApproverName
		}
		if rows[i].ProcessorName != nil {
			entries[i].ProcessorName = *rows[i].ProcessorName
		}
	}
	timeline.Sort(entries)
	return entries, nil
}
