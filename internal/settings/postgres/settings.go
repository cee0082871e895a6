package postgres

import (
	"context"
	"errors"
	"time"

	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx settings.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewSettingsRepository(tx))
	})
}

func (r *SettingsRepository) List(ctx context.Context) ([]settings.Setting, error) {
	var models []fundDatamodel.Setting
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]settings.Setting, len(models))
	for i := range models {
		out[i] = settings.FromDataModel(&models[i])
	}
	return out, nil
}

func (r *SettingsRepository) GetOrCreateForUpdate(ctx context.Context, name settings.Name) (*settings.Setting, error) {
	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model fundDatamodel.Setting
	err := q.Where("name = ?", string(name)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = fundDatamodel.Setting{Name: string(name)}
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	st := settings.FromDataModel(&model)
	return &st, nil
}

func (r *SettingsRepository) SetLocked(ctx context.Context, id int64, locked bool) error {
	return r.db.WithContext(ctx).
		Model(&fundDatamodel.Setting{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_locked": locked, "updated_at": time.Now()}).Error
}

func (r *SettingsRepository) AppendTimeline(ctx context.Context, entry *settings.TimelineEntry) error {
	model := fundDatamodel.SettingTimeline{
		SettingID: entry.SettingID,
		Action:    string(entry.Action),
		UserID:    entry.UserID,
		CreatedAt: entry.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

type timelineRow struct {
	fundDatamodel.SettingTimeline
	SettingName string  `gorm:"column:setting_name"`
	UserName    *string `gorm:"column:user_name"`
}

// ListTimeline returns the most recent toggles first.
func (r *SettingsRepository) ListTimeline(ctx context.Context, limit int) ([]settings.TimelineEntry, error) {
	var rows []timelineRow
	err := r.db.WithContext(ctx).
		Table("fund_settings_timelines AS t").
		Select("t.*, s.name AS setting_name, u.name AS user_name").
		Joins("JOIN fund_settings s ON s.id = t.fund_setting_id").
		Joins("LEFT JOIN users u ON u.id = t.user_id").
		Order("t.created_at DESC, t.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]settings.TimelineEntry, len(rows))
	for i, row := range rows {
		out[i] = settings.TimelineEntry{
			ID:        row.ID,
			SettingID: row.SettingID,
			Setting:   settings.Name(row.SettingName),
			Action:    settings.Action(row.Action),
			UserID:    row.UserID,
			CreatedAt: row.CreatedAt,
		}
		if row.UserName != nil {
			out[i].UserName = *row.UserName
		}
	}
	return out, nil
}
