package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx category.TxRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewCategoryRepository(tx))
	})
}

func (r *CategoryRepository) GetCategory(ctx context.Context, id int64) (*category.Category, error) {
	var model categoryDatamodel.Category
	err := r.db.WithContext(ctx).
		Preload("Subcategories", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCategoryNotFound
		}
		return nil, err
	}
	return category.FromDataModel(&model), nil
}

func (r *CategoryRepository) GetSubcategory(ctx context.Context, id int64) (*category.Subcategory, error) {
	var model categoryDatamodel.Subcategory
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSubcategoryNotFound
		}
		return nil, err
	}
	sub := category.SubcategoryFromDataModel(&model)
	var parent categoryDatamodel.Category
	if err := r.db.WithContext(ctx).Unscoped().Select("name").First(&parent, model.CategoryID).Error; err == nil {
		sub.CategoryName = parent.Name
	}
	return sub, nil
}

func like(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

func (r *CategoryRepository) ListCategories(ctx context.Context, f category.ListFilter) ([]category.Category, int64, error) {
	q := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{})
	if f.Search != "" {
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like(f.Search), like(f.Search))
	}
	if f.GroupName != "" {
		q = q.Where("group_name = ?", f.GroupName)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []categoryDatamodel.Category
	err := q.Preload("Subcategories", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Order("group_name ASC").Order("position ASC").Order("id ASC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]category.Category, len(models))
	for i := range models {
		out[i] = *category.FromDataModel(&models[i])
	}
	return out, total, nil
}

type subcategoryRow struct {
	categoryDatamodel.Subcategory
	CategoryName string `gorm:"column:category_name"`
}

func (r *CategoryRepository) ListSubcategories(ctx context.Context, f category.ListFilter) ([]category.Subcategory, int64, error) {
	q := r.db.WithContext(ctx).Table("sub_categories").
		Joins("JOIN categories ON categories.id = sub_categories.category_id").
		Where("sub_categories.deleted_at IS NULL")
	if f.Search != "" {
		q = q.Where("LOWER(sub_categories.name) LIKE ? OR LOWER(categories.name) LIKE ?", like(f.Search), like(f.Search))
	}
	if f.CategoryID != 0 {
		q = q.Where("sub_categories.category_id = ?", f.CategoryID)
	}
	if f.GroupName != "" {
		q = q.Where("categories.group_name = ?", f.GroupName)
	}
	if f.Status != "" {
		q = q.Where("sub_categories.status = ?", f.Status)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []subcategoryRow
	err := q.Select("sub_categories.*, categories.name AS category_name").
		Order("categories.name ASC").Order("sub_categories.name ASC").
		Limit(f.Limit).Offset(f.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]category.Subcategory, len(rows))
	for i := range rows {
		sub := category.SubcategoryFromDataModel(&rows[i].Subcategory)
		sub.CategoryName = rows[i].CategoryName
		out[i] = *sub
	}
	return out, total, nil
}

func (r *CategoryRepository) IsActiveCategory(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{}).
		Where("id = ? AND status = ?", id, category.StatusActive).
		Count(&count).Error
	return count > 0, err
}

func (r *CategoryRepository) NextPosition(ctx context.Context, group string) (int, error) {
	q := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{})
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var positions []int
	if err := q.Where("group_name = ?", group).Order("position DESC").Limit(1).Pluck("position", &positions).Error; err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 1, nil
	}
	return positions[0] + 1, nil
}

func (r *CategoryRepository) PositionTaken(ctx context.Context, group string, position int, exceptID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{}).
		Where("group_name = ? AND position = ? AND id <> ?", group, position, exceptID).
		Count(&count).Error
	return count > 0, err
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, c *category.Category) error {
	model := category.ToDataModel(c)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return err
	}
	c.ID, c.CreatedAt, c.UpdatedAt = model.ID, model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *CategoryRepository) UpdateCategory(ctx context.Context, c *category.Category) error {
	res := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
		"group_name":  c.GroupName,
		"position":    c.Position,
		"status":      c.Status,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory soft deletes the category and its subcategories.
func (r *CategoryRepository) DeleteCategory(ctx context.Context, id int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("category_id = ?", id).Delete(&categoryDatamodel.Subcategory{}).Error; err != nil {
		return err
	}
	res := db.Delete(&categoryDatamodel.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) CreateSubcategory(ctx context.Context, s *category.Subcategory) error {
	model := category.SubcategoryToDataModel(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	s.ID, s.CreatedAt, s.UpdatedAt = model.ID, model.CreatedAt, model.UpdatedAt
	return nil
}

func (r *CategoryRepository) UpdateSubcategory(ctx context.Context, s *category.Subcategory) error {
	res := r.db.WithContext(ctx).Model(&categoryDatamodel.Subcategory{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"category_id": s.CategoryID,
		"name":        s.Name,
		"description": s.Description,
		"status":      s.Status,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrSubcategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) DeleteSubcategory(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&categoryDatamodel.Subcategory{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrSubcategoryNotFound
	}
	return nil
}

// CreateBudget opens an all-zero budget row; an existing row is left alone.
func (r *CategoryRepository) CreateBudget(ctx context.Context, subcategoryID int64, year int) error {
	model := fundDatamodel.Budget{SubcategoryID: subcategoryID, Year: year}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}
