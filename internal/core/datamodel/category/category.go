package category

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          int64          `gorm:"primaryKey"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description"`
	GroupName   string         `gorm:"column:group_name;not null;index"`
	Position    int            `gorm:"column:position;not null"`
	Status      string         `gorm:"column:status;not null;default:active"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`

	Subcategories []Subcategory `gorm:"foreignKey:CategoryID"`
}

func (Category) TableName() string { return "categories" }

type Subcategory struct {
	ID          int64          `gorm:"primaryKey"`
	CategoryID  int64          `gorm:"column:category_id;not null;index"`
	Name        string         `gorm:"column:name;not null"`
	Description string         `gorm:"column:description"`
	Status      string         `gorm:"column:status;not null;default:active"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Subcategory) TableName() string { return "sub_categories" }
