// Package category is the registry of budget categories and their
// subcategories, grouped the way the barangay financial report is laid out.
package category

import (
	"time"

	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
)

const (
	GroupBeginningCash = "Beginning Cash Balance"
	GroupReceipts      = "Receipts"
	GroupExpenditures  = "Expenditures"
)

// Groups lists the report sections in display order.
var Groups = []string{GroupBeginningCash, GroupReceipts, GroupExpenditures}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	GroupName     string        `json:"group_name"`
	Position      int           `json:"position"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

func (c *Category) IsActiveCategory() bool {
	return c.Status == StatusActive
}

func (c *Category) apply(dto CategoryDTO) {
	c.Name = dto.Name
	c.Description = dto.Description
	c.GroupName = dto.GroupName
	if dto.Status != "" {
		c.Status = dto.Status
	}
}

func NewCategory(dto CategoryDTO) *Category {
	c := &Category{Status: StatusActive}
	c.apply(dto)
	return c
}

type Subcategory struct {
	ID           int64     `json:"id"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Subcategory) apply(dto SubcategoryDTO) {
	s.CategoryID = dto.CategoryID
	s.Name = dto.Name
	s.Description = dto.Description
	if dto.Status != "" {
		s.Status = dto.Status
	}
}

func NewSubcategory(dto SubcategoryDTO) *Subcategory {
	s := &Subcategory{Status: StatusActive}
	s.apply(dto)
	return s
}

func ToDataModel(c *Category) *categoryDatamodel.Category {
	return &categoryDatamodel.Category{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		GroupName:   c.GroupName,
		Position:    c.Position,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func FromDataModel(m *categoryDatamodel.Category) *Category {
	c := &Category{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		GroupName:   m.GroupName,
		Position:    m.Position,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for i := range m.Subcategories {
		c.Subcategories = append(c.Subcategories, *SubcategoryFromDataModel(&m.Subcategories[i]))
	}
	return c
}

func SubcategoryToDataModel(s *Subcategory) *categoryDatamodel.Subcategory {
	return &categoryDatamodel.Subcategory{
		ID:          s.ID,
		CategoryID:  s.CategoryID,
		Name:        s.Name,
		Description: s.Description,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func SubcategoryFromDataModel(m *categoryDatamodel.Subcategory) *Subcategory {
	return &Subcategory{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Description: m.Description,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
