package category

import (
	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
)

type CategoryDTO struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	GroupName   string `json:"group_name" validate:"required,oneof='Beginning Cash Balance' Receipts Expenditures"`
	Position    *int   `json:"position" validate:"omitempty,gte=1"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (dto CategoryDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type SubcategoryDTO struct {
	CategoryID  int64  `json:"category_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (dto SubcategoryDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

const PageSize = 10

type ListFilter struct {
	Search     string
	GroupName  string
	Status     string
	CategoryID int64
	Limit      int
	Offset     int
}

type ListFilterDTO struct {
	Search     string `json:"search" validate:"max=255"`
	GroupName  string `json:"type" validate:"omitempty,oneof='Beginning Cash Balance' Receipts Expenditures"`
	Status     string `json:"status" validate:"omitempty,oneof=active inactive"`
	CategoryID int64  `json:"category_id"`
	Page       int    `json:"page"`
}

func (dto ListFilterDTO) Filter() (ListFilter, *internal.AppError) {
	if err := validation.Struct(dto); err != nil {
		return ListFilter{}, err
	}
	page := dto.Page
	if page < 1 {
		page = 1
	}
	return ListFilter{
		Search:     dto.Search,
		GroupName:  dto.GroupName,
		Status:     dto.Status,
		CategoryID: dto.CategoryID,
		Limit:      PageSize,
		Offset:     (page - 1) * PageSize,
	}, nil
}

type Page[T any] struct {
	Items    []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"current_page"`
	PerPage  int   `json:"per_page"`
	LastPage int   `json:"last_page"`
}

func newPage[T any](items []T, total int64, f ListFilter) *Page[T] {
	last := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	if last < 1 {
		last = 1
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: f.Offset/f.Limit + 1, PerPage: f.Limit, LastPage: last}
}
