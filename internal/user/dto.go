package user

import (
	"strings"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
)

type CreateUserDTO struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=captain admin official secretary treasurer"`
	Status   string `json:"status" validate:"required,oneof=active inactive"`
}

func (dto CreateUserDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

// UpdateUserDTO leaves the password untouched when it is empty.
type UpdateUserDTO struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"omitempty,min=8"`
	Role     string `json:"role" validate:"required,oneof=captain admin official secretary treasurer"`
	Status   string `json:"status" validate:"required,oneof=active inactive"`
}

func (dto UpdateUserDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type UpdatePasswordDTO struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (dto UpdatePasswordDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
