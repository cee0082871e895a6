package settings

import (
	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
)

type ToggleLockDTO struct {
	IsLocked *bool `json:"is_locked" validate:"required"`
}

func (dto ToggleLockDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type SettingChange struct {
	Name     string `json:"name" validate:"required,oneof=budget categories sub_categories"`
	IsLocked *bool  `json:"is_locked" validate:"required"`
}

type SaveChangesDTO struct {
	Settings []SettingChange `json:"settings" validate:"required,min=1,dive"`
}

func (dto SaveChangesDTO) Validate() *internal.AppError {
	if err := validation.Struct(dto); err != nil {
		return err
	}
	seen := make(map[string]bool, len(dto.Settings))
	for _, c := range dto.Settings {
		if seen[c.Name] {
			return internal.NewValidationFieldError("settings", "each setting can only appear once", internal.ErrCodeValidationFailed)
		}
		seen[c.Name] = true
	}
	return nil
}
