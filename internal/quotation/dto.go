package quotation

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
}

type CompanyInput struct {
	CompanyName   string      `json:"company_name" validate:"required,max=255"`
	ContactPerson string      `json:"contact_person" validate:"required,max=255"`
	Address       string      `json:"address" validate:"required,max=255"`
	ContactNumber string      `json:"contact_number" validate:"required,max=20"`
	Email         string      `json:"email" validate:"required,email,max=255"`
	Items         []ItemInput `json:"items" validate:"required,min=1,dive"`
}

type SubmitQuotationDTO struct {
	Remarks   string         `json:"remarks" validate:"max=2000"`
	Companies []CompanyInput `json:"companies" validate:"required,dive"`
}

// Validate checks the form against the number of companies a canvass needs.
func (dto SubmitQuotationDTO) Validate(requiredCompanies int) *internal.AppError {
	if len(dto.Companies) != requiredCompanies {
		return internal.NewValidationFieldError("companies",
			fmt.Sprintf("exactly %d company quotations are required", requiredCompanies),
			internal.ErrCodeValidationFailed)
	}
	if err := validation.Struct(dto); err != nil {
		return err
	}

	v := validation.NewValidator()
	emails := make(map[string]bool, len(dto.Companies))
	for i, c := range dto.Companies {
		email := strings.ToLower(strings.TrimSpace(c.Email))
		field := fmt.Sprintf("companies[%d].email", i)
		duplicate := emails[email]
		emails[email] = true
		v.Field(field, email).Custom(func(interface{}) *internal.AppError {
			if duplicate {
				return internal.NewValidationFieldError(field, "each company must have a different email", internal.ErrCodeValidationFailed)
			}
			return nil
		})

		for j, it := range c.Items {
			priceField := fmt.Sprintf("companies[%d].items[%d].price", i, j)
			price := it.Price
			v.Field(priceField, price).Custom(func(interface{}) *internal.AppError {
				if price.IsNegative() {
					return internal.NewValidationFieldError(priceField, "price must be greater than or equal to 0", internal.ErrCodeInvalidAmount)
				}
				return nil
			}).MaxScale(2)
		}
	}
	return v.Validate()
}

func (dto SubmitQuotationDTO) details() ([]Company, [][]Item) {
	companies := make([]Company, len(dto.Companies))
	items := make([][]Item, len(dto.Companies))
	for i, c := range dto.Companies {
		companies[i] = Company{
			Name:          strings.TrimSpace(c.CompanyName),
			ContactPerson: strings.TrimSpace(c.ContactPerson),
			Address:       strings.TrimSpace(c.Address),
			ContactNumber: strings.TrimSpace(c.ContactNumber),
			Email:         strings.ToLower(strings.TrimSpace(c.Email)),
		}
		for _, it := range c.Items {
			var desc *string
			if it.Description != nil && strings.TrimSpace(*it.Description) != "" {
				d := strings.TrimSpace(*it.Description)
				desc = &d
			}
			items[i] = append(items[i], Item{
				Name:        strings.TrimSpace(it.Name),
				Description: desc,
				Price:       it.Price,
				Quantity:    it.Quantity,
			})
		}
	}
	return companies, items
}
