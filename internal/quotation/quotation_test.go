package quotation_test

import (
	"testing"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/quotation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestQuotation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Quotation Suite")
}

func strPtr(s string) *string { return &s }

func detail(companyID int64, name string, items ...quotation.Item) quotation.Detail {
	return quotation.Detail{
		CompanyID: companyID,
		Company:   quotation.Company{ID: companyID, Name: name},
		Items:     items,
	}
}

func item(name string, price int64, qty int) quotation.Item {
	return quotation.Item{Name: name, Price: decimal.NewFromInt(price), Quantity: qty}
}

var _ = Describe("Quotation", func() {
	Describe("SelectCompany", func() {
		It("selects exactly one detail", func() {
			details := []quotation.Detail{detail(1, "A"), detail(2, "B"), detail(3, "C")}
			details[0].IsSelected = true

			idx, err := quotation.SelectCompany(details, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(idx).To(Equal(2))

			selected := 0
			for _, d := range details {
				if d.IsSelected {
					selected++
				}
			}
			Expect(selected).To(Equal(1))
			Expect(details[2].IsSelected).To(BeTrue())
		})

		It("changes nothing when the company did not quote", func() {
			details := []quotation.Detail{detail(1, "A"), detail(2, "B")}
			details[1].IsSelected = true

			_, err := quotation.SelectCompany(details, 9)
			Expect(err).To(MatchError(internal.ErrMissingSelection))
			Expect(details[1].IsSelected).To(BeTrue())
			Expect(details[0].IsSelected).To(BeFalse())
		})
	})

	Describe("ComputeCanvass", func() {
		It("awards the lowest total when nobody was selected", func() {
			q := &quotation.Quotation{Details: []quotation.Detail{
				detail(1, "Alpha", item("Bond paper", 100, 1)),
				detail(2, "Bravo", item("Bond paper", 150, 1)),
				detail(3, "Charlie", item("Bond paper", 120, 1)),
			}}

			c, err := quotation.ComputeCanvass(q)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Awarded.Name).To(Equal("Alpha"))
			Expect(c.ByLowest).To(BeTrue())
			Expect(c.Tied).To(BeFalse())
			Expect(c.Totals[1].Equal(decimal.NewFromInt(150))).To(BeTrue())
			Expect(c.Rows).To(HaveLen(1))
		})

		It("prefers the explicit selection over the lowest total", func() {
			q := &quotation.Quotation{Details: []quotation.Detail{
				detail(1, "Alpha", item("Bond paper", 100, 1)),
				detail(2, "Bravo", item("Bond paper", 150, 1)),
			}}
			q.Details[1].IsSelected = true

			c, err := quotation.ComputeCanvass(q)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Awarded.Name).To(Equal("Bravo"))
			Expect(c.ByLowest).To(BeFalse())
		})

		It("breaks ties in favour of the first company", func() {
			q := &quotation.Quotation{Details: []quotation.Detail{
				detail(1, "Alpha", item("Ink", 50, 2)),
				detail(2, "Bravo", item("Ink", 100, 1)),
				detail(3, "Charlie", item("Ink", 40, 3)),
			}}

			c, err := quotation.ComputeCanvass(q)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Awarded.Name).To(Equal("Alpha"))
			Expect(c.Tied).To(BeTrue())
		})

		It("groups items by name and description in first-seen order and leaves gaps", func() {
			withDesc := item("Ink", 30, 2)
			withDesc.Description = strPtr("black")
			q := &quotation.Quotation{Details: []quotation.Detail{
				detail(1, "Alpha", item("Bond paper", 100, 5), withDesc),
				detail(2, "Bravo", item("Ink", 25, 2), item("Bond paper", 90, 5)),
			}}

			c, err := quotation.ComputeCanvass(q)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Rows).To(HaveLen(3))
			Expect(c.Rows[0].Name).To(Equal("Bond paper"))
			Expect(c.Rows[1].Name).To(Equal("Ink"))
			Expect(c.Rows[1].Description).To(Equal("black"))
			Expect(c.Rows[2].Name).To(Equal("Ink"))
			Expect(c.Rows[2].Description).To(BeEmpty())

			Expect(c.Rows[1].Cells[1].Price).To(BeNil())
			Expect(c.Rows[2].Cells[0].Price).To(BeNil())
			Expect(c.Rows[0].Cells[1].Total.Equal(decimal.NewFromInt(450))).To(BeTrue())

			Expect(c.Totals[0].Equal(decimal.NewFromInt(560))).To(BeTrue())
			Expect(c.Totals[1].Equal(decimal.NewFromInt(500))).To(BeTrue())
			Expect(c.Awarded.Name).To(Equal("Bravo"))
		})

		It("needs at least one detail", func() {
			_, err := quotation.ComputeCanvass(&quotation.Quotation{})
			Expect(err).To(MatchError(internal.ErrQuotationNotFound))
		})
	})

	Describe("SubmitQuotationDTO.Validate", func() {
		valid := func() quotation.SubmitQuotationDTO {
			companies := make([]quotation.CompanyInput, 3)
			for i, email := range []string{"a@x.ph", "b@x.ph", "c@x.ph"} {
				companies[i] = quotation.CompanyInput{
					CompanyName:   "Company",
					ContactPerson: "Contact",
					Address:       "Quezon City",
					ContactNumber: "09171234567",
					Email:         email,
					Items:         []quotation.ItemInput{{Name: "Bond paper", Price: decimal.NewFromInt(100), Quantity: 1}},
				}
			}
			return quotation.SubmitQuotationDTO{Companies: companies}
		}

		It("accepts a complete form", func() {
			Expect(valid().Validate(3)).To(BeNil())
		})

		It("requires the configured number of companies", func() {
			dto := valid()
			dto.Companies = dto.Companies[:2]
			err := dto.Validate(3)
			Expect(err).NotTo(BeNil())
			Expect(err.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects companies without items", func() {
			dto := valid()
			dto.Companies[1].Items = nil
			Expect(dto.Validate(3)).NotTo(BeNil())
		})

		It("rejects negative prices and zero quantities", func() {
			dto := valid()
			dto.Companies[0].Items[0].Price = decimal.NewFromInt(-1)
			err := dto.Validate(3)
			Expect(err).NotTo(BeNil())
			details := err.Details.(internal.ValidationErrors)
			Expect(details.Errors[0].Field).To(Equal("companies[0].items[0].price"))

			dto = valid()
			dto.Companies[2].Items[0].Quantity = 0
			Expect(dto.Validate(3)).NotTo(BeNil())
		})

		It("rejects contact numbers longer than 20 characters and duplicate emails", func() {
			dto := valid()
			dto.Companies[0].ContactNumber = "+63 917 123 4567 ext 89"
			Expect(dto.Validate(3)).NotTo(BeNil())

			dto = valid()
			dto.Companies[2].Email = "A@x.ph"
			Expect(dto.Validate(3)).NotTo(BeNil())
		})
	})
})
