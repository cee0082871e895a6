package quotation

import (
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/shopspring/decimal"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

type Company struct {
	ID            int64  `json:"id"`
	Name          string `json:"company_name"`
	ContactPerson string `json:"contact_person"`
	Address       string `json:"address"`
	ContactNumber string `json:"contact_number"`
	Email         string `json:"email"`
}

type Item struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) DescriptionText() string {
	if i.Description == nil {
		return ""
	}
	return *i.Description
}

type Detail struct {
	ID         int64   `json:"id"`
	CompanyID  int64   `json:"company_id"`
	Company    Company `json:"company"`
	IsSelected bool    `json:"is_selected"`
	Items      []Item  `json:"items"`
}

func (d Detail) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Total())
	}
	return total
}

type Quotation struct {
	ID            int64      `json:"id"`
	RequestID     int64      `json:"request_id"`
	Status        string     `json:"status"`
	HaveQuotation bool       `json:"have_quotation"`
	ProcessedBy   *int64     `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	Details       []Detail   `json:"details"`
}

// Selected returns the detail the captain picked, if any.
func (q *Quotation) Selected() (*Detail, bool) {
	for i := range q.Details {
		if q.Details[i].IsSelected {
			return &q.Details[i], true
		}
	}
	return nil, false
}

// SelectCompany marks the detail quoted by companyID as the only selected one.
// Nothing is changed when no detail matches.
func SelectCompany(details []Detail, companyID int64) (int, error) {
	idx := -1
	for i := range details {
		if details[i].CompanyID == companyID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, internal.ErrMissingSelection.WithMessage("selected company is not part of this quotation")
	}
	for i := range details {
		details[i].IsSelected = i == idx
	}
	return idx, nil
}

// CanvassCell is one company's quote for one row; nil fields mean the
// company did not quote the item.
type CanvassCell struct {
	CompanyID int64            `json:"company_id"`
	Price     *decimal.Decimal `json:"price"`
	Total     *decimal.Decimal `json:"total"`
}

type CanvassRow struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Quantity    int           `json:"quantity"`
	Cells       []CanvassCell `json:"cells"`
}

type Canvass struct {
	Companies []Company         `json:"companies"`
	Totals    []decimal.Decimal `json:"totals"`
	Rows      []CanvassRow      `json:"rows"`
	Awarded   Company           `json:"awarded"`
	// ByLowest is set when no company was explicitly selected.
	ByLowest bool `json:"by_lowest"`
	Tied     bool `json:"tied"`
}

type rowKey struct {
	name        string
	description string
}

// ComputeCanvass lines up every company's items side by side. Rows keep the
// order items were first seen in. The awarded company is the selected one, or
// else the lowest total with the first company winning a tie.
func ComputeCanvass(q *Quotation) (*Canvass, error) {
	if q == nil || len(q.Details) == 0 {
		return nil, internal.ErrQuotationNotFound.WithMessage("quotation details not found")
	}

	c := &Canvass{}
	companyIndex := make(map[int64]int)
	for _, d := range q.Details {
		if _, ok := companyIndex[d.CompanyID]; ok {
			continue
		}
		companyIndex[d.CompanyID] = len(c.Companies)
		company := d.Company
		company.ID = d.CompanyID
		c.Companies = append(c.Companies, company)
		c.Totals = append(c.Totals, decimal.Zero)
	}

	rowIndex := make(map[rowKey]int)
	for _, d := range q.Details {
		ci := companyIndex[d.CompanyID]
		for _, it := range d.Items {
			key := rowKey{name: it.Name, description: it.DescriptionText()}
			ri, ok := rowIndex[key]
			if !ok {
				ri = len(c.Rows)
				rowIndex[key] = ri
				cells := make([]CanvassCell, len(c.Companies))
				for i, comp := range c.Companies {
					cells[i] = CanvassCell{CompanyID: comp.ID}
				}
				c.Rows = append(c.Rows, CanvassRow{
					Name:        it.Name,
					Description: key.description,
					Quantity:    it.Quantity,
					Cells:       cells,
				})
			}
			price := it.Price
			total := it.Total()
			c.Rows[ri].Cells[ci].Price = &price
			c.Rows[ri].Cells[ci].Total = &total
			c.Totals[ci] = c.Totals[ci].Add(total)
		}
	}

	if selected, ok := q.Selected(); ok {
		c.Awarded = c.Companies[companyIndex[selected.CompanyID]]
		return c, nil
	}

	c.ByLowest = true
	best := 0
	for i := 1; i < len(c.Totals); i++ {
		if c.Totals[i].LessThan(c.Totals[best]) {
			best = i
		}
	}
	for i := range c.Totals {
		if i != best && c.Totals[i].Equal(c.Totals[best]) {
			c.Tied = true
			break
		}
	}
	c.Awarded = c.Companies[best]
	return c, nil
}
