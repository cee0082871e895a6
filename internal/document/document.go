// Package document assembles the printable procurement documents: the
// abstract of canvass and the purchase request.
package document

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Absent is printed in a canvass cell when a company did not quote the item.
const Absent = "—"

type Kind string

const (
	KindAbstractOfCanvass Kind = "abstract-of-canvass"
	KindPurchaseRequest   Kind = "purchase-request"
)

type Document interface {
	Kind() Kind
	Filename() string
}

// Rendered is the output of a Renderer, ready to stream to a client.
type Rendered struct {
	ContentType string
	Filename    string
	Body        []byte
}

type Renderer interface {
	Render(ctx context.Context, doc Document) (*Rendered, error)
}

// Signatories are the barangay officials printed at the foot of a document.
type Signatories struct {
	Secretary string `json:"secretary,omitempty"`
	Treasurer string `json:"treasurer"`
	Captain   string `json:"captain"`
}

const (
	DefaultSecretary = "Barangay Secretary"
	DefaultTreasurer = "Barangay Treasurer"
	DefaultCaptain   = "Punong Barangay"
)

// WithDefaults fills every missing name with the office title.
func (s Signatories) WithDefaults() Signatories {
	if s.Secretary == "" {
		s.Secretary = DefaultSecretary
	}
	if s.Treasurer == "" {
		s.Treasurer = DefaultTreasurer
	}
	if s.Captain == "" {
		s.Captain = DefaultCaptain
	}
	return s
}

type CanvassCompany struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Total   string `json:"total"`
	Awarded bool   `json:"awarded"`
}

type CanvassRow struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Quantity    int      `json:"quantity"`
	Prices      []string `json:"prices"`
	Totals      []string `json:"totals"`
}

type AbstractOfCanvass struct {
	RequestID   int64            `json:"request_id"`
	Title       string           `json:"title"`
	Location    string           `json:"location"`
	District    string           `json:"district"`
	Companies   []CanvassCompany `json:"companies"`
	Rows        []CanvassRow     `json:"rows"`
	Awarded     string           `json:"awarded_company"`
	ByLowest    bool             `json:"awarded_by_lowest_total"`
	Tied        bool             `json:"tied"`
	Signatories Signatories      `json:"signatories"`
}

func (AbstractOfCanvass) Kind() Kind       { return KindAbstractOfCanvass }
func (AbstractOfCanvass) Filename() string { return "abstract-of-canvass" }

type PurchaseRequestItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type PurchaseRequest struct {
	RequestID   int64                 `json:"request_id"`
	Number      string                `json:"pr_number"`
	Date        string                `json:"date,omitempty"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    string                `json:"category"`
	Location    string                `json:"location"`
	District    string                `json:"district"`
	Company     string                `json:"company"`
	Address     string                `json:"address"`
	Items       []PurchaseRequestItem `json:"items"`
	GrandTotal  string                `json:"grand_total"`
	Signatories Signatories           `json:"signatories"`
}

func (PurchaseRequest) Kind() Kind { return KindPurchaseRequest }

func (d PurchaseRequest) Filename() string {
	return fmt.Sprintf("purchase-request-%s", d.Number)
}

// JSONRenderer returns the document data itself. It stands in for a PDF
// engine and is what the HTTP layer serves by default.
type JSONRenderer struct{}

func (JSONRenderer) Render(_ context.Context, doc Document) (*Rendered, error) {
	body, err := json.MarshalIndent(struct {
		Kind     Kind     `json:"kind"`
		Document Document `json:"document"`
	}{doc.Kind(), doc}, "", "  ")
	if err != nil {
		return nil, err
	}
	return &Rendered{
		ContentType: "application/json",
		Filename:    doc.Filename() + ".json",
		Body:        body,
	}, nil
}

// Formatter prints decimal amounts in one currency.
type Formatter struct {
	Currency string
}

func NewFormatter(currency string) Formatter {
	if currency == "" {
		currency = "PHP"
	}
	return Formatter{Currency: currency}
}

// Format rounds to the currency's minor unit and renders it with its symbol.
func (f Formatter) Format(amount decimal.Decimal) string {
	cur := money.GetCurrency(f.Currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, f.Currency).Display()
}

// FormatOptional renders Absent for a missing amount.
func (f Formatter) FormatOptional(amount *decimal.Decimal) string {
	if amount == nil {
		return Absent
	}
	return f.Format(*amount)
}
