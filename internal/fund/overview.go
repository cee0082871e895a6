package fund

import (
	"sort"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal/category"
	"github.com/shopspring/decimal"
)

// BudgetView is a budget with its derived figures.
type BudgetView struct {
	ID             int64                      `json:"id"`
	SubcategoryID  int64                      `json:"subcategory_id"`
	Year           int                        `json:"year"`
	ProposedBudget decimal.Decimal            `json:"proposed_budget"`
	Months         map[string]decimal.Decimal `json:"months"`
	JanJun         decimal.Decimal            `json:"jan_jun"`
	JulDec         decimal.Decimal            `json:"jul_dec"`
	YTD            decimal.Decimal            `json:"ytd"`
	Income         decimal.Decimal            `json:"income"`
	Balance        decimal.Decimal            `json:"balance"`
}

func NewBudgetView(b *Budget, monthIndex int) BudgetView {
	months := make(map[string]decimal.Decimal, 12)
	for i, name := range MonthNames {
		months[name] = b.Months[i]
	}
	return BudgetView{
		ID:             b.ID,
		SubcategoryID:  b.SubcategoryID,
		Year:           b.Year,
		ProposedBudget: b.ProposedBudget,
		Months:         months,
		JanJun:         b.FirstHalf(),
		JulDec:         b.SecondHalf(),
		YTD:            b.YTD(monthIndex),
		Income:         b.Income,
		Balance:        b.Balance(),
	}
}

// MonthIndexFor is the last month that counts towards the YTD of year when
// viewed at asOf: every month of a past year, none of a future one.
func MonthIndexFor(year int, asOf time.Time) int {
	switch {
	case year < asOf.Year():
		return 11
	case year > asOf.Year():
		return -1
	}
	return int(asOf.Month()) - 1
}

// OverviewCategory is a category with its active subcategories and their
// budget for one year, as loaded by the repository.
type OverviewCategory struct {
	ID            int64
	Name          string
	GroupName     string
	Position      int
	Subcategories []OverviewSubcategory
}

type OverviewSubcategory struct {
	ID     int64
	Name   string
	Budget *Budget
}

type SubcategoryLine struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Budget *BudgetView `json:"budget"`
}

type CategoryLine struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Position      int               `json:"position"`
	Subcategories []SubcategoryLine `json:"subcategories"`
}

type Group struct {
	GroupName  string         `json:"group_name"`
	Categories []CategoryLine `json:"categories"`
}

// BuildOverview arranges categories under the fixed groups, ordered by
// position. Categories outside the known groups are left out.
func BuildOverview(categories []OverviewCategory, monthIndex int) []Group {
	byGroup := make(map[string][]OverviewCategory, len(category.Groups))
	for _, c := range categories {
		byGroup[c.GroupName] = append(byGroup[c.GroupName], c)
	}

	groups := make([]Group, 0, len(category.Groups))
	for _, name := range category.Groups {
		cats := byGroup[name]
		sortByPosition(cats)

		g := Group{GroupName: name, Categories: make([]CategoryLine, 0, len(cats))}
		for _, c := range cats {
			line := CategoryLine{ID: c.ID, Name: c.Name, Position: c.Position, Subcategories: make([]SubcategoryLine, 0, len(c.Subcategories))}
			for _, s := range c.Subcategories {
				sl := SubcategoryLine{ID: s.ID, Name: s.Name}
				if s.Budget != nil {
					v := NewBudgetView(s.Budget, monthIndex)
					sl.Budget = &v
				}
				line.Subcategories = append(line.Subcategories, sl)
			}
			g.Categories = append(g.Categories, line)
		}
		groups = append(groups, g)
	}
	return groups
}

func sortByPosition(cats []OverviewCategory) {
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Position < cats[j].Position })
}
