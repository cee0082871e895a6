package category_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCategory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Category Suite")
}

type budgetKey struct {
	subcategoryID int64
	year          int
}

// MockRepository keeps the registry in maps and serves as its own transaction.
type MockRepository struct {
	categories    map[int64]*category.Category
	subcategories map[int64]*category.Subcategory
	budgets       map[budgetKey]bool
	nextID        int64
	failError     error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		categories:    make(map[int64]*category.Category),
		subcategories: make(map[int64]*category.Subcategory),
		budgets:       make(map[budgetKey]bool),
	}
}

func (m *MockRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx category.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *MockRepository) GetCategory(_ context.Context, id int64) (*category.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, internal.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockRepository) GetSubcategory(_ context.Context, id int64) (*category.Subcategory, error) {
	s, ok := m.subcategories[id]
	if !ok {
		return nil, internal.ErrSubcategoryNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) ListCategories(_ context.Context, f category.ListFilter) ([]category.Category, int64, error) {
	var out []category.Category
	for _, c := range m.categories {
		if f.GroupName == "" || c.GroupName == f.GroupName {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (m *MockRepository) ListSubcategories(_ context.Context, f category.ListFilter) ([]category.Subcategory, int64, error) {
	var out []category.Subcategory
	for _, s := range m.subcategories {
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (m *MockRepository) IsActiveCategory(_ context.Context, id int64) (bool, error) {
	c, ok := m.categories[id]
	return ok && c.IsActiveCategory(), nil
}

func (m *MockRepository) NextPosition(_ context.Context, group string) (int, error) {
	max := 0
	for _, c := range m.categories {
		if c.GroupName == group && c.Position > max {
			max = c.Position
		}
	}
	return max + 1, nil
}

func (m *MockRepository) PositionTaken(_ context.Context, group string, position int, exceptID int64) (bool, error) {
	for _, c := range m.categories {
		if c.GroupName == group && c.Position == position && c.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) CreateCategory(_ context.Context, c *category.Category) error {
	if m.failError != nil {
		return m.failError
	}
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MockRepository) UpdateCategory(_ context.Context, c *category.Category) error {
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *MockRepository) DeleteCategory(_ context.Context, id int64) error {
	delete(m.categories, id)
	return nil
}

func (m *MockRepository) CreateSubcategory(_ context.Context, s *category.Subcategory) error {
	m.nextID++
	s.ID = m.nextID
	cp := *s
	m.subcategories[s.ID] = &cp
	return nil
}

func (m *MockRepository) UpdateSubcategory(_ context.Context, s *category.Subcategory) error {
	cp := *s
	m.subcategories[s.ID] = &cp
	return nil
}

func (m *MockRepository) DeleteSubcategory(_ context.Context, id int64) error {
	delete(m.subcategories, id)
	return nil
}

func (m *MockRepository) CreateBudget(_ context.Context, subcategoryID int64, year int) error {
	if m.failError != nil {
		return m.failError
	}
	m.budgets[budgetKey{subcategoryID, year}] = true
	return nil
}

type staticLocks settings.Snapshot

func (s staticLocks) Snapshot(context.Context) (settings.Snapshot, error) {
	return settings.Snapshot(s), nil
}

func intPtr(i int) *int { return &i }

var _ = Describe("Category Service", func() {
	var (
		ctx     context.Context
		repo    *MockRepository
		locks   staticLocks
		service *category.Service
		captain = internal.Actor{ID: 1, Name: "Kap Reyes", Role: internal.RoleCaptain}
		member  = internal.Actor{ID: 2, Name: "Juan Dela Cruz", Role: internal.RoleOfficial}
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		locks = staticLocks{}
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = category.NewService(repo, locks, slogger).
			WithClock(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) })
	})

	create := func(name, group string) *category.Category {
		c, err := service.CreateCategory(ctx, captain, category.CategoryDTO{Name: name, GroupName: group})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	Describe("CreateCategory", func() {
		It("appends to the end of its group", func() {
			first := create("Maintenance", category.GroupExpenditures)
			second := create("Travel", category.GroupExpenditures)
			other := create("Tax Revenue", category.GroupReceipts)

			Expect(first.Position).To(Equal(1))
			Expect(second.Position).To(Equal(2))
			Expect(other.Position).To(Equal(1))
			Expect(first.Status).To(Equal(category.StatusActive))
		})

		It("rejects a position already used in the group", func() {
			create("Maintenance", category.GroupExpenditures)
			_, err := service.CreateCategory(ctx, captain, category.CategoryDTO{
				Name: "Travel", GroupName: category.GroupExpenditures, Position: intPtr(1),
			})
			Expect(err).To(MatchError(internal.ErrDuplicatePosition))
			Expect(repo.categories).To(HaveLen(1))
		})

		It("rejects unknown groups", func() {
			_, err := service.CreateCategory(ctx, captain, category.CategoryDTO{Name: "X", GroupName: "Savings"})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("is reserved to the captain and administrators", func() {
			_, err := service.CreateCategory(ctx, member, category.CategoryDTO{Name: "X", GroupName: category.GroupReceipts})
			Expect(err).To(MatchError(internal.ErrNotAuthorized))
		})

		It("is allowed while the categories setting is locked", func() {
			locks[settings.Categories] = true
			create("Maintenance", category.GroupExpenditures)
		})

		It("surfaces repository failures", func() {
			repo.failError = errors.New("database down")
			_, err := service.CreateCategory(ctx, captain, category.CategoryDTO{Name: "X", GroupName: category.GroupReceipts})
			Expect(err).To(MatchError("database down"))
		})
	})

	Describe("UpdateCategory", func() {
		It("moves to the end of the new group when no position is given", func() {
			create("Tax Revenue", category.GroupReceipts)
			c := create("Maintenance", category.GroupExpenditures)

			updated, err := service.UpdateCategory(ctx, captain, c.ID, category.CategoryDTO{
				Name: "Maintenance", GroupName: category.GroupReceipts,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.GroupName).To(Equal(category.GroupReceipts))
			Expect(updated.Position).To(Equal(2))
			Expect(updated.ID).To(Equal(c.ID))
		})

		It("keeps its own position", func() {
			c := create("Maintenance", category.GroupExpenditures)
			updated, err := service.UpdateCategory(ctx, captain, c.ID, category.CategoryDTO{
				Name: "Repairs", GroupName: category.GroupExpenditures, Position: intPtr(1),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("Repairs"))
			Expect(updated.Position).To(Equal(1))
		})

		It("is refused while categories are locked", func() {
			c := create("Maintenance", category.GroupExpenditures)
			locks[settings.Categories] = true

			_, err := service.UpdateCategory(ctx, captain, c.ID, category.CategoryDTO{Name: "Repairs", GroupName: category.GroupExpenditures})
			Expect(err).To(MatchError(internal.ErrSettingLocked))
			Expect(repo.categories[c.ID].Name).To(Equal("Maintenance"))

			Expect(service.DeleteCategory(ctx, captain, c.ID)).To(MatchError(internal.ErrSettingLocked))
			Expect(repo.categories).To(HaveKey(c.ID))
		})

		It("reports missing categories", func() {
			_, err := service.UpdateCategory(ctx, captain, 99, category.CategoryDTO{Name: "X", GroupName: category.GroupReceipts})
			Expect(err).To(MatchError(internal.ErrCategoryNotFound))
		})
	})

	Describe("Subcategories", func() {
		It("opens a zeroed budget for the current year", func() {
			c := create("Maintenance", category.GroupExpenditures)
			sub, err := service.CreateSubcategory(ctx, captain, category.SubcategoryDTO{CategoryID: c.ID, Name: "Streetlights"})
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.CategoryName).To(Equal("Maintenance"))
			Expect(repo.budgets).To(HaveKey(budgetKey{sub.ID, 2025}))
		})

		It("needs an existing parent", func() {
			_, err := service.CreateSubcategory(ctx, captain, category.SubcategoryDTO{CategoryID: 7, Name: "Streetlights"})
			Expect(err).To(MatchError(internal.ErrCategoryNotFound))
			Expect(repo.subcategories).To(BeEmpty())
		})

		It("follows the subcategories lock, not the categories lock", func() {
			c := create("Maintenance", category.GroupExpenditures)
			sub, err := service.CreateSubcategory(ctx, captain, category.SubcategoryDTO{CategoryID: c.ID, Name: "Streetlights"})
			Expect(err).NotTo(HaveOccurred())

			locks[settings.Categories] = true
			_, err = service.UpdateSubcategory(ctx, captain, sub.ID, category.SubcategoryDTO{CategoryID: c.ID, Name: "Lamps"})
			Expect(err).NotTo(HaveOccurred())

			locks[settings.Subcategories] = true
			_, err = service.UpdateSubcategory(ctx, captain, sub.ID, category.SubcategoryDTO{CategoryID: c.ID, Name: "Poles"})
			Expect(err).To(MatchError(internal.ErrSettingLocked))
			Expect(service.DeleteSubcategory(ctx, captain, sub.ID)).To(MatchError(internal.ErrSettingLocked))
			Expect(repo.subcategories[sub.ID].Name).To(Equal("Lamps"))
		})
	})

	Describe("IsActiveCategory", func() {
		It("is false for inactive and unknown categories", func() {
			c := create("Maintenance", category.GroupExpenditures)
			ok, err := service.IsActiveCategory(ctx, c.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			_, err = service.UpdateCategory(ctx, captain, c.ID, category.CategoryDTO{
				Name: "Maintenance", GroupName: category.GroupExpenditures, Status: category.StatusInactive,
			})
			Expect(err).NotTo(HaveOccurred())
			ok, _ = service.IsActiveCategory(ctx, c.ID)
			Expect(ok).To(BeFalse())

			ok, _ = service.IsActiveCategory(ctx, 404)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ListCategories", func() {
		It("pages results", func() {
			create("Maintenance", category.GroupExpenditures)
			page, err := service.ListCategories(ctx, category.ListFilterDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(1)))
			Expect(page.Page).To(Equal(1))
			Expect(page.PerPage).To(Equal(category.PageSize))
			Expect(page.LastPage).To(Equal(1))
		})
	})
})
