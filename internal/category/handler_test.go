package category_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	categoryPostgres "github.com/frahmantamala/barangay-procurement/internal/category/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	settingsPostgres "github.com/frahmantamala/barangay-procurement/internal/settings/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ = Describe("Category Handler Integration", func() {
	var (
		router  chi.Router
		captain = internal.Actor{ID: 1, Name: "Kap Reyes", Role: internal.RoleCaptain}
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(datamodel.AutoMigrate(db)).To(Succeed())

		locks := settings.NewService(settingsPostgres.NewSettingsRepository(db), nil, slogger)
		service := category.NewService(categoryPostgres.NewCategoryRepository(db), locks, slogger)
		handler := category.NewHandler(transport.NewBaseHandler(slogger), service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(internal.ContextWithActor(r.Context(), &captain)))
			})
		})
		router.Get("/categories", handler.ListCategories)
		router.Post("/categories", handler.CreateCategory)
		router.Get("/categories/{id}", handler.GetCategory)
		router.Put("/categories/{id}", handler.UpdateCategory)
		router.Delete("/categories/{id}", handler.DeleteCategory)
		router.Post("/subcategories", handler.CreateSubcategory)
		router.Get("/subcategories", handler.ListSubcategories)
	})

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("creates and lists categories by group", func() {
		rec := do(http.MethodPost, "/categories", map[string]interface{}{"name": "Maintenance", "group_name": "Expenditures"})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var created category.Category
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
		Expect(created.Position).To(Equal(1))

		rec = do(http.MethodPost, "/categories", map[string]interface{}{"name": "Tax Revenue", "group_name": "Receipts"})
		Expect(rec.Code).To(Equal(http.StatusCreated))

		rec = do(http.MethodGet, "/categories?type=Receipts", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var page category.Page[category.Category]
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Total).To(Equal(int64(1)))
		Expect(page.Items[0].Name).To(Equal("Tax Revenue"))
	})

	It("returns 409 for a taken position", func() {
		do(http.MethodPost, "/categories", map[string]interface{}{"name": "Maintenance", "group_name": "Expenditures"})
		rec := do(http.MethodPost, "/categories", map[string]interface{}{"name": "Travel", "group_name": "Expenditures", "position": 1})
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})

	It("returns 400 for an invalid body", func() {
		rec := do(http.MethodPost, "/categories", map[string]interface{}{"name": ""})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for a missing category", func() {
		rec := do(http.MethodGet, "/categories/77", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("creates subcategories under a category and hides deleted parents", func() {
		rec := do(http.MethodPost, "/categories", map[string]interface{}{"name": "Maintenance", "group_name": "Expenditures"})
		var created category.Category
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())

		rec = do(http.MethodPost, "/subcategories", map[string]interface{}{"category_id": created.ID, "name": "Streetlights"})
		Expect(rec.Code).To(Equal(http.StatusCreated))

		rec = do(http.MethodGet, "/subcategories", nil)
		var page category.Page[category.Subcategory]
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Items).To(HaveLen(1))
		Expect(page.Items[0].CategoryName).To(Equal("Maintenance"))

		rec = do(http.MethodDelete, "/categories/1", nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))

		rec = do(http.MethodGet, "/subcategories", nil)
		Expect(json.Unmarshal(rec.Body.Bytes(), &page)).To(Succeed())
		Expect(page.Items).To(BeEmpty())
	})
})
