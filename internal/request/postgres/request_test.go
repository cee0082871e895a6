package postgres_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel"
	categoryDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/category"
	requestDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
	userDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	requestPostgres "github.com/frahmantamala/barangay-procurement/internal/request/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRequestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Request Postgres Suite")
}

func newTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := db.DB()
	Expect(err).NotTo(HaveOccurred())
	// every connection to ":memory:" opens a fresh database
	sqlDB.SetMaxOpenConns(1)
	Expect(datamodel.AutoMigrate(db)).To(Succeed())
	return db
}

var _ = Describe("Request PostgreSQL Repository", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		repo     *requestPostgres.RequestRepository
		official internal.Actor
		other    internal.Actor
		captain  internal.Actor
		category categoryDatamodel.Category
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = newTestDB()
		repo = requestPostgres.NewRequestRepository(db)

		users := []userDatamodel.User{
			{Email: "juan@brgy.ph", Name: "Juan Dela Cruz", PasswordHash: "x", Role: string(internal.RoleOfficial), Status: "active"},
			{Email: "maria@brgy.ph", Name: "Maria Santos", PasswordHash: "x", Role: string(internal.RoleOfficial), Status: "active"},
			{Email: "kap@brgy.ph", Name: "Kap Reyes", PasswordHash: "x", Role: string(internal.RoleCaptain), Status: "active"},
		}
		Expect(db.Create(&users).Error).To(Succeed())
		official = internal.Actor{ID: users[0].ID, Name: users[0].Name, Role: internal.RoleOfficial}
		other = internal.Actor{ID: users[1].ID, Name: users[1].Name, Role: internal.RoleOfficial}
		captain = internal.Actor{ID: users[2].ID, Name: users[2].Name, Role: internal.RoleCaptain}

		category = categoryDatamodel.Category{Name: "Office Supplies", GroupName: "Expenditures", Position: 1, Status: "active"}
		Expect(db.Create(&category).Error).To(Succeed())
	})

	newRequest := func(owner internal.Actor, name string) *request.Request {
		req := request.NewRequest(owner, name, category.ID, "Bond paper and ink for the hall", time.Now())
		Expect(repo.WithTx(ctx, func(ctx context.Context, tx request.TxRepository) error {
			return tx.Create(ctx, req)
		})).To(Succeed())
		return req
	}

	Describe("Create and GetByID", func() {
		It("round-trips a request with its names, collaborators and files", func() {
			req := newRequest(official, "Office supplies")
			Expect(req.ID).To(BeNumerically(">", 0))

			Expect(repo.ReplaceCollaborators(ctx, req.ID, []request.Collaborator{{UserID: other.ID, Permission: request.PermissionEdit}})).To(Succeed())
			files := []request.File{{Name: "quote.pdf", Path: "requests/1/a.pdf", Size: 10}}
			Expect(repo.AddFiles(ctx, req.ID, files)).To(Succeed())
			Expect(files[0].ID).To(BeNumerically(">", 0))

			got, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Office supplies"))
			Expect(got.CreatorName).To(Equal("Juan Dela Cruz"))
			Expect(got.CategoryName).To(Equal("Office Supplies"))
			Expect(got.Status).To(Equal(request.StatusDraft))
			Expect(got.Version).To(Equal(int64(1)))
			Expect(got.Collaborators).To(HaveLen(1))
			Expect(got.Collaborators[0].Name).To(Equal("Maria Santos"))
			Expect(got.Files).To(HaveLen(1))
			Expect(got.Quotation).To(BeNil())
		})

		It("returns not found for unknown ids", func() {
			_, err := repo.GetByID(ctx, 404)
			Expect(err).To(MatchError(internal.ErrRequestNotFound))
		})
	})

	Describe("Save", func() {
		It("bumps the version and rejects stale writes", func() {
			req := newRequest(official, "Office supplies")

			first, err := repo.GetForUpdate(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			stale, err := repo.GetForUpdate(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())

			first.Name = "Updated"
			Expect(repo.Save(ctx, first)).To(Succeed())
			Expect(first.Version).To(Equal(int64(2)))

			stale.Name = "Lost update"
			Expect(repo.Save(ctx, stale)).To(MatchError(internal.ErrConcurrentModification))

			got, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Updated"))
		})
	})

	Describe("WithTx", func() {
		It("rolls back every write when the callback fails", func() {
			req := newRequest(official, "Office supplies")
			boom := errors.New("boom")

			err := repo.WithTx(ctx, func(ctx context.Context, tx request.TxRepository) error {
				r, err := tx.GetForUpdate(ctx, req.ID)
				if err != nil {
					return err
				}
				r.Status = request.StatusPending
				if err := tx.Save(ctx, r); err != nil {
					return err
				}
				entry := timeline.NewProcessing(r.ID, official.ID, string(r.Progress), timeline.Submitted, "", time.Now())
				if err := tx.AppendTimeline(ctx, &entry); err != nil {
					return err
				}
				return boom
			})
			Expect(err).To(MatchError(boom))

			got, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(request.StatusDraft))
			Expect(got.Timeline).To(BeEmpty())
		})
	})

	Describe("service transitions", func() {
		var service *request.Service

		BeforeEach(func() {
			lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
			service = request.NewService(repo, nil, nil, nil, lg)
		})

		It("creates the quotation record and one approved entry when the form is approved", func() {
			req := newRequest(official, "Office supplies")
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{Remarks: "please"})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{Remarks: "approved"})
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Progress).To(Equal(request.ProgressQuotation))
			Expect(got.Quotation).NotTo(BeNil())
			Expect(got.Quotation.Status).To(Equal("pending"))

			var approvals int64
			Expect(db.Model(&requestDatamodel.Timeline{}).
				Where("request_id = ? AND approved_status = ?", req.ID, "approved").
				Count(&approvals).Error).To(Succeed())
			Expect(approvals).To(Equal(int64(1)))
			Expect(got.Timeline).To(HaveLen(2))
			Expect(got.Timeline[1].ApproverName).To(Equal("Kap Reyes"))
		})

		It("keeps the request at Quotation when the selected company did not quote", func() {
			req := newRequest(official, "Office supplies")
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{CompanyID: 999})
			Expect(err).To(MatchError(internal.ErrMissingSelection))

			got, err := repo.GetByID(ctx, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Progress).To(Equal(request.ProgressQuotation))
			Expect(got.PurchaseRequest).To(BeNil())
			Expect(got.Timeline).To(HaveLen(2))
		})
	})

	Describe("SelectQuotationCompany", func() {
		var (
			req       *request.Request
			companies []requestDatamodel.Company
		)

		BeforeEach(func() {
			req = newRequest(official, "Office supplies")
			quotation := requestDatamodel.Quotation{RequestID: req.ID, Status: "pending", HaveQuotation: true}
			Expect(db.Create(&quotation).Error).To(Succeed())

			companies = []requestDatamodel.Company{
				{CompanyName: "Alpha", ContactPerson: "A", Address: "QC", ContactNumber: "1", Email: "a@x.ph"},
				{CompanyName: "Bravo", ContactPerson: "B", Address: "QC", ContactNumber: "2", Email: "b@x.ph"},
				{CompanyName: "Charlie", ContactPerson: "C", Address: "QC", ContactNumber: "3", Email: "c@x.ph"},
			}
			Expect(db.Create(&companies).Error).To(Succeed())
			for _, c := range companies {
				detail := requestDatamodel.QuotationDetail{QuotationID: quotation.ID, CompanyID: c.ID}
				Expect(db.Omit("Company", "Items").Create(&detail).Error).To(Succeed())
				item := requestDatamodel.QuotationItem{QuotationDetailID: detail.ID, ItemName: "Bond paper", Price: decimal.NewFromInt(100), Quantity: 1}
				Expect(db.Create(&item).Error).To(Succeed())
			}
		})

		selectedCompanies := func() []int64 {
			var ids []int64
			Expect(db.Model(&requestDatamodel.QuotationDetail{}).
				Where("is_selected = ?", true).
				Pluck("company_id", &ids).Error).To(Succeed())
			return ids
		}

		It("leaves exactly one detail selected", func() {
			Expect(repo.SelectQuotationCompany(ctx, req.ID, companies[0].ID)).To(Succeed())
			Expect(repo.SelectQuotationCompany(ctx, req.ID, companies[2].ID)).To(Succeed())
			Expect(selectedCompanies()).To(ConsistOf(companies[2].ID))
		})

		It("keeps the previous selection when the company is unknown", func() {
			Expect(repo.SelectQuotationCompany(ctx, req.ID, companies[1].ID)).To(Succeed())
			Expect(repo.SelectQuotationCompany(ctx, req.ID, 12345)).To(MatchError(internal.ErrMissingSelection))
			Expect(selectedCompanies()).To(ConsistOf(companies[1].ID))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			mine := newRequest(official, "Office supplies")
			shared := newRequest(other, "Garbage truck repair")
			Expect(repo.ReplaceCollaborators(ctx, shared.ID, []request.Collaborator{{UserID: official.ID, Permission: request.PermissionView}})).To(Succeed())
			newRequest(other, "Basketball court lights")

			r, err := repo.GetForUpdate(ctx, mine.ID)
			Expect(err).NotTo(HaveOccurred())
			r.Status = request.StatusVoided
			Expect(repo.Save(ctx, r)).To(Succeed())
		})

		It("returns what the participant created or collaborates on", func() {
			items, total, err := repo.List(ctx, request.ListFilter{ParticipantID: official.ID, Page: 1, PerPage: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			names := []string{items[0].Name, items[1].Name}
			Expect(names).To(ConsistOf("Office supplies", "Garbage truck repair"))
		})

		It("filters by status, search text and page", func() {
			items, total, err := repo.List(ctx, request.ListFilter{ExcludeStatuses: []request.Status{request.StatusVoided}, Page: 1, PerPage: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(2)))
			Expect(items).To(HaveLen(1))
			Expect(items[0].CreatorName).To(Equal("Maria Santos"))

			items, total, err = repo.List(ctx, request.ListFilter{Search: "TRUCK", Page: 1, PerPage: 9})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
			Expect(items[0].Name).To(Equal("Garbage truck repair"))
			Expect(items[0].CategoryName).To(Equal("Office Supplies"))

			_, total, err = repo.List(ctx, request.ListFilter{Statuses: []request.Status{request.StatusVoided}})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(int64(1)))
		})
	})

	Describe("timeline rows", func() {
		It("cannot be updated once written", func() {
			req := newRequest(official, "Office supplies")
			entry := timeline.NewProcessing(req.ID, official.ID, string(req.Progress), timeline.Submitted, "", time.Now())
			Expect(repo.AppendTimeline(ctx, &entry)).To(Succeed())

			row := requestDatamodel.Timeline{ID: entry.ID}
			err := db.Model(&row).Update("remarks", "rewritten").Error
			Expect(err).To(MatchError(requestDatamodel.ErrImmutableRecord))
		})
	})
})
