package postgres_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel"
	fundDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/fund"
	userDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/user"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	"github.com/frahmantamala/barangay-procurement/internal/settings/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSettingsPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Settings Postgres Suite")
}

func boolPtr(b bool) *bool { return &b }

var _ = Describe("Settings with the PostgreSQL repository", func() {
	var (
		ctx     context.Context
		db      *gorm.DB
		service *settings.Service
		captain internal.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(datamodel.AutoMigrate(db)).To(Succeed())

		kap := userDatamodel.User{Email: "kap@brgy.ph", Name: "Kap Reyes", PasswordHash: "x", Role: "captain"}
		Expect(db.Create(&kap).Error).To(Succeed())
		captain = internal.Actor{ID: kap.ID, Name: kap.Name, Role: internal.RoleCaptain}
		Expect(db.Create(&fundDatamodel.Setting{Name: "budget"}).Error).To(Succeed())

		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = settings.NewService(postgres.NewSettingsRepository(db), nil, lg)
	})

	countTimeline := func() int64 {
		var n int64
		Expect(db.Model(&fundDatamodel.SettingTimeline{}).Count(&n).Error).To(Succeed())
		return n
	}

	It("writes one timeline row per actual change", func() {
		st, err := service.ToggleLock(ctx, captain, settings.Budget, settings.ToggleLockDTO{IsLocked: boolPtr(true)})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.IsLocked).To(BeTrue())
		Expect(countTimeline()).To(Equal(int64(1)))

		_, err = service.ToggleLock(ctx, captain, settings.Budget, settings.ToggleLockDTO{IsLocked: boolPtr(true)})
		Expect(err).NotTo(HaveOccurred())
		Expect(countTimeline()).To(Equal(int64(1)))

		snap, err := service.Snapshot(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.IsLocked(settings.Budget)).To(BeTrue())

		entries, err := service.Timeline(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Setting).To(Equal(settings.Budget))
		Expect(entries[0].Action).To(Equal(settings.ActionLocked))
		Expect(entries[0].UserName).To(Equal("Kap Reyes"))
	})

	It("creates unseeded settings on first save", func() {
		list, err := service.SaveChanges(ctx, captain, settings.SaveChangesDTO{Settings: []settings.SettingChange{
			{Name: "budget", IsLocked: boolPtr(false)},
			{Name: "sub_categories", IsLocked: boolPtr(true)},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(3))
		Expect(list[0].IsLocked).To(BeFalse())
		Expect(list[1].Name).To(Equal(settings.Categories))
		Expect(list[1].ID).To(BeZero())
		Expect(list[2].IsLocked).To(BeTrue())
		Expect(countTimeline()).To(Equal(int64(1)))
	})

	It("is reserved to the captain", func() {
		official := internal.Actor{ID: 99, Role: internal.RoleOfficial}
		_, err := service.ToggleLock(ctx, official, settings.Budget, settings.ToggleLockDTO{IsLocked: boolPtr(true)})
		Expect(err).To(MatchError(internal.ErrNotAuthorized))
		Expect(countTimeline()).To(BeZero())
	})

	It("rejects unknown settings", func() {
		_, err := service.ToggleLock(ctx, captain, settings.Name("payroll"), settings.ToggleLockDTO{IsLocked: boolPtr(true)})
		Expect(err).To(MatchError(internal.ErrSettingNotFound))
	})
})
