package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/datamodel"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB() (*gorm.DB, *sqlx.DB) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	Expect(err).NotTo(HaveOccurred())
	sqlDB, err := gdb.DB()
	Expect(err).NotTo(HaveOccurred())
	sqlDB.SetMaxOpenConns(1)
	Expect(datamodel.AutoMigrate(gdb)).To(Succeed())
	return gdb, sqlx.NewDb(sqlDB, "sqlite3")
}

func count(db *gorm.DB, table string) int64 {
	var n int64
	Expect(db.Table(table).Count(&n).Error).To(Succeed())
	return n
}

var _ = Describe("seed", func() {
	var (
		gdb  *gorm.DB
		lg   *slog.Logger
		opts seedOptions
	)

	BeforeEach(func() {
		gdb, _ = openTestDB()
		lg = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		opts = seedOptions{Password: "password", BCryptCost: bcrypt.MinCost, Year: 2025}
	})

	It("creates one user per role with the registry and budgets", func() {
		Expect(seed(context.Background(), gdb, opts, lg)).To(Succeed())

		Expect(count(gdb, "users")).To(BeEquivalentTo(len(seedUsers)))
		Expect(count(gdb, "fund_settings")).To(BeEquivalentTo(3))
		Expect(count(gdb, "categories")).To(BeEquivalentTo(len(seedCategories)))

		subs := 0
		for _, c := range seedCategories {
			subs += len(c.Subcategories)
		}
		Expect(count(gdb, "sub_categories")).To(BeEquivalentTo(subs))
		Expect(count(gdb, "budgets")).To(BeEquivalentTo(subs))
	})

	It("is idempotent", func() {
		Expect(seed(context.Background(), gdb, opts, lg)).To(Succeed())
		Expect(seed(context.Background(), gdb, opts, lg)).To(Succeed())

		Expect(count(gdb, "users")).To(BeEquivalentTo(len(seedUsers)))
		Expect(count(gdb, "categories")).To(BeEquivalentTo(len(seedCategories)))
	})

	It("numbers positions per group", func() {
		Expect(seed(context.Background(), gdb, opts, lg)).To(Succeed())

		var positions []int
		Expect(gdb.Table("categories").Where("group_name = ?", "Expenditures").
			Order("position").Pluck("position", &positions).Error).To(Succeed())
		Expect(positions).To(Equal([]int{1, 2, 3}))
	})
})

var _ = Describe("application", func() {
	var (
		server *httptest.Server
		app    *application
	)

	BeforeEach(func() {
		gdb, reader := openTestDB()
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		Expect(seed(context.Background(), gdb, seedOptions{Password: "password", BCryptCost: bcrypt.MinCost, Year: time.Now().Year()}, lg)).To(Succeed())

		cfg := &internal.Config{
			Security: internal.SecurityConfig{
				JWTAccessSecret:  "test-access-secret-of-at-least-32-chars",
				JWTRefreshSecret: "test-refresh-secret-of-at-least-32-chars",
				BCryptCost:       bcrypt.MinCost,
			},
			Storage: internal.StorageConfig{Root: GinkgoT().TempDir()},
		}
		cfg.ApplyDefaults()

		var err error
		app, err = newApplication(cfg, gdb, reader, lg)
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(app.Router)
	})

	AfterEach(func() {
		server.Close()
		app.Bus.Wait()
	})

	login := func(email, password string) *http.Response {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	accessToken := func(email string) string {
		resp := login(email, "password")
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var tokens struct {
			AccessToken string `json:"access_token"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&tokens)).To(Succeed())
		Expect(tokens.AccessToken).NotTo(BeEmpty())
		return tokens.AccessToken
	}

	get := func(path, token string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
		Expect(err).NotTo(HaveOccurred())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("reports healthy components", func() {
		resp := get("/api/v1/health", "")
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects a wrong password", func() {
		resp := login("captain@barangay.local", "not-the-password")
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("requires a token on protected routes", func() {
		resp := get("/api/v1/settings", "")
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("lists the seeded lock settings for a logged in captain", func() {
		resp := get("/api/v1/settings", accessToken("captain@barangay.local"))
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body struct {
			Settings []map[string]interface{} `json:"settings"`
		}
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body.Settings).To(HaveLen(3))
	})

	It("keeps user management to admins", func() {
		resp := get("/api/v1/users", accessToken("captain@barangay.local"))
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

		resp = get("/api/v1/users", accessToken("admin@barangay.local"))
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})

var _ = Describe("publishTestEvent", func() {
	It("rejects unknown event types", func() {
		Expect(publishTestEvent(context.Background(), "no.such.event", "x")).To(HaveOccurred())
	})

	It("publishes a known event type", func() {
		Expect(publishTestEvent(context.Background(), events.AllEventTypes[0], "x")).To(Succeed())
	})
})

var _ = Describe("loadConfig", func() {
	BeforeEach(func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("DOCKER_ENV")
	})

	It("reads and validates the repository config file", func() {
		cfg, err := loadConfig("..")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Security.AccessTokenDuration).To(Equal(15 * time.Minute))
		Expect(cfg.Procurement.RequiredCompanies).To(Equal(3))
		Expect(cfg.IsProduction()).To(BeFalse())
	})
})
