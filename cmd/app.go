package cmd

import (
	"fmt"
	"log/slog"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/auth"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	categoryPostgres "github.com/frahmantamala/barangay-procurement/internal/category/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/frahmantamala/barangay-procurement/internal/document"
	"github.com/frahmantamala/barangay-procurement/internal/fund"
	fundPostgres "github.com/frahmantamala/barangay-procurement/internal/fund/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/quotation"
	quotationPostgres "github.com/frahmantamala/barangay-procurement/internal/quotation/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	requestPostgres "github.com/frahmantamala/barangay-procurement/internal/request/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	settingsPostgres "github.com/frahmantamala/barangay-procurement/internal/settings/postgres"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
	"github.com/frahmantamala/barangay-procurement/internal/transport/rest"
	"github.com/frahmantamala/barangay-procurement/internal/user"
	userPostgres "github.com/frahmantamala/barangay-procurement/internal/user/postgres"
	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// application holds the wired services and the router built on top of them.
type application struct {
	Bus      *events.EventBus
	Users    *user.Service
	Settings *settings.Service
	Category *category.Service
	Fund     *fund.Service
	Request  *request.Service
	Quote    *quotation.Service
	Auth     *auth.Service
	Router   *chi.Mux
}

// newApplication builds every repository, service and handler. gormDB carries
// the writes; reader serves the sqlx read models and the health check.
func newApplication(cfg *internal.Config, gormDB *gorm.DB, reader *sqlx.DB, logger *slog.Logger) (*application, error) {
	files, err := storage.NewLocalStore(cfg.Storage.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	bus := events.NewEventBus(logger)
	events.RegisterAuditLog(bus, logger)

	userRepo := userPostgres.NewUserRepository(gormDB)
	requestRepo := requestPostgres.NewRequestRepository(gormDB)
	quotationRepo := quotationPostgres.NewQuotationRepository(gormDB, func(tx *gorm.DB) request.TxRepository {
		return requestPostgres.NewRequestRepository(tx)
	})

	users := user.NewService(userRepo, logger).WithBcryptCost(cfg.Security.BCryptCost)
	settingsSvc := settings.NewService(settingsPostgres.NewSettingsRepository(gormDB), bus, logger)
	categories := category.NewService(categoryPostgres.NewCategoryRepository(gormDB), settingsSvc, logger)
	funds := fund.NewService(fundPostgres.NewFundRepository(gormDB, reader), settingsSvc, files, bus, logger)
	requests := request.NewService(requestRepo, categories, files, bus, logger)
	quotes := quotation.NewService(quotationRepo, requestRepo, users, bus, logger, quotation.OptionsFromConfig(cfg.Procurement))

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authSvc := auth.NewService(userRepo, tokens, logger)

	base := transport.NewBaseHandler(logger)
	base.MaxUploadBytes = cfg.Storage.MaxUploadBytes

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, reader.DB, rest.Handlers{
		Auth:      auth.NewHandler(base, authSvc),
		Roles:     auth.NewRoleAuthorization(logger),
		User:      user.NewHandler(base, users),
		Request:   request.NewHandler(base, requests),
		Quotation: quotation.NewHandler(base, quotes, document.JSONRenderer{}),
		Fund:      fund.NewHandler(base, funds),
		Category:  category.NewHandler(base, categories),
		Settings:  settings.NewHandler(base, settingsSvc),
	}, rest.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LoginRateLimit: cfg.Server.LoginRateLimit,
		Production:     cfg.IsProduction(),
		StorageRoot:    cfg.Storage.Root,
		OpenAPIPath:    openAPIPath,
	}, logger)

	return &application{
		Bus:      bus,
		Users:    users,
		Settings: settingsSvc,
		Category: categories,
		Fund:     funds,
		Request:  requests,
		Quote:    quotes,
		Auth:     authSvc,
		Router:   router,
	}, nil
}
