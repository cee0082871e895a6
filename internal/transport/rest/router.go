package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/auth"
	"github.com/frahmantamala/barangay-procurement/internal/category"
	"github.com/frahmantamala/barangay-procurement/internal/fund"
	"github.com/frahmantamala/barangay-procurement/internal/quotation"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	"github.com/frahmantamala/barangay-procurement/internal/settings"
	"github.com/frahmantamala/barangay-procurement/internal/transport/middleware"
	"github.com/frahmantamala/barangay-procurement/internal/transport/swagger"
	"github.com/frahmantamala/barangay-procurement/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups every HTTP handler the API mounts. Nil handlers are
// skipped.
type Handlers struct {
	Auth      *auth.Handler
	Roles     *auth.RoleAuthorization
	User      *user.Handler
	Request   *request.Handler
	Quotation *quotation.Handler
	Fund      *fund.Handler
	Category  *category.Handler
	Settings  *settings.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	LoginRateLimit int
	Production     bool
	OpenAPIPath    string
	StorageRoot    string
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, opts RouterOptions, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, opts.StorageRoot)
	if opts.OpenAPIPath == "" {
		opts.OpenAPIPath = "./api/openapi.yml"
	}
	roles := h.Roles
	if roles == nil {
		roles = auth.NewRoleAuthorization(logger)
	}

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.SecureHeaders(logger, opts.Production))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.OpenAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.With(middleware.LoginRateLimit(opts.LoginRateLimit)).Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.Route("/users", func(ur chi.Router) {
					ur.Use(roles.RequireRoles(internal.RoleAdmin))
					ur.Get("/", h.User.ListUsers)
					ur.Post("/", h.User.CreateUser)
					ur.Put("/{id}", h.User.UpdateUser)
					ur.Delete("/{id}", h.User.DeleteUser)
					ur.Put("/{id}/password", h.User.UpdatePassword)
				})
			}

			if h.Request != nil {
				pr.Route("/requests", func(rr chi.Router) {
					rr.Get("/", h.Request.ListRequests)
					rr.Get("/{id}", h.Request.GetRequest)
					rr.Get("/{id}/files/{fileID}", h.Request.DownloadFile)

					// Editing follows per-request owner and collaborator permissions.
					rr.Put("/{id}", h.Request.UpdateRequest)
					rr.Post("/{id}/submit", h.Request.SubmitRequest)
					rr.Post("/{id}/process", h.Request.ProcessRequest)
					rr.Post("/{id}/process-purchase", h.Request.ProcessPurchaseRequest)
					rr.Post("/{id}/resubmit", h.Request.ResubmitRequest)
					rr.Post("/{id}/void", h.Request.VoidRequest)
					rr.With(roles.RequireRoles(internal.RoleOfficial)).Post("/", h.Request.CreateRequest)

					rr.Group(func(cr chi.Router) {
						cr.Use(roles.RequireRoles(internal.RoleCaptain))
						cr.Get("/captain", h.Request.ListCaptainRequests)
						cr.Post("/{id}/approve", h.Request.ApproveRequest)
						cr.Post("/{id}/decline", h.Request.DeclineRequest)
						cr.Post("/{id}/return", h.Request.ReturnRequest)
						cr.Post("/{id}/complete", h.Request.CompleteRequest)
					})

					if h.Quotation != nil {
						rr.Get("/{id}/quotation", h.Quotation.GetQuotation)
						rr.Get("/{id}/documents/abstract-of-canvass", h.Quotation.AbstractOfCanvass)
						rr.Get("/{id}/documents/purchase-request", h.Quotation.PurchaseRequestDocument)
						rr.Post("/{id}/quotation", h.Quotation.SubmitQuotation)
						rr.Put("/{id}/quotation", h.Quotation.ResubmitQuotation)
					}
				})
			}

			if h.Fund != nil {
				pr.Route("/funds", func(fr chi.Router) {
					fr.Get("/", h.Fund.Overview)
					fr.Get("/transactions", h.Fund.TransactionHistory)
					fr.Get("/transactions/{id}/files/{fileID}", h.Fund.DownloadReceipt)
					fr.Get("/budgets/{id}", h.Fund.GetBudget)

					fr.Group(func(wr chi.Router) {
						wr.Use(roles.RequireRoles(internal.RoleCaptain, internal.RoleTreasurer))
						wr.Post("/budgets", h.Fund.EnsureBudget)
						wr.Post("/budgets/{id}/income", h.Fund.AddIncome)
						wr.Post("/budgets/{id}/proposed", h.Fund.AddProposedBudget)
						wr.Post("/budgets/{id}/expenses", h.Fund.RecordExpense)
						wr.Post("/budgets/{id}/reconcile", h.Fund.Reconcile)
					})
				})
			}

			if h.Category != nil {
				pr.Route("/categories", func(cr chi.Router) {
					cr.Get("/", h.Category.ListCategories)
					cr.Get("/{id}", h.Category.GetCategory)
					cr.Group(func(wr chi.Router) {
						wr.Use(roles.RequireRoles(internal.RoleCaptain, internal.RoleAdmin))
						wr.Post("/", h.Category.CreateCategory)
						wr.Put("/{id}", h.Category.UpdateCategory)
						wr.Delete("/{id}", h.Category.DeleteCategory)
					})
				})
				pr.Route("/subcategories", func(sr chi.Router) {
					sr.Get("/", h.Category.ListSubcategories)
					sr.Get("/{id}", h.Category.GetSubcategory)
					sr.Group(func(wr chi.Router) {
						wr.Use(roles.RequireRoles(internal.RoleCaptain, internal.RoleAdmin))
						wr.Post("/", h.Category.CreateSubcategory)
						wr.Put("/{id}", h.Category.UpdateSubcategory)
						wr.Delete("/{id}", h.Category.DeleteSubcategory)
					})
				})
			}

			if h.Settings != nil {
				pr.Route("/settings", func(sr chi.Router) {
					sr.Get("/", h.Settings.ListSettings)
					sr.Get("/timeline", h.Settings.ListTimeline)
					sr.Group(func(wr chi.Router) {
						wr.Use(roles.RequireRoles(internal.RoleCaptain))
						wr.Put("/", h.Settings.SaveChanges)
						wr.Put("/{name}/lock", h.Settings.ToggleLock)
					})
				})
			}
		})
	})
}
