package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/auth"
	"github.com/quanly-erp/quanly/internal/customers"
	"github.com/quanly-erp/quanly/internal/edge"
	"github.com/quanly-erp/quanly/internal/employees"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/navigation"
	"github.com/quanly-erp/quanly/internal/observability"
	"github.com/quanly-erp/quanly/internal/roles"
	"github.com/quanly-erp/quanly/jobs"
	"github.com/quanly-erp/quanly/web"
)

// PermAuditView gates the access denial trail and the role directory.
const PermAuditView = "roles:view"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Metrics           *observability.Metrics
	Gate              *edge.Gate
	Guard             *guard.Guard
	AuthHandler       *auth.Handler
	CustomersHandler  *customers.Handler
	NavigationHandler *navigation.Handler
	RolesHandler      *roles.Handler
	EmployeesHandler  *employees.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Pages             *Pages
}

// NewRouter constructs the chi.Router with QuanLy defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.NavigationHandler != nil {
			r.Route("/navigation", params.NavigationHandler.MountRoutes)
		}
		if params.RolesHandler != nil && params.Guard != nil {
			r.Route("/roles", func(r chi.Router) {
				r.Use(params.Guard.RequireAll(PermAuditView))
				params.RolesHandler.MountRoutes(r)
			})
		}
		if params.EmployeesHandler != nil && params.Guard != nil {
			r.Route("/employees", func(r chi.Router) {
				r.Use(params.Guard.RequireAll(employees.PermView))
				params.EmployeesHandler.MountRoutes(r)
			})
		}
		if params.AuditHandler != nil && params.Guard != nil {
			r.Route("/audit", func(r chi.Router) {
				r.Use(params.Guard.RequireAll(PermAuditView))
				params.AuditHandler.MountRoutes(r)
			})
		}
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if params.Pages != nil {
		r.Group(func(r chi.Router) {
			if params.Gate != nil {
				r.Use(params.Gate.Middleware)
			}
			params.Pages.MountRoutes(r)
		})
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
