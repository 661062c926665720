package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/auth"
	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/customers"
	"github.com/quanly-erp/quanly/internal/edge"
	"github.com/quanly-erp/quanly/internal/employees"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/navigation"
	"github.com/quanly-erp/quanly/internal/observability"
	"github.com/quanly-erp/quanly/internal/permctx"
	"github.com/quanly-erp/quanly/internal/roles"
	"github.com/quanly-erp/quanly/internal/session"
	"github.com/quanly-erp/quanly/internal/view"
	"github.com/quanly-erp/quanly/jobs"
)

// Deps are the collaborators backed by external systems. cmd/quanly builds
// them from live connections; tests pass in-memory versions.
type Deps struct {
	Provider    identity.Provider
	Employees   guard.Repository
	Customers   customers.Repository
	Roles       roles.RepositoryPort
	Directory   employees.RepositoryPort
	Audit       audit.Sink
	AuditLister audit.Lister
	Inspector   jobs.QueueInspector
	Metrics     *observability.Metrics
}

// Server is the assembled HTTP application.
type Server struct {
	Catalog   *catalog.Catalog
	Resolver  *session.Resolver
	Guard     *guard.Guard
	Gate      *edge.Gate
	Navigator *permctx.Navigator
	Metrics   *observability.Metrics
	Handler   http.Handler
}

// LoadCatalog reads CATALOG_FILE, falling back to the embedded catalog.
func LoadCatalog(cfg *Config) (*catalog.Catalog, error) {
	if cfg != nil && cfg.CatalogFile != "" {
		return catalog.Load(cfg.CatalogFile)
	}
	return catalog.Default()
}

// NewIdentityProvider builds the provider chain for cfg: the remote or JWT
// provider, a circuit breaker around it, and the revocation denylist when a
// Redis client is available.
func NewIdentityProvider(cfg *Config, rdb *redis.Client, logger *slog.Logger) (identity.Provider, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	var base identity.Provider
	switch cfg.IdentityMode {
	case IdentityModeRemote:
		base = identity.NewHTTPProvider(identity.HTTPConfig{
			BaseURL:    cfg.IdentityURL,
			APIKey:     cfg.IdentityAPIKey,
			Timeout:    cfg.IdentityTimeout,
			MaxRetries: cfg.IdentityMaxRetries,
			Logger:     logger,
		})
	case IdentityModeJWT:
		base = identity.NewJWTProvider(cfg.IdentityJWTSecret, cfg.IdentityJWTIssuer)
	default:
		return nil, fmt.Errorf("app: unknown identity mode %q", cfg.IdentityMode)
	}
	provider := identity.Provider(identity.NewBreakerProvider(base, identity.BreakerConfig{
		MaxFailures: cfg.IdentityBreakerFail,
		Timeout:     cfg.IdentityBreakerOpen,
	}, logger))
	if rdb != nil {
		provider = identity.NewRevocationProvider(provider, identity.NewDenylist(rdb))
	}
	return provider, nil
}

// Build assembles the access layers and HTTP handlers.
func Build(cfg *Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if strings.TrimSpace(cfg.DefaultRole) == "" {
		return nil, errors.New("app: default role is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("app: identity provider is required")
	}
	if deps.Employees == nil {
		return nil, errors.New("app: employee repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopSink{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	resolver := session.NewResolver(deps.Provider, session.Config{
		AccessCookie:   cfg.SessionAccessCookie,
		RefreshCookie:  cfg.SessionRefreshCookie,
		CookieDomain:   cfg.SessionCookieDomain,
		CookieSecure:   cfg.IsProduction(),
		RolePrecedence: cfg.RoleClaimPrecedence,
		DefaultRole:    cfg.DefaultRole,
	})

	g := guard.New(resolver, deps.Employees, guard.Options{
		Audit:   deps.Audit,
		Metrics: metrics,
		Logger:  logger.With(slog.String("component", "guard")),
	})
	gate := edge.New(resolver, cat, edge.Options{
		PublicRoutes: cfg.EdgePublicRoutes,
		Audit:        deps.Audit,
		Metrics:      metrics,
		Logger:       logger.With(slog.String("component", "edge")),
	})
	nav, err := permctx.NewNavigator(cat, cfg.NavCacheSize)
	if err != nil {
		return nil, fmt.Errorf("navigation cache: %w", err)
	}
	engine, err := view.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	params := RouterParams{
		Logger:            logger,
		Config:            cfg,
		Metrics:           metrics,
		Gate:              gate,
		Guard:             g,
		AuthHandler:       auth.NewHandler(logger, auth.NewService(deps.Provider), g, resolver),
		NavigationHandler: navigation.NewHandler(logger, navigation.ForGuard(g), nav, cfg.DefaultRole),
		JobHandler:        jobs.NewHandler(deps.Inspector, logger),
		Pages:             NewPages(engine, cat, gate.Role, logger),
	}
	if deps.Customers != nil {
		params.CustomersHandler = customers.NewHandler(logger, customers.NewService(deps.Customers), g)
	}
	if deps.Roles != nil {
		params.RolesHandler = roles.NewHandler(logger, roles.NewService(deps.Roles, cat))
	}
	if deps.Directory != nil {
		params.EmployeesHandler = employees.NewHandler(logger, employees.NewService(deps.Directory))
	}
	if deps.AuditLister != nil {
		params.AuditHandler = audit.NewHandler(deps.AuditLister, logger)
	}

	return &Server{
		Catalog:   cat,
		Resolver:  resolver,
		Guard:     g,
		Gate:      gate,
		Navigator: nav,
		Metrics:   metrics,
		Handler:   NewRouter(params),
	}, nil
}
