package app

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/session"
	"github.com/quanly-erp/quanly/internal/shared"
	"github.com/quanly-erp/quanly/internal/view"
)

// RoleFunc maps the gated user to its role hint.
type RoleFunc func(*identity.User) string

// Pages renders the HTML shell for gated page routes. The edge gate runs in
// front of it, so every request that reaches a protected page is allowed.
type Pages struct {
	engine  *view.Engine
	catalog *catalog.Catalog
	role    RoleFunc
	logger  *slog.Logger
}

// NewPages constructs the page handler.
func NewPages(engine *view.Engine, cat *catalog.Catalog, role RoleFunc, logger *slog.Logger) *Pages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pages{engine: engine, catalog: cat, role: role, logger: logger}
}

// MountRoutes registers the page routes on r.
func (p *Pages) MountRoutes(r chi.Router) {
	r.Get("/", p.render("pages/landing.html"))
	r.Get("/auth/*", p.render("pages/login.html"))
	r.Get("/*", p.render("pages/shell.html"))
}

func (p *Pages) render(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := p.templateData(r)
		if err := p.engine.Render(w, name, data); err != nil {
			p.logger.Error("render page", slog.String("template", name), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func (p *Pages) templateData(r *http.Request) view.TemplateData {
	data := view.TemplateData{
		Title:       "QuanLy ERP",
		Lang:        shared.Language(r).String(),
		CurrentPath: r.URL.Path,
	}
	user := session.UserFromContext(r.Context())
	if user != nil {
		data.Email = user.Email
		if p.role != nil {
			data.Role = p.role(user)
		}
	}
	if title := p.pageTitle(data.Role, r.URL.Path); title != "" {
		data.Title = title
	}
	data.Banner = profileBanner(r)
	return data
}

// pageTitle picks the longest navigation entry covering path.
func (p *Pages) pageTitle(role, path string) string {
	best := ""
	bestLen := 0
	for _, item := range p.catalog.Navigation(role) {
		if path != item.Href && !strings.HasPrefix(path, item.Href+"/") {
			continue
		}
		if len(item.Href) > bestLen {
			best, bestLen = item.Title, len(item.Href)
		}
	}
	return best
}

func profileBanner(r *http.Request) *view.Banner {
	q := r.URL.Query()
	switch q.Get("error") {
	case "access_denied":
		return &view.Banner{
			Message:            shared.Translate(r, shared.MsgPageDenied),
			RequestedPath:      q.Get("requestedPath"),
			RequiredPermission: q.Get("requiredPermission"),
		}
	case "invalid_role":
		return &view.Banner{Message: shared.Translate(r, shared.MsgPageInvalidRole)}
	default:
		return nil
	}
}
