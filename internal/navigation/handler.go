// Package navigation serves the sidebar entries the caller's permissions
// unlock.
package navigation

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/boundary"
	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/permctx"
	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/shared"
)

// FetcherFactory builds the /me fetcher for a request.
type FetcherFactory func(r *http.Request) permctx.Fetcher

// Handler serves /api/navigation.
type Handler struct {
	logger      *slog.Logger
	fetcher     FetcherFactory
	navigator   *permctx.Navigator
	defaultRole string
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, fetcher FetcherFactory, nav *permctx.Navigator, defaultRole string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, fetcher: fetcher, navigator: nav, defaultRole: defaultRole}
}

// ForGuard builds a FetcherFactory that loads the caller in process.
func ForGuard(g *guard.Guard) FetcherFactory {
	return func(r *http.Request) permctx.Fetcher {
		return permctx.InProcess(g, r)
	}
}

// MountRoutes registers the navigation route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.get)
}

type response struct {
	Success     bool              `json:"success"`
	Role        string            `json:"role"`
	Permissions []string          `json:"permissions"`
	Items       []catalog.NavItem `json:"items"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	pc := permctx.New(h.fetcher(r), h.navigator, permctx.Options{DefaultRole: h.defaultRole})

	var items []catalog.NavItem
	failure := boundary.Run(r.Context(), func(ctx context.Context) error {
		if err := pc.Load(ctx); err != nil {
			return err
		}
		items = pc.Navigation()
		return nil
	})
	if failure != nil {
		if failure.Panicked || guard.KindOf(failure.Err) == guard.KindUpstream {
			h.logger.Error("navigation", slog.Any("error", failure.Err), slog.Bool("panic", failure.Panicked))
			httpx.JSON(w, http.StatusInternalServerError, httpx.Failure(shared.Translate(r, shared.MsgNavigationFailure)))
			return
		}
		httpx.JSON(w, guard.Status(failure.Err), httpx.Failure(shared.Translate(r, guard.MessageKey(failure.Err, ""))))
		return
	}
	httpx.JSON(w, http.StatusOK, response{
		Success:     true,
		Role:        pc.Role(),
		Permissions: pc.Permissions(),
		Items:       items,
	})
}
