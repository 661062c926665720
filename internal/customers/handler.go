package customers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/shared"
)

// Permissions guarding the customer routes.
const (
	PermView   = "customers:view"
	PermCreate = "customers:create"
)

// Guard is the permission check the handler relies on.
type Guard interface {
	RequirePermission(ctx context.Context, r *http.Request, perm string) (*guard.UserWithPermissions, error)
}

// Handler serves /api/customers.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, g Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: g}
}

// MountRoutes registers the customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

type listResponse struct {
	Success     bool              `json:"success"`
	Data        []Customer        `json:"data"`
	Total       int               `json:"total"`
	Pagination  shared.Pagination `json:"pagination"`
	Permissions []string          `json:"permissions"`
}

type createResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *Customer `json:"data"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequirePermission(r.Context(), r, PermView)
	if err != nil {
		h.deny(w, r, err, shared.MsgCustomersView)
		return
	}

	q := r.URL.Query()
	req := ListCustomersRequest{Search: q.Get("search")}
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	if req.Limit, req.Offset, err = shared.ParseWindow(q); err != nil {
		httpx.JSON(w, http.StatusBadRequest, httpx.Failure(shared.Translate(r, shared.MsgInvalidRequest)))
		return
	}

	items, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Success:     true,
		Data:        items,
		Total:       total,
		Pagination:  shared.PaginationFromOffset(limit, req.Offset, total),
		Permissions: user.Permissions,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.RequirePermission(r.Context(), r, PermCreate)
	if err != nil {
		h.deny(w, r, err, shared.MsgCustomersCreate)
		return
	}

	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.service.Create(r.Context(), req, user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createResponse{Success: true, Message: shared.Translate(r, shared.MsgCustomerCreated), Data: created})
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, err error, deniedKey string) {
	if guard.KindOf(err) == guard.KindUpstream {
		h.logger.Error("customers guard", slog.Any("error", err))
	}
	httpx.JSON(w, guard.Status(err), httpx.Failure(shared.Translate(r, guard.MessageKey(err, deniedKey))))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := httpx.StatusOf(err)
	key := shared.MsgServerError
	switch status {
	case http.StatusBadRequest, http.StatusConflict:
		key = shared.MsgInvalidRequest
	default:
		h.logger.Error("customers", slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.JSON(w, status, httpx.Failure(shared.Translate(r, key)))
}
