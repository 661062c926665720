package employees

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/shared"
)

// PermView gates the directory.
const PermView = "employees:view"

// Handler serves /api/employees. Authorization is applied by the caller
// when mounting.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listEmployees)
}

type listResponse struct {
	Success    bool              `json:"success"`
	Data       []Employee        `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{Search: q.Get("search"), Role: q.Get("role")}
	if v := q.Get("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	var err error
	if req.Limit, req.Offset, err = shared.ParseWindow(q); err != nil {
		httpx.JSON(w, http.StatusBadRequest, httpx.Failure(shared.Translate(r, shared.MsgInvalidRequest)))
		return
	}

	items, total, err := h.service.ListEmployees(r.Context(), req)
	if err != nil {
		status := httpx.StatusOf(err)
		key := shared.MsgServerError
		if status == http.StatusBadRequest {
			key = shared.MsgInvalidRequest
		} else {
			h.logger.Error("list employees", slog.Any("error", err))
		}
		httpx.JSON(w, status, httpx.Failure(shared.Translate(r, key)))
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultPageSize
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       items,
		Pagination: shared.PaginationFromOffset(limit, req.Offset, total),
	})
}
