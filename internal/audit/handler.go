package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/shared"
)

// Lister reads recorded denials.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Denial, error)
}

// Handler serves the access denial trail. Authorization is applied by the
// caller when mounting.
type Handler struct {
	lister Lister
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(lister Lister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{lister: lister, logger: logger}
}

// MountRoutes registers the audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/access-denials", h.list)
}

type listResponse struct {
	Success bool     `json:"success"`
	Data    []Denial `json:"data"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.lister.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list access denials", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, httpx.Failure(shared.Translate(r, shared.MsgServerError)))
		return
	}
	if items == nil {
		items = []Denial{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: items})
}
