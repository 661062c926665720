package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/shared"
)

// Handler serves the role directory. Authorization is applied by the caller
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
}

type listResponse struct {
	Success  bool     `json:"success"`
	Data     []Entry  `json:"data"`
	Unstored []string `json:"unstored"`
	InSync   bool     `json:"in_sync"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, httpx.Failure(shared.Translate(r, shared.MsgServerError)))
		return
	}
	unstored := h.service.Unstored(entries)
	inSync := len(unstored) == 0
	for _, e := range entries {
		if !e.Drift.InSync() {
			inSync = false
		}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: entries, Unstored: unstored, InSync: inSync})
}
