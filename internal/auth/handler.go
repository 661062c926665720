package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/session"
	"github.com/quanly-erp/quanly/internal/shared"
)

// Handler wires the /api/auth endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *guard.Guard
	resolver  *session.Resolver
	validator *validator.Validate
	loginRate int
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, g *guard.Guard, resolver *session.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     g,
		resolver:  resolver,
		validator: validator.New(),
		loginRate: 10,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Post("/logout", h.logout)
	r.With(httprate.Limit(h.loginRate, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusTooManyRequests, httpx.Failure(shared.Translate(r, shared.MsgRateLimited)))
		}),
	)).Post("/login", h.login)
}

type meResponse struct {
	Success bool                       `json:"success"`
	User    *guard.UserWithPermissions `json:"user"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.guard.CurrentUser(r.Context(), r)
	if err != nil {
		if guard.KindOf(err) == guard.KindUpstream {
			h.logger.Error("auth me", slog.Any("error", err))
		}
		httpx.JSON(w, guard.Status(err), httpx.Failure(shared.Translate(r, guard.MessageKey(err, ""))))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, meResponse{Success: true, User: user})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), h.resolver.AccessToken(r))
	h.resolver.ClearCookies(w)
	if err != nil {
		h.logger.Error("auth logout", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, httpx.Failure(shared.Translate(r, shared.MsgLogoutFailed)))
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: shared.Translate(r, shared.MsgLoggedOut)})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, httpx.Failure(shared.Translate(r, shared.MsgInvalidRequest)))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, validationFailure(r, err))
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrInvalidCredentials):
		httpx.JSON(w, http.StatusUnauthorized, httpx.Failure(shared.Translate(r, shared.MsgInvalidLogin)))
		return
	case errors.Is(err, identity.ErrUnsupported):
		httpx.JSON(w, http.StatusNotImplemented, httpx.Failure(shared.Translate(r, shared.MsgServerError)))
		return
	default:
		h.logger.Error("auth login", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, httpx.Failure(shared.Translate(r, shared.MsgServerError)))
		return
	}

	h.resolver.SetCookies(w, sess)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: shared.Translate(r, shared.MsgLoggedIn)})
}

type validationResponse struct {
	httpx.Envelope
	Errors map[string]string `json:"errors"`
}

func validationFailure(r *http.Request, err error) validationResponse {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fieldErr := range verrs {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return validationResponse{Envelope: httpx.Failure(shared.Translate(r, shared.MsgInvalidRequest)), Errors: fields}
}
